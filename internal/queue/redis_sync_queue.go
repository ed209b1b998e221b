package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
)

// RedisSyncQueue backs SyncQueue with a Redis stream plus a dead-letter
// stream. Both are trimmed approximately (MAXLEN ~) on append.
type RedisSyncQueue struct {
	client      rueidis.Client
	stream      string
	dlq         string
	group       string
	consumer    string
	maxLen      int
	dlqMaxLen   int
	blockMillis int
}

type RedisSyncQueueOptions struct {
	Stream      string
	DLQ         string
	Group       string
	Consumer    string
	MaxLen      int
	DLQMaxLen   int
	BlockMillis int
}

func NewRedisSyncQueue(client rueidis.Client, opts RedisSyncQueueOptions) *RedisSyncQueue {
	return &RedisSyncQueue{
		client:      client,
		stream:      opts.Stream,
		dlq:         opts.DLQ,
		group:       opts.Group,
		consumer:    opts.Consumer,
		maxLen:      opts.MaxLen,
		dlqMaxLen:   opts.DLQMaxLen,
		blockMillis: opts.BlockMillis,
	}
}

func (q *RedisSyncQueue) wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (q *RedisSyncQueue) Enqueue(ctx context.Context, op constants.SyncOp, payload []byte) error {
	cmd := q.client.B().Xadd().Key(q.stream).
		Maxlen().Almost().Threshold(strconv.Itoa(q.maxLen)).
		Id("*").
		FieldValue().
		FieldValue("op", string(op)).
		FieldValue("payload", string(payload)).
		Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return q.wrap(err)
	}
	return nil
}

func (q *RedisSyncQueue) EnsureGroup(ctx context.Context) error {
	cmd := q.client.B().XgroupCreate().Key(q.stream).Group(q.group).Id("0").Mkstream().Build()
	err := q.client.Do(ctx, cmd).Error()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return q.wrap(err)
	}
	return nil
}

func (q *RedisSyncQueue) Read(ctx context.Context, count int) ([]Entry, error) {
	cmd := q.client.B().Xreadgroup().
		Group(q.group, q.consumer).
		Count(int64(count)).
		Block(int64(q.blockMillis)).
		Streams().Key(q.stream).Id(">").
		Build()
	streams, err := q.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, q.wrap(err)
	}

	var entries []Entry
	for _, msgs := range streams {
		for _, m := range msgs {
			entries = append(entries, Entry{
				ID:      m.ID,
				Op:      constants.SyncOp(m.FieldValues["op"]),
				Payload: m.FieldValues["payload"],
			})
		}
	}
	return entries, nil
}

func (q *RedisSyncQueue) Ack(ctx context.Context, entryID string) error {
	cmd := q.client.B().Xack().Key(q.stream).Group(q.group).Id(entryID).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return q.wrap(err)
	}
	return nil
}

func (q *RedisSyncQueue) Pending(ctx context.Context, count int) ([]PendingEntry, error) {
	cmd := q.client.B().Xpending().Key(q.stream).Group(q.group).
		Start("-").End("+").Count(int64(count)).
		Build()
	rows, err := q.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, q.wrap(err)
	}

	// Each row is [id, consumer, idle-ms, delivery-count].
	var pending []PendingEntry
	for _, row := range rows {
		vals, err := row.ToArray()
		if err != nil || len(vals) < 4 {
			continue
		}
		id, err := vals[0].ToString()
		if err != nil {
			continue
		}
		deliveries, err := vals[3].AsInt64()
		if err != nil {
			continue
		}
		pending = append(pending, PendingEntry{ID: id, Deliveries: deliveries})
	}
	return pending, nil
}

func (q *RedisSyncQueue) MoveToDLQ(ctx context.Context, entryID string, deliveries int64) error {
	rng, err := q.client.Do(ctx, q.client.B().Xrange().Key(q.stream).Start(entryID).End(entryID).Build()).AsXRange()
	if err != nil {
		return q.wrap(err)
	}

	if len(rng) > 0 {
		add := q.client.B().Xadd().Key(q.dlq).
			Maxlen().Almost().Threshold(strconv.Itoa(q.dlqMaxLen)).
			Id("*").
			FieldValue()
		for field, value := range rng[0].FieldValues {
			add = add.FieldValue(field, value)
		}
		add = add.FieldValue("original_id", entryID).
			FieldValue("retries", strconv.FormatInt(deliveries, 10))
		if err := q.client.Do(ctx, add.Build()).Error(); err != nil {
			return q.wrap(err)
		}
	}

	// Ack even when the source entry has been trimmed away: there is nothing
	// left to retry either way.
	return q.Ack(ctx, entryID)
}

func (q *RedisSyncQueue) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	depth, err := q.client.Do(ctx, q.client.B().Xlen().Key(q.stream).Build()).AsInt64()
	if err != nil {
		return s, q.wrap(err)
	}
	s.StreamDepth = depth

	dlqDepth, err := q.client.Do(ctx, q.client.B().Xlen().Key(q.dlq).Build()).AsInt64()
	if err != nil {
		return s, q.wrap(err)
	}
	s.DLQDepth = dlqDepth

	// XPENDING summary form: [count, min-id, max-id, consumers].
	summary, err := q.client.Do(ctx, q.client.B().Xpending().Key(q.stream).Group(q.group).Build()).ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return s, nil
		}
		return s, q.wrap(err)
	}
	if len(summary) > 0 {
		if n, err := summary[0].AsInt64(); err == nil {
			s.PendingCount = n
		}
	}
	return s, nil
}
