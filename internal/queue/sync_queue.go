package queue

import (
	"context"
	"errors"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
)

// Entry is one pending mutation on the sync stream.
type Entry struct {
	ID      string
	Op      constants.SyncOp
	Payload string
}

// PendingEntry describes a delivered-but-unacknowledged entry.
type PendingEntry struct {
	ID         string
	Deliveries int64
}

// Stats is a point-in-time snapshot used by the maintenance job.
type Stats struct {
	StreamDepth  int64
	PendingCount int64
	DLQDepth     int64
}

var ErrUnavailable = errors.New("sync queue unavailable")

// SyncQueue is the append-only log of task mutations awaiting replay into the
// task store. Entries are consumed through a durable group: delivered to one
// worker, acknowledged on success, redelivered on failure.
type SyncQueue interface {
	// Enqueue appends a mutation. The payload must be replayable on its own.
	Enqueue(ctx context.Context, op constants.SyncOp, payload []byte) error

	// EnsureGroup creates the consumer group, tolerating an existing one.
	EnsureGroup(ctx context.Context) error

	// Read returns up to count new entries, blocking briefly when none are
	// available so callers can poll without spinning.
	Read(ctx context.Context, count int) ([]Entry, error)

	Ack(ctx context.Context, entryID string) error

	// Pending lists delivered-but-unacknowledged entries with their delivery
	// counts, oldest first.
	Pending(ctx context.Context, count int) ([]PendingEntry, error)

	// MoveToDLQ copies the entry onto the dead-letter stream (annotated with
	// its original id and delivery count) and acknowledges it off the main
	// stream so it is never redelivered.
	MoveToDLQ(ctx context.Context, entryID string, deliveries int64) error

	Stats(ctx context.Context) (Stats, error)
}
