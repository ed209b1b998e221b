package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/queue"
	repository "github.com/saheelsapovadia/dopamine-detox-backend/internal/repositories"
)

// SyncWorker drains the sync queue into the task store. Each entry is applied
// inside one store transaction and acknowledged only after commit, so a crash
// mid-apply redelivers the entry. Entries that keep failing are parked on the
// dead-letter stream after maxRetries deliveries.
type SyncWorker struct {
	queue      queue.SyncQueue
	repo       *repository.TaskRepository
	maxRetries int
	batchSize  int

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSyncWorker(syncQueue queue.SyncQueue, repo *repository.TaskRepository, maxRetries, batchSize int) *SyncWorker {
	return &SyncWorker{
		queue:      syncQueue,
		repo:       repo,
		maxRetries: maxRetries,
		batchSize:  batchSize,
		stop:       make(chan struct{}),
	}
}

// Start ensures the consumer group exists and launches the drain loop.
func (w *SyncWorker) Start(ctx context.Context) error {
	if err := w.queue.EnsureGroup(ctx); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop signals the loop, waits for it, and runs one last reclaim pass so
// poisoned entries are parked before shutdown.
func (w *SyncWorker) Stop(ctx context.Context) {
	close(w.stop)
	w.wg.Wait()
	if err := w.reclaimOnce(ctx); err != nil {
		log.Printf("sync worker: final reclaim: %v", err)
	}
}

func (w *SyncWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := w.reclaimOnce(ctx); err != nil {
			log.Printf("sync worker: reclaim: %v", err)
			w.pause()
			continue
		}
		if err := w.consumeOnce(ctx); err != nil {
			log.Printf("sync worker: consume: %v", err)
			w.pause()
		}
	}
}

// pause backs off briefly after a queue error so a Redis outage does not spin
// the loop.
func (w *SyncWorker) pause() {
	select {
	case <-w.stop:
	case <-time.After(time.Second):
	}
}

// reclaimOnce parks every entry that has exhausted its deliveries on the
// dead-letter stream.
func (w *SyncWorker) reclaimOnce(ctx context.Context) error {
	pending, err := w.queue.Pending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if p.Deliveries < int64(w.maxRetries) {
			continue
		}
		if err := w.queue.MoveToDLQ(ctx, p.ID, p.Deliveries); err != nil {
			return err
		}
		log.Printf("sync worker: parked entry %s on DLQ after %d deliveries", p.ID, p.Deliveries)
	}
	return nil
}

func (w *SyncWorker) consumeOnce(ctx context.Context) error {
	entries, err := w.queue.Read(ctx, w.batchSize)
	if err != nil {
		return err
	}
	for _, e := range entries {
		w.processEntry(ctx, e)
	}
	return nil
}

// processEntry replays one mutation. A payload that does not decode can never
// succeed, so it is acknowledged and dropped. An apply failure leaves the
// entry unacknowledged for redelivery.
func (w *SyncWorker) processEntry(ctx context.Context, e queue.Entry) {
	if err := w.apply(ctx, e); err != nil {
		log.Printf("sync worker: apply %s %s: %v", e.Op, e.ID, err)
		return
	}
	if err := w.queue.Ack(ctx, e.ID); err != nil {
		log.Printf("sync worker: ack %s: %v", e.ID, err)
	}
}

type malformedPayloadError struct{ err error }

func (m malformedPayloadError) Error() string { return m.err.Error() }

func (w *SyncWorker) apply(ctx context.Context, e queue.Entry) error {
	err := w.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		switch e.Op {
		case constants.OpCreate:
			return w.applyCreate(ctx, tx, e.Payload)
		case constants.OpBatchCreate:
			return w.applyBatchCreate(ctx, tx, e.Payload)
		case constants.OpUpdate:
			return w.applyUpdate(ctx, tx, e.Payload)
		case constants.OpBatchUpdate:
			return w.applyBatchUpdate(ctx, tx, e.Payload)
		case constants.OpStatusUpdate:
			return w.applyStatusUpdate(ctx, tx, e.Payload)
		case constants.OpDelete:
			return w.applyDelete(ctx, tx, e.Payload)
		default:
			return malformedPayloadError{err: errUnknownOp(e.Op)}
		}
	})
	if m, ok := err.(malformedPayloadError); ok {
		// Drop it: redelivery cannot fix a payload that will not decode.
		log.Printf("sync worker: dropping malformed entry %s (%s): %v", e.ID, e.Op, m.err)
		return nil
	}
	return err
}

type errUnknownOp constants.SyncOp

func (e errUnknownOp) Error() string { return "unknown sync op " + string(e) }

func (w *SyncWorker) applyCreate(ctx context.Context, tx *repository.TaskRepository, payload string) error {
	var task model.Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return malformedPayloadError{err: err}
	}
	return tx.InsertIgnore(ctx, &task)
}

func (w *SyncWorker) applyBatchCreate(ctx context.Context, tx *repository.TaskRepository, payload string) error {
	var p dto.BatchCreatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return malformedPayloadError{err: err}
	}
	for i := range p.Tasks {
		if err := tx.InsertIgnore(ctx, &p.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *SyncWorker) applyUpdate(ctx context.Context, tx *repository.TaskRepository, payload string) error {
	var p dto.UpdatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return malformedPayloadError{err: err}
	}
	return tx.UpdateFields(ctx, p.ID, storeColumns(p.Updates), updatedAtOrNow(p.UpdatedAt))
}

func (w *SyncWorker) applyBatchUpdate(ctx context.Context, tx *repository.TaskRepository, payload string) error {
	var p dto.BatchUpdatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return malformedPayloadError{err: err}
	}
	for _, item := range p.Tasks {
		if err := tx.UpdateFields(ctx, item.ID, storeColumns(item.Updates), updatedAtOrNow(item.UpdatedAt)); err != nil {
			return err
		}
	}
	return nil
}

func (w *SyncWorker) applyStatusUpdate(ctx context.Context, tx *repository.TaskRepository, payload string) error {
	var p dto.StatusUpdatePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return malformedPayloadError{err: err}
	}
	return tx.UpdateFields(ctx, p.ID, map[string]interface{}{"status": p.Status}, updatedAtOrNow(p.UpdatedAt))
}

func (w *SyncWorker) applyDelete(ctx context.Context, tx *repository.TaskRepository, payload string) error {
	var p dto.DeletePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return malformedPayloadError{err: err}
	}
	return tx.Delete(ctx, p.ID)
}

func updatedAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
