package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
)

// ErrMiss means the day hash has never been hydrated. Callers load the day
// from the task store and call Hydrate before retrying.
var ErrMiss = errors.New("task cache miss")

// ErrUnavailable means the cache backend itself could not be reached. Callers
// fall back to direct task store access for the current request.
var ErrUnavailable = errors.New("task cache unavailable")

// TaskCache is the per-(user, day) hash of task records plus the per-day
// {total, completed} counters. All mutations through the service layer land
// here first and are drained to the store by the sync worker.
type TaskCache interface {
	// TasksForDate returns the cached day sorted by priority rank then order
	// index. ErrMiss when the day was never hydrated; an empty slice when the
	// day is hydrated but has no tasks.
	TasksForDate(ctx context.Context, userID, day string) ([]model.Task, error)

	// Task returns one cached record, or nil when the id is not in the hash.
	Task(ctx context.Context, userID, day, taskID string) (*model.Task, error)

	// HighPriorityTask scans the day hash for the high-priority record, if any.
	HighPriorityTask(ctx context.Context, userID, day string) (*model.Task, error)

	SetTask(ctx context.Context, userID, day string, task model.Task) error
	SetTasksBatch(ctx context.Context, userID, day string, tasks []model.Task) error

	// UpdateTask merges the partial update into the cached record and adjusts
	// the completed counter when status crosses the completed boundary.
	// Returns nil when the id is absent.
	UpdateTask(ctx context.Context, userID, day, taskID string, upd dto.TaskUpdate) (*model.Task, error)

	DeleteTask(ctx context.Context, userID, day, taskID string, wasCompleted bool) error

	// Hydrate clears and repopulates the day hash and counters from an
	// authoritative store read. Empty days get a sentinel so they are not
	// re-hydrated on every read.
	Hydrate(ctx context.Context, userID, day string, tasks []model.Task) error

	// IsHydrated reports whether the day hash exists. A non-nil error means
	// the answer is unknown because the backend is unreachable.
	IsHydrated(ctx context.Context, userID, day string) (bool, error)

	// DaySummaries builds numDays day-selector entries ending at referenceDay
	// from the counter hashes, newest first, in one batched round trip.
	DaySummaries(ctx context.Context, userID, referenceDay string, numDays int) ([]dto.DaySummary, error)
}

// emptySentinel marks a hydrated day that has no tasks, so "empty" and
// "never hydrated" stay distinguishable in the hash.
const emptySentinel = "__empty__"

// parseDayHash decodes the raw hash fields into task records, dropping the
// empty sentinel and anything that does not decode.
func parseDayHash(fields map[string]string) []model.Task {
	tasks := make([]model.Task, 0, len(fields))
	for field, raw := range fields {
		if field == emptySentinel {
			continue
		}
		var t model.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil || t.ID == "" {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// sortTasks orders a day listing: high before medium before low, ties broken
// by order index.
func sortTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return tasks[i].OrderIndex < tasks[j].OrderIndex
	})
}

// applyUpdate merges the present fields of upd into t, stamps UpdatedAt, and
// reports the completed-counter delta (-1, 0 or +1) caused by the change.
func applyUpdate(t *model.Task, upd dto.TaskUpdate, now time.Time) int {
	wasCompleted := t.Status == constants.StatusCompleted

	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Subtitle != nil {
		t.Subtitle = *upd.Subtitle
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.DurationMins != nil {
		t.DurationMins = *upd.DurationMins
	}
	if upd.IconType != nil {
		t.IconType = *upd.IconType
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.OrderIndex != nil {
		t.OrderIndex = *upd.OrderIndex
	}
	t.UpdatedAt = now

	isCompleted := t.Status == constants.StatusCompleted
	switch {
	case isCompleted && !wasCompleted:
		return 1
	case !isCompleted && wasCompleted:
		return -1
	default:
		return 0
	}
}

func countCompleted(tasks []model.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == constants.StatusCompleted {
			n++
		}
	}
	return n
}
