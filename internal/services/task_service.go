package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/cache"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
	apperrors "github.com/saheelsapovadia/dopamine-detox-backend/internal/errors"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/queue"
	repository "github.com/saheelsapovadia/dopamine-detox-backend/internal/repositories"
)

// summaryDays is the size of the day-selector window returned with a daily
// listing.
const summaryDays = 7

// probeOffsets is the search order for locating a task by id in the cache
// when the request does not carry a date: today first, then nearby days.
var probeOffsets = [...]int{0, 1, -1, 2, -2, 3, -3}

// TaskService serves reads and writes cache-first: mutations land in the task
// cache, are acknowledged to the caller, and reach the task store
// asynchronously through the sync queue. When the cache cannot be trusted the
// service falls back to the store directly.
type TaskService struct {
	repo  *repository.TaskRepository
	cache cache.TaskCache
	queue queue.SyncQueue
	now   func() time.Time
}

func NewTaskService(repo *repository.TaskRepository, taskCache cache.TaskCache, syncQueue queue.SyncQueue) *TaskService {
	return &TaskService{
		repo:  repo,
		cache: taskCache,
		queue: syncQueue,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// enqueue appends a mutation to the sync queue. Failures are logged and
// swallowed: the cache already holds the new state and the caller has been
// answered, so losing the queue only delays store convergence.
func (s *TaskService) enqueue(op constants.SyncOp, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("sync enqueue %s: marshal: %v", op, err)
		return
	}
	if err := s.queue.Enqueue(context.Background(), op, raw); err != nil {
		log.Printf("sync enqueue %s: %v", op, err)
	}
}

func (s *TaskService) newTask(userID string, req dto.CreateTaskRequest) model.Task {
	now := s.now()
	t := model.Task{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		Category:     req.Category,
		Priority:     req.Priority,
		DurationMins: req.DurationMins,
		IconType:     req.IconType,
		Status:       constants.StatusPending,
		DueDate:      req.Date,
		OrderIndex:   req.OrderIndex,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if t.Category == "" {
		t.Category = constants.CategoryOther
	}
	if t.Priority == "" {
		t.Priority = constants.PriorityMedium
	}
	if t.DurationMins <= 0 {
		t.DurationMins = 25
	}
	if t.IconType == "" {
		t.IconType = constants.IconDefault
	}
	return t
}

// ensureHydrated makes sure the day hash exists before the cache is used as
// the source of truth for that day. Returns an error when the cache state is
// unknown, in which case callers must fall back to the store.
func (s *TaskService) ensureHydrated(ctx context.Context, userID, day string) error {
	hydrated, err := s.cache.IsHydrated(ctx, userID, day)
	if err != nil {
		return err
	}
	if hydrated {
		return nil
	}
	tasks, err := s.repo.TasksForDate(ctx, userID, day)
	if err != nil {
		return err
	}
	return s.cache.Hydrate(ctx, userID, day, tasks)
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, req dto.CreateTaskRequest) (*model.Task, error) {
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return nil, apperrors.ErrInvalidDate
	}
	task := s.newTask(userID, req)

	if err := s.ensureHydrated(ctx, userID, task.DueDate); err != nil {
		return s.createDirect(ctx, task)
	}
	if task.Priority == constants.PriorityHigh {
		existing, err := s.cache.HighPriorityTask(ctx, userID, task.DueDate)
		if err != nil {
			return s.createDirect(ctx, task)
		}
		if existing != nil {
			return nil, apperrors.ErrHighPriorityConflict
		}
	}
	if err := s.cache.SetTask(ctx, userID, task.DueDate, task); err != nil {
		return s.createDirect(ctx, task)
	}
	s.enqueue(constants.OpCreate, task)
	return &task, nil
}

// createDirect writes straight to the task store, re-checking the
// one-high-per-day rule against it since the cache verdict is unavailable.
func (s *TaskService) createDirect(ctx context.Context, task model.Task) (*model.Task, error) {
	if task.Priority == constants.PriorityHigh {
		existing, err := s.repo.HighPriorityForDate(ctx, task.UserID, task.DueDate)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperrors.ErrHighPriorityConflict
		}
	}
	if err := s.repo.InsertIgnore(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) BatchCreateTasks(ctx context.Context, userID string, req dto.BatchCreateTasksRequest) ([]model.Task, error) {
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return nil, apperrors.ErrInvalidDate
	}

	tasks := make([]model.Task, 0, len(req.Tasks))
	highs := 0
	for i, item := range req.Tasks {
		item.Date = req.Date
		if item.OrderIndex == 0 {
			// Positional tie-break so an unindexed batch keeps its submitted order.
			item.OrderIndex = i
		}
		t := s.newTask(userID, item)
		if t.Priority == constants.PriorityHigh {
			highs++
		}
		tasks = append(tasks, t)
	}
	if highs > 1 {
		return nil, apperrors.ErrTooManyHighPriority
	}

	if err := s.ensureHydrated(ctx, userID, req.Date); err != nil {
		return s.batchCreateDirect(ctx, userID, req.Date, tasks, highs > 0)
	}
	if highs > 0 {
		existing, err := s.cache.HighPriorityTask(ctx, userID, req.Date)
		if err != nil {
			return s.batchCreateDirect(ctx, userID, req.Date, tasks, true)
		}
		if existing != nil {
			return nil, apperrors.ErrHighPriorityConflict
		}
	}
	if err := s.cache.SetTasksBatch(ctx, userID, req.Date, tasks); err != nil {
		return s.batchCreateDirect(ctx, userID, req.Date, tasks, highs > 0)
	}
	s.enqueue(constants.OpBatchCreate, dto.BatchCreatePayload{Tasks: tasks})
	return tasks, nil
}

func (s *TaskService) batchCreateDirect(ctx context.Context, userID, day string, tasks []model.Task, hasHigh bool) ([]model.Task, error) {
	err := s.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		if hasHigh {
			existing, err := tx.HighPriorityForDate(ctx, userID, day)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperrors.ErrHighPriorityConflict
			}
		}
		for i := range tasks {
			if err := tx.InsertIgnore(ctx, &tasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskService) BatchUpdateTasks(ctx context.Context, userID string, req dto.BatchUpdateTasksRequest) ([]model.Task, error) {
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return nil, apperrors.ErrInvalidDate
	}

	highs := 0
	promotedID := ""
	setsPriority := make(map[string]bool, len(req.Tasks))
	for _, item := range req.Tasks {
		if item.ID == "" {
			return nil, apperrors.ErrTaskIDRequired
		}
		if item.Priority != nil {
			setsPriority[item.ID] = true
			if *item.Priority == constants.PriorityHigh {
				highs++
				promotedID = item.ID
			}
		}
	}
	if highs > 1 {
		return nil, apperrors.ErrTooManyHighPriority
	}

	if err := s.ensureHydrated(ctx, userID, req.Date); err != nil {
		return s.batchUpdateDirect(ctx, userID, req)
	}

	dayTasks, err := s.cache.TasksForDate(ctx, userID, req.Date)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		return s.batchUpdateDirect(ctx, userID, req)
	}
	byID := make(map[string]model.Task, len(dayTasks))
	for _, t := range dayTasks {
		byID[t.ID] = t
	}
	// Every id must exist before anything is mutated, so a bad batch leaves
	// the day untouched.
	for _, item := range req.Tasks {
		if _, ok := byID[item.ID]; !ok {
			return nil, apperrors.ErrTaskNotFound
		}
	}

	// Promoting a task to high demotes the day's current high task to medium,
	// unless that task is the one being promoted or its own batch item sets an
	// explicit priority (which is applied below and wins).
	if highs > 0 {
		for _, t := range dayTasks {
			if t.Priority != constants.PriorityHigh || t.ID == promotedID || setsPriority[t.ID] {
				continue
			}
			medium := constants.PriorityMedium
			demote := dto.TaskUpdate{Priority: &medium}
			if _, err := s.cache.UpdateTask(ctx, userID, req.Date, t.ID, demote); err != nil {
				return s.batchUpdateDirect(ctx, userID, req)
			}
			s.enqueue(constants.OpUpdate, dto.UpdatePayload{ID: t.ID, Updates: demote, UpdatedAt: s.now()})
		}
	}

	updated := make([]model.Task, 0, len(req.Tasks))
	payload := dto.BatchUpdatePayload{Tasks: make([]dto.UpdatePayload, 0, len(req.Tasks))}
	for _, item := range req.Tasks {
		t, err := s.cache.UpdateTask(ctx, userID, req.Date, item.ID, item.TaskUpdate)
		if err != nil {
			return s.batchUpdateDirect(ctx, userID, req)
		}
		if t == nil {
			return nil, apperrors.ErrTaskNotFound
		}
		updated = append(updated, *t)
		payload.Tasks = append(payload.Tasks, dto.UpdatePayload{ID: item.ID, Updates: item.TaskUpdate, UpdatedAt: t.UpdatedAt})
	}
	s.enqueue(constants.OpBatchUpdate, payload)
	return updated, nil
}

func (s *TaskService) batchUpdateDirect(ctx context.Context, userID string, req dto.BatchUpdateTasksRequest) ([]model.Task, error) {
	now := s.now()
	var updated []model.Task
	err := s.repo.Transaction(ctx, func(tx *repository.TaskRepository) error {
		tasks := make([]*model.Task, 0, len(req.Tasks))
		for _, item := range req.Tasks {
			t, err := tx.FindByID(ctx, userID, item.ID)
			if err != nil {
				return err
			}
			if t == nil {
				return apperrors.ErrTaskNotFound
			}
			tasks = append(tasks, t)
		}

		for _, item := range req.Tasks {
			if item.Priority == nil || *item.Priority != constants.PriorityHigh {
				continue
			}
			existing, err := tx.HighPriorityForDate(ctx, userID, req.Date)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != item.ID {
				if err := tx.UpdateFields(ctx, existing.ID, map[string]interface{}{"priority": constants.PriorityMedium}, now); err != nil {
					return err
				}
			}
		}

		for i, item := range req.Tasks {
			cols := storeColumns(item.TaskUpdate)
			if err := tx.UpdateFields(ctx, item.ID, cols, now); err != nil {
				return err
			}
			applyUpdateToTask(tasks[i], item.TaskUpdate, now)
		}

		updated = make([]model.Task, 0, len(tasks))
		for _, t := range tasks {
			updated = append(updated, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// locate finds the day hash holding the task by probing days around today.
// Returns the day and task on a hit, empty day on exhaustion, and
// ErrUnavailable when the cache cannot answer.
func (s *TaskService) locate(ctx context.Context, userID, taskID string) (string, *model.Task, error) {
	today := s.now()
	for _, off := range probeOffsets {
		day := today.AddDate(0, 0, off).Format(model.DateLayout)
		t, err := s.cache.Task(ctx, userID, day, taskID)
		if err != nil {
			return "", nil, err
		}
		if t != nil {
			return day, t, nil
		}
	}
	return "", nil, nil
}

func (s *TaskService) UpdateTaskStatus(ctx context.Context, userID, taskID string, status constants.TaskStatus) (*model.Task, error) {
	if taskID == "" {
		return nil, apperrors.ErrTaskIDRequired
	}
	upd := dto.TaskUpdate{Status: &status}

	day, _, err := s.locate(ctx, userID, taskID)
	if err != nil {
		return s.updateStatusDirect(ctx, userID, taskID, status)
	}

	if day == "" {
		// Outside the probe window (or evicted): find it in the store and
		// bring its day into the cache before mutating.
		stored, err := s.repo.FindByID(ctx, userID, taskID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, apperrors.ErrTaskNotFound
		}
		if err := s.ensureHydrated(ctx, userID, stored.DueDate); err != nil {
			return s.updateStatusDirect(ctx, userID, taskID, status)
		}
		day = stored.DueDate
	}

	t, err := s.cache.UpdateTask(ctx, userID, day, taskID, upd)
	if err != nil {
		return s.updateStatusDirect(ctx, userID, taskID, status)
	}
	if t == nil {
		return nil, apperrors.ErrTaskNotFound
	}
	s.enqueue(constants.OpStatusUpdate, dto.StatusUpdatePayload{ID: taskID, Status: status, UpdatedAt: t.UpdatedAt})
	return t, nil
}

func (s *TaskService) updateStatusDirect(ctx context.Context, userID, taskID string, status constants.TaskStatus) (*model.Task, error) {
	t, err := s.repo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperrors.ErrTaskNotFound
	}
	now := s.now()
	if err := s.repo.UpdateFields(ctx, taskID, map[string]interface{}{"status": status}, now); err != nil {
		return nil, err
	}
	t.Status = status
	t.UpdatedAt = now
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if taskID == "" {
		return apperrors.ErrTaskIDRequired
	}

	day, t, err := s.locate(ctx, userID, taskID)
	if err != nil {
		return s.deleteDirect(ctx, userID, taskID)
	}

	if day == "" {
		stored, err := s.repo.FindByID(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if stored == nil {
			return apperrors.ErrTaskNotFound
		}
		if err := s.ensureHydrated(ctx, userID, stored.DueDate); err != nil {
			return s.deleteDirect(ctx, userID, taskID)
		}
		day, t = stored.DueDate, stored
	}

	if err := s.cache.DeleteTask(ctx, userID, day, taskID, t.Status == constants.StatusCompleted); err != nil {
		return s.deleteDirect(ctx, userID, taskID)
	}
	s.enqueue(constants.OpDelete, dto.DeletePayload{ID: taskID})
	return nil
}

// deleteDirect removes the row from the store; deleting is idempotent so an
// already-gone task is not an error.
func (s *TaskService) deleteDirect(ctx context.Context, userID, taskID string) error {
	t, err := s.repo.FindByID(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return apperrors.ErrTaskNotFound
	}
	return s.repo.Delete(ctx, taskID)
}

func (s *TaskService) DailyTasks(ctx context.Context, userID, day string) (*dto.DailyTasks, error) {
	if _, err := time.Parse(model.DateLayout, day); err != nil {
		return nil, apperrors.ErrInvalidDate
	}

	tasks, err := s.cache.TasksForDate(ctx, userID, day)
	switch {
	case err == nil:
		summaries, serr := s.cache.DaySummaries(ctx, userID, day, summaryDays)
		if serr != nil {
			summaries, serr = s.storeSummaries(ctx, userID, day)
			if serr != nil {
				return nil, serr
			}
		}
		return buildDailyTasks(day, tasks, summaries), nil

	case errors.Is(err, cache.ErrMiss):
		tasks, err = s.repo.TasksForDate(ctx, userID, day)
		if err != nil {
			return nil, err
		}
		if herr := s.cache.Hydrate(ctx, userID, day, tasks); herr != nil {
			log.Printf("daily tasks: hydrate %s/%s: %v", userID, day, herr)
		}
		summaries, serr := s.storeSummaries(ctx, userID, day)
		if serr != nil {
			return nil, serr
		}
		return buildDailyTasks(day, tasks, summaries), nil

	default:
		tasks, err = s.repo.TasksForDate(ctx, userID, day)
		if err != nil {
			return nil, err
		}
		summaries, serr := s.storeSummaries(ctx, userID, day)
		if serr != nil {
			return nil, serr
		}
		return buildDailyTasks(day, tasks, summaries), nil
	}
}

// storeSummaries rebuilds the day-selector window from grouped store counts.
func (s *TaskService) storeSummaries(ctx context.Context, userID, referenceDay string) ([]dto.DaySummary, error) {
	ref, err := time.Parse(model.DateLayout, referenceDay)
	if err != nil {
		return nil, apperrors.ErrInvalidDate
	}
	days := make([]string, 0, summaryDays)
	for i := 0; i < summaryDays; i++ {
		days = append(days, ref.AddDate(0, 0, -i).Format(model.DateLayout))
	}

	counts, err := s.repo.DayCounts(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	today := s.now().Format(model.DateLayout)
	summaries := make([]dto.DaySummary, 0, summaryDays)
	for _, d := range days {
		c := counts[d]
		summaries = append(summaries, dto.NewDaySummary(d, today, c.Total, c.Completed))
	}
	return summaries, nil
}

func buildDailyTasks(day string, tasks []model.Task, summaries []dto.DaySummary) *dto.DailyTasks {
	out := &dto.DailyTasks{
		Date:         day,
		HasTasks:     len(tasks) > 0,
		LaterTasks:   []model.Task{},
		DaySummaries: summaries,
	}
	for i := range tasks {
		if out.PriorityTask == nil && tasks[i].Priority == constants.PriorityHigh {
			out.PriorityTask = &tasks[i]
			continue
		}
		out.LaterTasks = append(out.LaterTasks, tasks[i])
	}
	return out
}

// storeColumns maps a partial update onto store column assignments.
func storeColumns(upd dto.TaskUpdate) map[string]interface{} {
	cols := map[string]interface{}{}
	if upd.Title != nil {
		cols["title"] = *upd.Title
	}
	if upd.Subtitle != nil {
		cols["subtitle"] = *upd.Subtitle
	}
	if upd.Category != nil {
		cols["category"] = *upd.Category
	}
	if upd.Priority != nil {
		cols["priority"] = *upd.Priority
	}
	if upd.DurationMins != nil {
		cols["duration_mins"] = *upd.DurationMins
	}
	if upd.IconType != nil {
		cols["icon_type"] = *upd.IconType
	}
	if upd.Status != nil {
		cols["status"] = *upd.Status
	}
	if upd.OrderIndex != nil {
		cols["order_index"] = *upd.OrderIndex
	}
	return cols
}

func applyUpdateToTask(t *model.Task, upd dto.TaskUpdate, now time.Time) {
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
}
