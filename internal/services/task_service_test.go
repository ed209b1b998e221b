package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/cache"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
	apperrors "github.com/saheelsapovadia/dopamine-detox-backend/internal/errors"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/queue"
	repository "github.com/saheelsapovadia/dopamine-detox-backend/internal/repositories"
)

// mockTaskCache is an in-memory stand-in for the Redis day hashes. Setting
// down simulates an unreachable cache.
type mockTaskCache struct {
	mu       sync.Mutex
	days     map[string]map[string]model.Task
	hydrated map[string]bool
	down     bool
}

func newMockTaskCache() *mockTaskCache {
	return &mockTaskCache{
		days:     make(map[string]map[string]model.Task),
		hydrated: make(map[string]bool),
	}
}

func dayKey(userID, day string) string { return userID + ":" + day }

func (m *mockTaskCache) seed(userID, day string, tasks ...model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		bucket[t.ID] = t
	}
	m.days[dayKey(userID, day)] = bucket
	m.hydrated[dayKey(userID, day)] = true
}

func (m *mockTaskCache) TasksForDate(ctx context.Context, userID, day string) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, cache.ErrUnavailable
	}
	key := dayKey(userID, day)
	if !m.hydrated[key] {
		return nil, cache.ErrMiss
	}
	tasks := make([]model.Task, 0, len(m.days[key]))
	for _, t := range m.days[key] {
		tasks = append(tasks, t)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return tasks[i].OrderIndex < tasks[j].OrderIndex
	})
	return tasks, nil
}

func (m *mockTaskCache) Task(ctx context.Context, userID, day, taskID string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, cache.ErrUnavailable
	}
	if t, ok := m.days[dayKey(userID, day)][taskID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *mockTaskCache) HighPriorityTask(ctx context.Context, userID, day string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, cache.ErrUnavailable
	}
	for _, t := range m.days[dayKey(userID, day)] {
		if t.Priority == constants.PriorityHigh {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (m *mockTaskCache) SetTask(ctx context.Context, userID, day string, task model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return cache.ErrUnavailable
	}
	key := dayKey(userID, day)
	if m.days[key] == nil {
		m.days[key] = make(map[string]model.Task)
	}
	m.days[key][task.ID] = task
	m.hydrated[key] = true
	return nil
}

func (m *mockTaskCache) SetTasksBatch(ctx context.Context, userID, day string, tasks []model.Task) error {
	for _, t := range tasks {
		if err := m.SetTask(ctx, userID, day, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockTaskCache) UpdateTask(ctx context.Context, userID, day, taskID string, upd dto.TaskUpdate) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, cache.ErrUnavailable
	}
	t, ok := m.days[dayKey(userID, day)][taskID]
	if !ok {
		return nil, nil
	}
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
	t.UpdatedAt = time.Now().UTC()
	m.days[dayKey(userID, day)][taskID] = t
	return &t, nil
}

func (m *mockTaskCache) DeleteTask(ctx context.Context, userID, day, taskID string, wasCompleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return cache.ErrUnavailable
	}
	delete(m.days[dayKey(userID, day)], taskID)
	return nil
}

func (m *mockTaskCache) Hydrate(ctx context.Context, userID, day string, tasks []model.Task) error {
	if m.isDown() {
		return cache.ErrUnavailable
	}
	m.seed(userID, day, tasks...)
	return nil
}

func (m *mockTaskCache) IsHydrated(ctx context.Context, userID, day string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return false, cache.ErrUnavailable
	}
	return m.hydrated[dayKey(userID, day)], nil
}

func (m *mockTaskCache) DaySummaries(ctx context.Context, userID, referenceDay string, numDays int) ([]dto.DaySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, cache.ErrUnavailable
	}
	ref, err := time.Parse(model.DateLayout, referenceDay)
	if err != nil {
		return nil, err
	}
	today := time.Now().UTC().Format(model.DateLayout)
	summaries := make([]dto.DaySummary, 0, numDays)
	for i := 0; i < numDays; i++ {
		day := ref.AddDate(0, 0, -i).Format(model.DateLayout)
		total, completed := 0, 0
		for _, t := range m.days[dayKey(userID, day)] {
			total++
			if t.Status == constants.StatusCompleted {
				completed++
			}
		}
		summaries = append(summaries, dto.NewDaySummary(day, today, total, completed))
	}
	return summaries, nil
}

func (m *mockTaskCache) isDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down
}

func (m *mockTaskCache) task(userID, day, taskID string) (model.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.days[dayKey(userID, day)][taskID]
	return t, ok
}

// mockSyncQueue records enqueued mutations and serves them back through the
// consumer-side methods.
type mockSyncQueue struct {
	mu       sync.Mutex
	entries  []queue.Entry
	readPos  int
	acked    map[string]bool
	dlq      []queue.Entry
	pending  []queue.PendingEntry
	nextID   int
	down     bool
}

func newMockSyncQueue() *mockSyncQueue {
	return &mockSyncQueue{acked: make(map[string]bool)}
}

func (m *mockSyncQueue) Enqueue(ctx context.Context, op constants.SyncOp, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return queue.ErrUnavailable
	}
	m.nextID++
	m.entries = append(m.entries, queue.Entry{
		ID:      fmt.Sprintf("%d-0", m.nextID),
		Op:      op,
		Payload: string(payload),
	})
	return nil
}

func (m *mockSyncQueue) EnsureGroup(ctx context.Context) error { return nil }

func (m *mockSyncQueue) Read(ctx context.Context, count int) ([]queue.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, queue.ErrUnavailable
	}
	var out []queue.Entry
	for m.readPos < len(m.entries) && len(out) < count {
		out = append(out, m.entries[m.readPos])
		m.readPos++
	}
	return out, nil
}

func (m *mockSyncQueue) Ack(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked[entryID] = true
	return nil
}

func (m *mockSyncQueue) Pending(ctx context.Context, count int) ([]queue.PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, nil
}

func (m *mockSyncQueue) MoveToDLQ(ctx context.Context, entryID string, deliveries int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == entryID {
			m.dlq = append(m.dlq, e)
			break
		}
	}
	m.acked[entryID] = true
	return nil
}

func (m *mockSyncQueue) Stats(ctx context.Context) (queue.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return queue.Stats{
		StreamDepth: int64(len(m.entries)),
		DLQDepth:    int64(len(m.dlq)),
	}, nil
}

func (m *mockSyncQueue) ops() []constants.SyncOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]constants.SyncOp, 0, len(m.entries))
	for _, e := range m.entries {
		ops = append(ops, e.Op)
	}
	return ops
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&model.Task{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

const testDay = "2026-08-30"

func newTestService(t *testing.T) (*TaskService, *repository.TaskRepository, *mockTaskCache, *mockSyncQueue) {
	repo := repository.NewTaskRepository(setupTestDB(t))
	taskCache := newMockTaskCache()
	syncQueue := newMockSyncQueue()
	svc := NewTaskService(repo, taskCache, syncQueue)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	}
	return svc, repo, taskCache, syncQueue
}

func TestCreateTask_WritesCacheAndEnqueues(t *testing.T) {
	svc, repo, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "u1", dto.CreateTaskRequest{Title: "Read", Date: testDay})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Error("expected task id to be set")
	}
	if task.Priority != constants.PriorityMedium || task.Status != constants.StatusPending {
		t.Errorf("expected defaults applied, got %+v", task)
	}

	if _, ok := taskCache.task("u1", testDay, task.ID); !ok {
		t.Error("expected task in the cache")
	}

	ops := syncQueue.ops()
	if len(ops) != 1 || ops[0] != constants.OpCreate {
		t.Errorf("expected one CREATE entry, got %v", ops)
	}

	// Store convergence is the worker's job; the row must not be there yet.
	stored, err := repo.FindByID(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored != nil {
		t.Error("expected store write to be deferred to the sync worker")
	}
}

func TestCreateTask_SecondHighPriorityRejected(t *testing.T) {
	svc, _, taskCache, _ := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay, model.Task{ID: "h", UserID: "u1", Priority: constants.PriorityHigh, DueDate: testDay})

	_, err := svc.CreateTask(ctx, "u1", dto.CreateTaskRequest{
		Title: "Another big one", Date: testDay, Priority: constants.PriorityHigh,
	})
	if !errors.Is(err, apperrors.ErrHighPriorityConflict) {
		t.Errorf("expected ErrHighPriorityConflict, got %v", err)
	}
}

func TestCreateTask_HydratesBeforeConflictCheck(t *testing.T) {
	svc, repo, taskCache, _ := newTestService(t)
	ctx := context.Background()

	// The existing high task lives only in the store: the conflict must be
	// found after hydration.
	existing := model.Task{ID: "h", UserID: "u1", Title: "Focus", Priority: constants.PriorityHigh,
		Category: constants.CategoryOther, Status: constants.StatusPending,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: testDay}
	if err := repo.InsertIgnore(ctx, &existing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := svc.CreateTask(ctx, "u1", dto.CreateTaskRequest{
		Title: "Clash", Date: testDay, Priority: constants.PriorityHigh,
	})
	if !errors.Is(err, apperrors.ErrHighPriorityConflict) {
		t.Errorf("expected ErrHighPriorityConflict, got %v", err)
	}

	if hydrated, _ := taskCache.IsHydrated(ctx, "u1", testDay); !hydrated {
		t.Error("expected the day to be hydrated from the store")
	}
}

func TestCreateTask_CacheDownFallsBackToStore(t *testing.T) {
	svc, repo, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()
	taskCache.down = true

	task, err := svc.CreateTask(ctx, "u1", dto.CreateTaskRequest{Title: "Read", Date: testDay})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	stored, err := repo.FindByID(ctx, "u1", task.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected direct store write when the cache is down")
	}
	if len(syncQueue.ops()) != 0 {
		t.Error("direct writes must not be enqueued")
	}
}

func TestCreateTask_CacheDownStillEnforcesInvariant(t *testing.T) {
	svc, repo, taskCache, _ := newTestService(t)
	ctx := context.Background()

	existing := model.Task{ID: "h", UserID: "u1", Title: "Focus", Priority: constants.PriorityHigh,
		Category: constants.CategoryOther, Status: constants.StatusPending,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: testDay}
	if err := repo.InsertIgnore(ctx, &existing); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	taskCache.down = true

	_, err := svc.CreateTask(ctx, "u1", dto.CreateTaskRequest{
		Title: "Clash", Date: testDay, Priority: constants.PriorityHigh,
	})
	if !errors.Is(err, apperrors.ErrHighPriorityConflict) {
		t.Errorf("expected ErrHighPriorityConflict from the store check, got %v", err)
	}
}

func TestCreateTask_InvalidDate(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.CreateTask(context.Background(), "u1", dto.CreateTaskRequest{Title: "x", Date: "30-08-2026"})
	if !errors.Is(err, apperrors.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCreateTask_ConcurrentCreates(t *testing.T) {
	svc, _, _, syncQueue := newTestService(t)

	const concurrentCount = 20
	var wg sync.WaitGroup
	wg.Add(concurrentCount)

	errs := make(chan error, concurrentCount)
	for i := 0; i < concurrentCount; i++ {
		go func(idx int) {
			defer wg.Done()
			_, err := svc.CreateTask(context.Background(), "u1", dto.CreateTaskRequest{
				Title: fmt.Sprintf("task-%d", idx),
				Date:  testDay,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent create failed: %v", err)
		}
	}

	// Cache completeness is not asserted: a concurrent hydration may race a
	// parallel write (last write wins). Every accepted create must still have
	// enqueued its sync entry.
	if got := len(syncQueue.ops()); got != concurrentCount {
		t.Errorf("expected %d sync entries, got %d", concurrentCount, got)
	}
}

func TestBatchCreate_RejectsTwoHighPriority(t *testing.T) {
	svc, _, _, syncQueue := newTestService(t)

	_, err := svc.BatchCreateTasks(context.Background(), "u1", dto.BatchCreateTasksRequest{
		Date: testDay,
		Tasks: []dto.CreateTaskRequest{
			{Title: "a", Priority: constants.PriorityHigh},
			{Title: "b", Priority: constants.PriorityHigh},
		},
	})
	if !errors.Is(err, apperrors.ErrTooManyHighPriority) {
		t.Errorf("expected ErrTooManyHighPriority, got %v", err)
	}
	if len(syncQueue.ops()) != 0 {
		t.Error("a rejected batch must not enqueue anything")
	}
}

func TestBatchCreate_EnqueuesOneEntry(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	tasks, err := svc.BatchCreateTasks(ctx, "u1", dto.BatchCreateTasksRequest{
		Date: testDay,
		Tasks: []dto.CreateTaskRequest{
			{Title: "a", Priority: constants.PriorityHigh},
			{Title: "b"},
			{Title: "c", Priority: constants.PriorityLow},
		},
	})
	if err != nil {
		t.Fatalf("BatchCreateTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	cached, err := taskCache.TasksForDate(ctx, "u1", testDay)
	if err != nil {
		t.Fatalf("TasksForDate failed: %v", err)
	}
	if len(cached) != 3 {
		t.Errorf("expected 3 cached tasks, got %d", len(cached))
	}

	ops := syncQueue.ops()
	if len(ops) != 1 || ops[0] != constants.OpBatchCreate {
		t.Errorf("expected one BATCH_CREATE entry, got %v", ops)
	}
}

func TestBatchCreate_DefaultsOrderIndexToPosition(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	tasks, err := svc.BatchCreateTasks(ctx, "u1", dto.BatchCreateTasksRequest{
		Date: testDay,
		Tasks: []dto.CreateTaskRequest{
			{Title: "a"},
			{Title: "b"},
			{Title: "c", OrderIndex: 9},
		},
	})
	if err != nil {
		t.Fatalf("BatchCreateTasks failed: %v", err)
	}

	if tasks[0].OrderIndex != 0 || tasks[1].OrderIndex != 1 {
		t.Errorf("expected positional indices 0 and 1, got %d and %d", tasks[0].OrderIndex, tasks[1].OrderIndex)
	}
	if tasks[2].OrderIndex != 9 {
		t.Errorf("expected explicit index 9 kept, got %d", tasks[2].OrderIndex)
	}
}

func TestBatchUpdate_UnknownIDLeavesDayUntouched(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay,
		model.Task{ID: "a", UserID: "u1", Title: "a", Priority: constants.PriorityMedium, DueDate: testDay})

	title := "changed"
	_, err := svc.BatchUpdateTasks(ctx, "u1", dto.BatchUpdateTasksRequest{
		Date: testDay,
		Tasks: []dto.UpdateTaskItem{
			{ID: "a", TaskUpdate: dto.TaskUpdate{Title: &title}},
			{ID: "ghost", TaskUpdate: dto.TaskUpdate{Title: &title}},
		},
	})
	if !errors.Is(err, apperrors.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	got, _ := taskCache.task("u1", testDay, "a")
	if got.Title != "a" {
		t.Error("expected no mutation when any id is unknown")
	}
	if len(syncQueue.ops()) != 0 {
		t.Error("a rejected batch must not enqueue anything")
	}
}

func TestBatchUpdate_DemotesPreviousHighTask(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay,
		model.Task{ID: "old-high", UserID: "u1", Title: "old", Priority: constants.PriorityHigh, DueDate: testDay},
		model.Task{ID: "riser", UserID: "u1", Title: "riser", Priority: constants.PriorityMedium, DueDate: testDay},
	)

	high := constants.PriorityHigh
	updated, err := svc.BatchUpdateTasks(ctx, "u1", dto.BatchUpdateTasksRequest{
		Date: testDay,
		Tasks: []dto.UpdateTaskItem{
			{ID: "riser", TaskUpdate: dto.TaskUpdate{Priority: &high}},
		},
	})
	if err != nil {
		t.Fatalf("BatchUpdateTasks failed: %v", err)
	}
	if len(updated) != 1 || updated[0].Priority != constants.PriorityHigh {
		t.Fatalf("expected riser promoted, got %+v", updated)
	}

	demoted, _ := taskCache.task("u1", testDay, "old-high")
	if demoted.Priority != constants.PriorityMedium {
		t.Errorf("expected old high task demoted to medium, got %s", demoted.Priority)
	}

	ops := syncQueue.ops()
	if len(ops) != 2 || ops[0] != constants.OpUpdate || ops[1] != constants.OpBatchUpdate {
		t.Errorf("expected UPDATE (demotion) then BATCH_UPDATE, got %v", ops)
	}
}

func TestBatchUpdate_DemotesHighTaskAlsoInBatch(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay,
		model.Task{ID: "old-high", UserID: "u1", Title: "old", Priority: constants.PriorityHigh, DueDate: testDay},
		model.Task{ID: "riser", UserID: "u1", Title: "riser", Priority: constants.PriorityMedium, DueDate: testDay},
	)

	// old-high's item only renames it; the promotion of riser must still
	// demote old-high.
	title := "renamed"
	high := constants.PriorityHigh
	_, err := svc.BatchUpdateTasks(ctx, "u1", dto.BatchUpdateTasksRequest{
		Date: testDay,
		Tasks: []dto.UpdateTaskItem{
			{ID: "old-high", TaskUpdate: dto.TaskUpdate{Title: &title}},
			{ID: "riser", TaskUpdate: dto.TaskUpdate{Priority: &high}},
		},
	})
	if err != nil {
		t.Fatalf("BatchUpdateTasks failed: %v", err)
	}

	old, _ := taskCache.task("u1", testDay, "old-high")
	if old.Priority != constants.PriorityMedium {
		t.Errorf("expected old high task demoted to medium, got %s", old.Priority)
	}
	if old.Title != "renamed" {
		t.Errorf("expected rename applied, got %q", old.Title)
	}

	cached, err := taskCache.TasksForDate(ctx, "u1", testDay)
	if err != nil {
		t.Fatalf("TasksForDate failed: %v", err)
	}
	highs := 0
	for _, c := range cached {
		if c.Priority == constants.PriorityHigh {
			highs++
		}
	}
	if highs != 1 {
		t.Errorf("expected exactly one high-priority task, got %d", highs)
	}

	ops := syncQueue.ops()
	if len(ops) != 2 || ops[0] != constants.OpUpdate || ops[1] != constants.OpBatchUpdate {
		t.Errorf("expected UPDATE (demotion) then BATCH_UPDATE, got %v", ops)
	}
}

func TestBatchUpdate_ExplicitPrioritySupersedesDemotion(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay,
		model.Task{ID: "old-high", UserID: "u1", Title: "old", Priority: constants.PriorityHigh, DueDate: testDay},
		model.Task{ID: "riser", UserID: "u1", Title: "riser", Priority: constants.PriorityMedium, DueDate: testDay},
	)

	low := constants.PriorityLow
	high := constants.PriorityHigh
	_, err := svc.BatchUpdateTasks(ctx, "u1", dto.BatchUpdateTasksRequest{
		Date: testDay,
		Tasks: []dto.UpdateTaskItem{
			{ID: "old-high", TaskUpdate: dto.TaskUpdate{Priority: &low}},
			{ID: "riser", TaskUpdate: dto.TaskUpdate{Priority: &high}},
		},
	})
	if err != nil {
		t.Fatalf("BatchUpdateTasks failed: %v", err)
	}

	old, _ := taskCache.task("u1", testDay, "old-high")
	if old.Priority != constants.PriorityLow {
		t.Errorf("expected explicit low to win over demotion, got %s", old.Priority)
	}

	// No separate demotion entry: the batch's own item covers old-high.
	ops := syncQueue.ops()
	if len(ops) != 1 || ops[0] != constants.OpBatchUpdate {
		t.Errorf("expected a single BATCH_UPDATE entry, got %v", ops)
	}
}

func TestBatchUpdate_SuccessivePromotionsKeepOneHigh(t *testing.T) {
	svc, _, taskCache, _ := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay,
		model.Task{ID: "a", UserID: "u1", Title: "a", Priority: constants.PriorityHigh, DueDate: testDay},
		model.Task{ID: "b", UserID: "u1", Title: "b", Priority: constants.PriorityMedium, DueDate: testDay},
		model.Task{ID: "c", UserID: "u1", Title: "c", Priority: constants.PriorityMedium, DueDate: testDay},
	)

	high := constants.PriorityHigh
	for _, id := range []string{"b", "c"} {
		_, err := svc.BatchUpdateTasks(ctx, "u1", dto.BatchUpdateTasksRequest{
			Date:  testDay,
			Tasks: []dto.UpdateTaskItem{{ID: id, TaskUpdate: dto.TaskUpdate{Priority: &high}}},
		})
		if err != nil {
			t.Fatalf("promoting %s failed: %v", id, err)
		}
	}

	cached, err := taskCache.TasksForDate(ctx, "u1", testDay)
	if err != nil {
		t.Fatalf("TasksForDate failed: %v", err)
	}
	for _, c := range cached {
		want := constants.PriorityMedium
		if c.ID == "c" {
			want = constants.PriorityHigh
		}
		if c.Priority != want {
			t.Errorf("task %s: expected priority %s, got %s", c.ID, want, c.Priority)
		}
	}
}

func TestBatchUpdate_ConcurrentPromotions(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)

	taskCache.seed("u1", testDay,
		model.Task{ID: "a", UserID: "u1", Title: "a", Priority: constants.PriorityHigh, DueDate: testDay},
		model.Task{ID: "b", UserID: "u1", Title: "b", Priority: constants.PriorityMedium, DueDate: testDay},
		model.Task{ID: "c", UserID: "u1", Title: "c", Priority: constants.PriorityMedium, DueDate: testDay},
	)

	// Two callers promote different tasks at once. When the calls serialize,
	// one high task remains; when their snapshots overlap, both promotions
	// land (last write wins) and the day can transiently hold two high tasks
	// until a later write reconciles it. Either way the previously high task
	// is demoted and both batches must reach the sync queue.
	high := constants.PriorityHigh
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"b", "c"} {
		wg.Add(1)
		go func(taskID string) {
			defer wg.Done()
			_, err := svc.BatchUpdateTasks(context.Background(), "u1", dto.BatchUpdateTasksRequest{
				Date:  testDay,
				Tasks: []dto.UpdateTaskItem{{ID: taskID, TaskUpdate: dto.TaskUpdate{Priority: &high}}},
			})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent promotion failed: %v", err)
		}
	}

	cached, err := taskCache.TasksForDate(context.Background(), "u1", testDay)
	if err != nil {
		t.Fatalf("TasksForDate failed: %v", err)
	}
	highs := map[string]bool{}
	for _, c := range cached {
		if c.Priority == constants.PriorityHigh {
			highs[c.ID] = true
		}
	}
	if highs["a"] {
		t.Error("expected previously high task demoted")
	}
	if len(highs) == 0 || len(highs) > 2 {
		t.Errorf("expected one or two promoted high tasks, got %v", highs)
	}

	batches := 0
	for _, op := range syncQueue.ops() {
		if op == constants.OpBatchUpdate {
			batches++
		}
	}
	if batches != 2 {
		t.Errorf("expected 2 BATCH_UPDATE entries, got %d", batches)
	}
}

func TestUpdateTaskStatus_ProbesNearbyDays(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	yesterday := "2026-08-29"
	taskCache.seed("u1", yesterday,
		model.Task{ID: "t1", UserID: "u1", Title: "x", Status: constants.StatusPending, DueDate: yesterday})

	task, err := svc.UpdateTaskStatus(ctx, "u1", "t1", constants.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}
	if task.Status != constants.StatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}

	ops := syncQueue.ops()
	if len(ops) != 1 || ops[0] != constants.OpStatusUpdate {
		t.Errorf("expected one STATUS_UPDATE entry, got %v", ops)
	}
}

func TestUpdateTaskStatus_StoreLookupOutsideProbeWindow(t *testing.T) {
	svc, repo, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	farDay := "2026-08-15"
	old := model.Task{ID: "t1", UserID: "u1", Title: "old", Priority: constants.PriorityMedium,
		Category: constants.CategoryOther, Status: constants.StatusPending,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: farDay}
	if err := repo.InsertIgnore(ctx, &old); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	task, err := svc.UpdateTaskStatus(ctx, "u1", "t1", constants.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}
	if task.Status != constants.StatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}

	// The far day should have been hydrated so the mutation went cache-first.
	if hydrated, _ := taskCache.IsHydrated(ctx, "u1", farDay); !hydrated {
		t.Error("expected the task's day to be hydrated")
	}
	if len(syncQueue.ops()) != 1 {
		t.Errorf("expected one sync entry, got %v", syncQueue.ops())
	}
}

func TestUpdateTaskStatus_UnknownTask(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.UpdateTaskStatus(context.Background(), "u1", "ghost", constants.StatusCompleted)
	if !errors.Is(err, apperrors.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteTask_RemovesFromCacheAndEnqueues(t *testing.T) {
	svc, _, taskCache, syncQueue := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay,
		model.Task{ID: "t1", UserID: "u1", Title: "x", Status: constants.StatusCompleted, DueDate: testDay})

	if err := svc.DeleteTask(ctx, "u1", "t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	if _, ok := taskCache.task("u1", testDay, "t1"); ok {
		t.Error("expected task removed from cache")
	}
	ops := syncQueue.ops()
	if len(ops) != 1 || ops[0] != constants.OpDelete {
		t.Errorf("expected one DELETE entry, got %v", ops)
	}
}

func TestDeleteTask_CacheDownDeletesFromStore(t *testing.T) {
	svc, repo, taskCache, _ := newTestService(t)
	ctx := context.Background()

	task := model.Task{ID: "t1", UserID: "u1", Title: "x", Priority: constants.PriorityMedium,
		Category: constants.CategoryOther, Status: constants.StatusPending,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: testDay}
	if err := repo.InsertIgnore(ctx, &task); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	taskCache.down = true

	if err := svc.DeleteTask(ctx, "u1", "t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	stored, err := repo.FindByID(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored != nil {
		t.Error("expected row deleted from store")
	}
}

func TestDailyTasks_CacheMissHydratesFromStore(t *testing.T) {
	svc, repo, taskCache, _ := newTestService(t)
	ctx := context.Background()

	high := model.Task{ID: "h", UserID: "u1", Title: "Focus", Priority: constants.PriorityHigh,
		Category: constants.CategoryOther, Status: constants.StatusPending,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: testDay}
	later := model.Task{ID: "m", UserID: "u1", Title: "Later", Priority: constants.PriorityMedium,
		Category: constants.CategoryOther, Status: constants.StatusCompleted,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: testDay}
	for _, task := range []model.Task{high, later} {
		task := task
		if err := repo.InsertIgnore(ctx, &task); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	daily, err := svc.DailyTasks(ctx, "u1", testDay)
	if err != nil {
		t.Fatalf("DailyTasks failed: %v", err)
	}

	if !daily.HasTasks {
		t.Error("expected HasTasks")
	}
	if daily.PriorityTask == nil || daily.PriorityTask.ID != "h" {
		t.Errorf("expected priority task h, got %+v", daily.PriorityTask)
	}
	if len(daily.LaterTasks) != 1 || daily.LaterTasks[0].ID != "m" {
		t.Errorf("expected one later task m, got %+v", daily.LaterTasks)
	}
	if len(daily.DaySummaries) != summaryDays {
		t.Errorf("expected %d summaries, got %d", summaryDays, len(daily.DaySummaries))
	}

	if hydrated, _ := taskCache.IsHydrated(ctx, "u1", testDay); !hydrated {
		t.Error("expected day hydrated after the miss")
	}
}

func TestDailyTasks_EmptyHydratedDay(t *testing.T) {
	svc, _, taskCache, _ := newTestService(t)
	ctx := context.Background()

	taskCache.seed("u1", testDay)

	daily, err := svc.DailyTasks(ctx, "u1", testDay)
	if err != nil {
		t.Fatalf("DailyTasks failed: %v", err)
	}
	if daily.HasTasks {
		t.Error("expected HasTasks false for an empty day")
	}
	if daily.PriorityTask != nil {
		t.Error("expected no priority task")
	}
	if len(daily.LaterTasks) != 0 {
		t.Errorf("expected no later tasks, got %d", len(daily.LaterTasks))
	}
}

func TestDailyTasks_CacheDownServesFromStore(t *testing.T) {
	svc, repo, taskCache, _ := newTestService(t)
	ctx := context.Background()

	task := model.Task{ID: "t1", UserID: "u1", Title: "x", Priority: constants.PriorityMedium,
		Category: constants.CategoryOther, Status: constants.StatusPending,
		IconType: constants.IconDefault, DurationMins: 25, DueDate: testDay}
	if err := repo.InsertIgnore(ctx, &task); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	taskCache.down = true

	daily, err := svc.DailyTasks(ctx, "u1", testDay)
	if err != nil {
		t.Fatalf("DailyTasks failed: %v", err)
	}
	if !daily.HasTasks || len(daily.LaterTasks) != 1 {
		t.Errorf("expected the store listing, got %+v", daily)
	}
	if len(daily.DaySummaries) != summaryDays {
		t.Errorf("expected %d summaries from store counts, got %d", summaryDays, len(daily.DaySummaries))
	}
}
