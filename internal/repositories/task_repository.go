package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
)

// priorityRank orders day listings high → medium → low in SQL, matching the
// cache-side sort.
const priorityRank = "CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END"

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Transaction runs fn against a transactional copy of the repository,
// committing when fn returns nil.
func (r *TaskRepository) Transaction(ctx context.Context, fn func(*TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
}

func (r *TaskRepository) TasksForDate(ctx context.Context, userID, day string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND due_date = ?", userID, day).
		Order(priorityRank).
		Order("order_index").
		Find(&tasks).Error
	return tasks, err
}

// FindByID returns nil when no such task exists for the user.
func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ? AND user_id = ?", taskID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) HighPriorityForDate(ctx context.Context, userID, day string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		First(&task, "user_id = ? AND due_date = ? AND priority = ?", userID, day, constants.PriorityHigh).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// InsertIgnore inserts the task, silently skipping a duplicate id so that a
// redelivered CREATE replays cleanly.
func (r *TaskRepository) InsertIgnore(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(task).Error
}

// UpdateFields applies a targeted column update by task id, stamping
// updated_at from the mutation timestamp. Updating a missing row is not an
// error.
func (r *TaskRepository) UpdateFields(ctx context.Context, taskID string, fields map[string]interface{}, updatedAt time.Time) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = updatedAt
	return r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(fields).Error
}

// Delete removes the row by id; deleting a nonexistent row is a no-op.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	return r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", taskID).Error
}

type DayCount struct {
	Total     int
	Completed int
}

// DayCounts returns {total, completed} per day in one grouped query.
func (r *TaskRepository) DayCounts(ctx context.Context, userID string, days []string) (map[string]DayCount, error) {
	type row struct {
		DueDate   string
		Total     int
		Completed int
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("due_date, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed", constants.StatusCompleted).
		Where("user_id = ? AND due_date IN ?", userID, days).
		Group("due_date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]DayCount, len(rows))
	for _, line := range rows {
		counts[line.DueDate] = DayCount{Total: line.Total, Completed: line.Completed}
	}
	return counts, nil
}
