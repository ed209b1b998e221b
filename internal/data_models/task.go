package dto

import (
	"time"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
)

type CreateTaskRequest struct {
	Title        string                 `json:"title"`
	Subtitle     string                 `json:"subtitle"`
	Category     constants.TaskCategory `json:"category"`
	Priority     constants.TaskPriority `json:"priority"`
	DurationMins int                    `json:"durationMins"`
	IconType     constants.TaskIconType `json:"iconType"`
	Date         string                 `json:"date"`
	OrderIndex   int                    `json:"orderIndex"`
}

type BatchCreateTasksRequest struct {
	Date  string              `json:"date"`
	Tasks []CreateTaskRequest `json:"tasks"`
}

// TaskUpdate carries a partial mutation: nil fields are left untouched.
type TaskUpdate struct {
	Title        *string                 `json:"title,omitempty"`
	Subtitle     *string                 `json:"subtitle,omitempty"`
	Category     *constants.TaskCategory `json:"category,omitempty"`
	Priority     *constants.TaskPriority `json:"priority,omitempty"`
	DurationMins *int                    `json:"durationMins,omitempty"`
	IconType     *constants.TaskIconType `json:"iconType,omitempty"`
	Status       *constants.TaskStatus   `json:"status,omitempty"`
	OrderIndex   *int                    `json:"orderIndex,omitempty"`
}

type UpdateTaskItem struct {
	ID string `json:"id"`
	TaskUpdate
}

type BatchUpdateTasksRequest struct {
	Date  string           `json:"date"`
	Tasks []UpdateTaskItem `json:"tasks"`
}

type UpdateTaskStatusRequest struct {
	Status constants.TaskStatus `json:"status"`
}

// DaySummary backs one day-selector pill.
type DaySummary struct {
	Date           string `json:"date"`
	Label          string `json:"label"`
	IsToday        bool   `json:"isToday"`
	IsCompleted    bool   `json:"isCompleted"`
	TotalTasks     int    `json:"totalTasks"`
	CompletedTasks int    `json:"completedTasks"`
}

// NewDaySummary builds the pill for one day. The label is "Today" for the
// current day, otherwise the short weekday name.
func NewDaySummary(day, today string, total, completed int) DaySummary {
	isToday := day == today
	label := "Today"
	if !isToday {
		if t, err := time.Parse(model.DateLayout, day); err == nil {
			label = t.Weekday().String()[:3]
		} else {
			label = day
		}
	}
	return DaySummary{
		Date:           day,
		Label:          label,
		IsToday:        isToday,
		IsCompleted:    total > 0 && completed == total,
		TotalTasks:     total,
		CompletedTasks: completed,
	}
}

type DailyTasks struct {
	Date         string       `json:"date"`
	HasTasks     bool         `json:"hasTasks"`
	PriorityTask *model.Task  `json:"priorityTask"`
	LaterTasks   []model.Task `json:"laterTasks"`
	DaySummaries []DaySummary `json:"daySummaries"`
}
