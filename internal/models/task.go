package model

import (
	"time"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
)

// DateLayout is the ISO day format used for the cache partition key and the
// due_date column.
const DateLayout = "2006-01-02"

// Task is both the relational row and the cached record: the JSON form written
// into the per-day Redis hash is the same camelCase shape the API returns.
type Task struct {
	ID           string                 `gorm:"primaryKey;size:36" json:"id"`
	UserID       string                 `gorm:"size:36;not null;index:idx_task_user_date" json:"userId"`
	Title        string                 `gorm:"size:200;not null" json:"title"`
	Subtitle     string                 `gorm:"size:200" json:"subtitle,omitempty"`
	Category     constants.TaskCategory `gorm:"type:varchar(20);not null;default:OTHER" json:"category"`
	Priority     constants.TaskPriority `gorm:"type:varchar(10);not null;default:medium" json:"priority"`
	DurationMins int                    `gorm:"not null;default:25" json:"durationMins"`
	IconType     constants.TaskIconType `gorm:"type:varchar(20);not null;default:'default'" json:"iconType"`
	Status       constants.TaskStatus   `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	DueDate      string                 `gorm:"column:due_date;size:10;not null;index:idx_task_user_date" json:"date"`
	OrderIndex   int                    `gorm:"not null;default:0" json:"orderIndex"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}
