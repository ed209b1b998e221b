package dto

import (
	"time"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/constants"
	model "github.com/saheelsapovadia/dopamine-detox-backend/internal/models"
)

// Sync payloads carry enough to replay a mutation against the task store.
// A CREATE payload is the full task record itself.

type BatchCreatePayload struct {
	Tasks []model.Task `json:"tasks"`
}

type UpdatePayload struct {
	ID        string     `json:"id"`
	Updates   TaskUpdate `json:"updates"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type BatchUpdatePayload struct {
	Tasks []UpdatePayload `json:"tasks"`
}

type StatusUpdatePayload struct {
	ID        string               `json:"id"`
	Status    constants.TaskStatus `json:"status"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type DeletePayload struct {
	ID string `json:"id"`
}
