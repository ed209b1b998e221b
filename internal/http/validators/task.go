package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
)

func ValidateCreateTaskRequest(r *dto.CreateTaskRequest) error {
	if r.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if r.Date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	if r.Category != "" && !r.Category.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid priority")
	}
	if r.IconType != "" && !r.IconType.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid icon type")
	}
	if r.DurationMins < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "durationMins must not be negative")
	}
	return nil
}

func ValidateBatchCreateTasksRequest(r *dto.BatchCreateTasksRequest) error {
	if r.Date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	if len(r.Tasks) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "tasks must not be empty")
	}
	for i := range r.Tasks {
		if err := ValidateCreateTaskRequest(&r.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func ValidateBatchUpdateTasksRequest(r *dto.BatchUpdateTasksRequest) error {
	if r.Date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	if len(r.Tasks) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "tasks must not be empty")
	}
	for _, item := range r.Tasks {
		if item.ID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "task id is required")
		}
		if err := validateTaskUpdate(&item.TaskUpdate); err != nil {
			return err
		}
	}
	return nil
}

func ValidateUpdateTaskStatusRequest(r *dto.UpdateTaskStatusRequest) error {
	if !r.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	return nil
}

func validateTaskUpdate(u *dto.TaskUpdate) error {
	if u.Title != nil && *u.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title must not be empty")
	}
	if u.Category != nil && !u.Category.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid priority")
	}
	if u.IconType != nil && !u.IconType.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid icon type")
	}
	if u.Status != nil && !u.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if u.DurationMins != nil && *u.DurationMins < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "durationMins must not be negative")
	}
	return nil
}
