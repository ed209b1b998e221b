package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/saheelsapovadia/dopamine-detox-backend/internal/data_models"
	apperrors "github.com/saheelsapovadia/dopamine-detox-backend/internal/errors"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/http/validators"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/services"
)

type Handler struct {
	taskService *services.TaskService
}

func NewHandler(taskService *services.TaskService) *Handler {
	return &Handler{
		taskService: taskService,
	}
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"data":    data,
	})
}

// httpError translates service errors into echo errors, keeping the status
// carried by application exceptions.
func httpError(err error) error {
	return echo.NewHTTPError(apperrors.StatusCode(err), err.Error())
}

func (h *Handler) GetDailyTasks(c echo.Context) error {
	userID := c.Param("user_id")
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}

	daily, err := h.taskService.DailyTasks(c.Request().Context(), userID, date)
	if err != nil {
		return httpError(err)
	}
	return respond(c, http.StatusOK, daily)
}

func (h *Handler) CreateTask(c echo.Context) error {
	userID := c.Param("user_id")

	var req dto.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return respond(c, http.StatusCreated, task)
}

func (h *Handler) BatchCreateTasks(c echo.Context) error {
	userID := c.Param("user_id")

	var req dto.BatchCreateTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateBatchCreateTasksRequest(&req); err != nil {
		return err
	}

	tasks, err := h.taskService.BatchCreateTasks(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return respond(c, http.StatusCreated, tasks)
}

func (h *Handler) BatchUpdateTasks(c echo.Context) error {
	userID := c.Param("user_id")

	var req dto.BatchUpdateTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateBatchUpdateTasksRequest(&req); err != nil {
		return err
	}

	tasks, err := h.taskService.BatchUpdateTasks(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return respond(c, http.StatusOK, tasks)
}

func (h *Handler) UpdateTaskStatus(c echo.Context) error {
	userID := c.Param("user_id")
	taskID := c.Param("task_id")

	var req dto.UpdateTaskStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateUpdateTaskStatusRequest(&req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTaskStatus(c.Request().Context(), userID, taskID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return respond(c, http.StatusOK, task)
}

func (h *Handler) DeleteTask(c echo.Context) error {
	userID := c.Param("user_id")
	taskID := c.Param("task_id")

	if err := h.taskService.DeleteTask(c.Request().Context(), userID, taskID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
