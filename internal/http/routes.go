package http

import (
	"time"

	"github.com/labstack/echo/v4"

	middleware "github.com/saheelsapovadia/dopamine-detox-backend/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.GET("/health", h.Health)

	g := e.Group("/api/v1/users/:user_id")
	g.GET("/tasks/daily", h.GetDailyTasks)
	g.POST("/tasks", h.CreateTask)
	g.POST("/tasks/batch", h.BatchCreateTasks)
	g.PUT("/tasks/batch", h.BatchUpdateTasks)
	g.PATCH("/tasks/:task_id", h.UpdateTaskStatus)
	g.DELETE("/tasks/:task_id", h.DeleteTask)
}
