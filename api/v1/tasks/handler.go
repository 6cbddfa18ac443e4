package tasks

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"agenthub/api/v1/middleware"
	"agenthub/internal/httpx"
	"agenthub/internal/task"
)

// Handler handles agent task requests
type Handler struct {
	tasks *task.Service
}

// NewHandler creates a new tasks handler
func NewHandler(tasks *task.Service) *Handler {
	return &Handler{tasks: tasks}
}

// RunRequest represents the body of a run request
type RunRequest struct {
	AgentID   int    `json:"agent" binding:"required,gt=0"`
	InputText string `json:"input_text" binding:"required"`
}

// Run handles POST /api/v1/tasks/run. The task is created pending and
// handed to the queue; the response does not wait for the model call.
func (h *Handler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	t, err := h.tasks.Run(c.Request.Context(), middleware.Identity(c), req.AgentID, req.InputText)
	if err != nil {
		if errors.Is(err, task.ErrAgentNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("agent not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create task", err))
		return
	}
	httpx.Created(c, t)
}

// List handles GET /api/v1/tasks
func (h *Handler) List(c *gin.Context) {
	f := task.ListFilter{
		Status:   c.Query("status"),
		Ordering: c.Query("ordering"),
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	if v := c.Query("agent"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid agent filter"))
			return
		}
		f.AgentID = id
	}
	if v := c.Query("created_after"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("created_after must be RFC3339"))
			return
		}
		f.CreatedAfter = &ts
	}
	if v := c.Query("created_before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("created_before must be RFC3339"))
			return
		}
		f.CreatedBefore = &ts
	}

	items, total, err := h.tasks.List(c.Request.Context(), middleware.Identity(c), f)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}

	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	httpx.OKItems(c, items, total, page, pageSize)
}

// Get handles GET /api/v1/tasks/:id
func (h *Handler) Get(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	t, err := h.tasks.Get(c.Request.Context(), middleware.Identity(c), taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("task not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	httpx.OK(c, t)
}

// Delete handles DELETE /api/v1/tasks/:id
func (h *Handler) Delete(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), middleware.Identity(c), taskID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("task not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to delete task", err))
		return
	}
	httpx.OKMsg(c, "task deleted", nil)
}

// Stats handles GET /api/v1/tasks/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.tasks.Stats(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	httpx.OK(c, stats)
}
