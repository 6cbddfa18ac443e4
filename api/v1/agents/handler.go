package agents

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agenthub/api/v1/middleware"
	"agenthub/internal/authz"
	"agenthub/internal/cache"
	"agenthub/internal/httpx"
	"agenthub/internal/model"
	"agenthub/internal/task"
)

// Handler handles agent CRUD requests
type Handler struct {
	db        *gorm.DB
	snapshots *cache.Snapshots
	tasks     *task.Service
}

// NewHandler creates a new agents handler
func NewHandler(db *gorm.DB, snapshots *cache.Snapshots, tasks *task.Service) *Handler {
	return &Handler{
		db:        db,
		snapshots: snapshots,
		tasks:     tasks,
	}
}

// AgentDetail is the list/detail representation, carrying the task count
// and the agent's most recent tasks like the dashboard expects.
type AgentDetail struct {
	model.Agent
	TasksCount  int64             `json:"tasks_count"`
	RecentTasks []model.AgentTask `json:"recent_tasks"`
}

const recentTasksLimit = 5

func (h *Handler) detail(c *gin.Context, agent *model.Agent) (*AgentDetail, error) {
	var count int64
	if err := h.db.Model(&model.AgentTask{}).Where("agent_id = ?", agent.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	recent, err := h.tasks.Recent(c.Request.Context(), agent.ID, recentTasksLimit)
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []model.AgentTask{}
	}
	return &AgentDetail{Agent: *agent, TasksCount: count, RecentTasks: recent}, nil
}

// List handles GET /api/v1/agents
func (h *Handler) List(c *gin.Context) {
	id := middleware.Identity(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := h.db.Model(&model.Agent{}).Where("owner_id = ?", id.UID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}

	var agents []model.Agent
	if err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&agents).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}

	items := make([]AgentDetail, 0, len(agents))
	for i := range agents {
		d, err := h.detail(c, &agents[i])
		if err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("", err))
			return
		}
		items = append(items, *d)
	}

	httpx.OKItems(c, items, total, page, pageSize)
}

// ListCached handles GET /api/v1/agents/cached, a slim TTL-cached list.
func (h *Handler) ListCached(c *gin.Context) {
	id := middleware.Identity(c)
	ctx := c.Request.Context()
	key := cache.AgentListKey(id.UID)

	var snapshot []map[string]interface{}
	if h.snapshots != nil {
		if ok, _ := h.snapshots.GetJSON(ctx, key, &snapshot); ok {
			httpx.OK(c, snapshot)
			return
		}
	}

	var agents []model.Agent
	if err := h.db.Where("owner_id = ?", id.UID).Order("created_at DESC").Find(&agents).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}

	snapshot = make([]map[string]interface{}, 0, len(agents))
	for _, a := range agents {
		snapshot = append(snapshot, map[string]interface{}{
			"id":         a.ID,
			"name":       a.Name,
			"model":      a.Model,
			"created_at": a.CreatedAt.Format(time.RFC3339),
		})
	}

	if h.snapshots != nil {
		_ = h.snapshots.SetJSON(ctx, key, snapshot, h.snapshots.AgentListTTL)
	}
	httpx.OK(c, snapshot)
}

// CreateRequest represents the agent creation body
type CreateRequest struct {
	Name        string   `json:"name" binding:"required,max=120"`
	Description string   `json:"description"`
	Model       string   `json:"model" binding:"max=50"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

// Create handles POST /api/v1/agents
func (h *Handler) Create(c *gin.Context) {
	id := middleware.Identity(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	agent := model.Agent{
		OwnerID:     id.UID,
		Name:        req.Name,
		Description: req.Description,
		Model:       req.Model,
		Temperature: 0.7,
	}
	if agent.Model == "" {
		agent.Model = "gpt-4o-mini"
	}
	if req.Temperature != nil {
		agent.Temperature = *req.Temperature
	}

	if err := h.db.Create(&agent).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create agent", err))
		return
	}

	h.invalidateList(c, id.UID)
	httpx.Created(c, agent)
}

// load fetches an agent by path id; absent rows and rows the caller may
// not read both read as 404.
func (h *Handler) load(c *gin.Context) (*model.Agent, bool) {
	agentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid agent id"))
		return nil, false
	}

	var agent model.Agent
	if err := h.db.First(&agent, agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("agent not found"))
		} else {
			httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		}
		return nil, false
	}

	if !authz.CanRead(middleware.Identity(c), &agent) {
		httpx.FailErr(c, httpx.ErrNotFound("agent not found"))
		return nil, false
	}
	return &agent, true
}

// Get handles GET /api/v1/agents/:id
func (h *Handler) Get(c *gin.Context) {
	agent, ok := h.load(c)
	if !ok {
		return
	}
	d, err := h.detail(c, agent)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	httpx.OK(c, d)
}

// UpdateRequest represents a partial or full agent update. The owner is
// immutable; it is not part of the request.
type UpdateRequest struct {
	Name        *string  `json:"name" binding:"omitempty,max=120"`
	Description *string  `json:"description"`
	Model       *string  `json:"model" binding:"omitempty,max=50"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

// Update handles PUT and PATCH /api/v1/agents/:id
func (h *Handler) Update(c *gin.Context) {
	agent, ok := h.load(c)
	if !ok {
		return
	}
	if !authz.CanWrite(middleware.Identity(c), agent) {
		httpx.FailErr(c, httpx.ErrNotFound("agent not found"))
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			httpx.FailErr(c, httpx.ErrParamInvalid("name must not be empty"))
			return
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.Temperature != nil {
		updates["temperature"] = *req.Temperature
	}

	if len(updates) > 0 {
		if err := h.db.Model(agent).Updates(updates).Error; err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to update agent", err))
			return
		}
		h.invalidateList(c, agent.OwnerID)
	}

	var fresh model.Agent
	if err := h.db.First(&fresh, agent.ID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	httpx.OK(c, fresh)
}

// Delete handles DELETE /api/v1/agents/:id. Deleting an agent deletes
// its tasks.
func (h *Handler) Delete(c *gin.Context) {
	agent, ok := h.load(c)
	if !ok {
		return
	}
	if !authz.CanWrite(middleware.Identity(c), agent) {
		httpx.FailErr(c, httpx.ErrNotFound("agent not found"))
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		// Explicit cascade so behavior does not depend on driver-level
		// foreign key enforcement.
		if err := tx.Where("agent_id = ?", agent.ID).Delete(&model.AgentTask{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Agent{}, agent.ID).Error
	})
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to delete agent", err))
		return
	}

	h.invalidateList(c, agent.OwnerID)
	if h.snapshots != nil {
		_ = h.snapshots.InvalidateTaskCaches(c.Request.Context(), agent.OwnerID, agent.ID)
	}
	httpx.OKMsg(c, "agent deleted", nil)
}

func (h *Handler) invalidateList(c *gin.Context, ownerID int) {
	if h.snapshots == nil {
		return
	}
	_ = h.snapshots.InvalidateAgentList(c.Request.Context(), ownerID)
}
