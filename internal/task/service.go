package task

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"agenthub/internal/authz"
	"agenthub/internal/cache"
	"agenthub/internal/model"
)

// ErrAgentNotFound is returned when the referenced agent does not exist
// or does not belong to the caller.
var ErrAgentNotFound = errors.New("agent not found")

// Orderings accepted by List; anything else falls back to the default.
var taskOrderings = map[string]string{
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
	"updated_at":  "updated_at ASC",
	"-updated_at": "updated_at DESC",
	"status":      "status ASC",
	"-status":     "status DESC",
}

// ListFilter narrows and orders a task list query.
type ListFilter struct {
	Status        string
	AgentID       int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Ordering      string
	Page          int
	PageSize      int
}

// Service owns task persistence and the run action. Handlers stay thin
// and translate its errors to HTTP responses.
type Service struct {
	db         *gorm.DB
	dispatcher *Dispatcher
	snapshots  *cache.Snapshots
	logger     *logrus.Entry
}

// NewService creates a task service
func NewService(db *gorm.DB, dispatcher *Dispatcher, snapshots *cache.Snapshots, logger *logrus.Entry) *Service {
	return &Service{
		db:         db,
		dispatcher: dispatcher,
		snapshots:  snapshots,
		logger:     logger.WithField("component", "task-service"),
	}
}

// Run validates ownership of the agent, creates a pending task row and
// enqueues it. Ownership is rejected before any row is created. Enqueue
// failures after creation are logged, not surfaced: the row exists and a
// stalled pending task is the documented signal.
func (s *Service) Run(ctx context.Context, caller authz.Identity, agentID int, inputText string) (*model.AgentTask, error) {
	var agent model.Agent
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", agentID, caller.UID).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	task := model.AgentTask{
		AgentID:   agent.ID,
		OwnerID:   agent.OwnerID, // denormalized from the agent at creation
		InputText: inputText,
		Status:    model.TaskStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	s.invalidate(ctx, task.OwnerID, task.AgentID)

	if err := s.dispatcher.Enqueue(ctx, task.ID); err != nil {
		s.logger.WithField("task_id", task.ID).WithError(err).Error("Dispatch failed, task stays pending")
	}

	// Re-read so the response reflects the inline-fallback path too.
	var fresh model.AgentTask
	if err := s.db.WithContext(ctx).First(&fresh, task.ID).Error; err != nil {
		return &task, nil
	}
	return &fresh, nil
}

// List returns the caller's tasks, filtered, ordered and paginated.
func (s *Service) List(ctx context.Context, caller authz.Identity, f ListFilter) ([]model.AgentTask, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.AgentTask{}).Where("owner_id = ?", caller.UID)

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AgentID > 0 {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at <= ?", *f.CreatedBefore)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := taskOrderings[f.Ordering]
	if !ok {
		order = "created_at DESC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var tasks []model.AgentTask
	err := q.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&tasks).Error
	return tasks, total, err
}

// Get loads one task; absent rows and rows the caller may not read both
// come back as ErrTaskNotFound.
func (s *Service) Get(ctx context.Context, caller authz.Identity, taskID int) (*model.AgentTask, error) {
	var task model.AgentTask
	if err := s.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if !authz.CanRead(caller, &task) {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

// Delete removes one task owned by the caller
func (s *Service) Delete(ctx context.Context, caller authz.Identity, taskID int) error {
	task, err := s.Get(ctx, caller, taskID)
	if err != nil {
		return err
	}
	if !authz.CanWrite(caller, task) {
		return ErrTaskNotFound
	}
	if err := s.db.WithContext(ctx).Delete(&model.AgentTask{}, task.ID).Error; err != nil {
		return err
	}
	s.invalidate(ctx, task.OwnerID, task.AgentID)
	return nil
}

// Stats returns per-status task counts for the caller, cached.
func (s *Service) Stats(ctx context.Context, caller authz.Identity) (map[string]int64, error) {
	key := cache.TaskStatsKey(caller.UID)

	var stats map[string]int64
	if s.snapshots != nil {
		if ok, _ := s.snapshots.GetJSON(ctx, key, &stats); ok {
			return stats, nil
		}
	}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&model.AgentTask{}).
		Select("status, COUNT(*) as count").
		Where("owner_id = ?", caller.UID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats = map[string]int64{
		model.TaskStatusPending:   0,
		model.TaskStatusRunning:   0,
		model.TaskStatusCompleted: 0,
		model.TaskStatusFailed:    0,
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}

	if s.snapshots != nil {
		if err := s.snapshots.SetJSON(ctx, key, stats, s.snapshots.TaskStatsTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache task stats")
		}
	}
	return stats, nil
}

// Recent returns the latest tasks of one agent, cached per (agent, limit).
// Limits outside the known set bypass the cache.
func (s *Service) Recent(ctx context.Context, agentID, limit int) ([]model.AgentTask, error) {
	cacheable := false
	for _, l := range cache.RecentTaskLimits {
		if l == limit {
			cacheable = true
			break
		}
	}

	key := cache.RecentTasksKey(agentID, limit)
	if cacheable && s.snapshots != nil {
		var tasks []model.AgentTask
		if ok, _ := s.snapshots.GetJSON(ctx, key, &tasks); ok {
			return tasks, nil
		}
	}

	var tasks []model.AgentTask
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	if cacheable && s.snapshots != nil {
		if err := s.snapshots.SetJSON(ctx, key, tasks, s.snapshots.RecentTasksTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache recent tasks")
		}
	}
	return tasks, nil
}

func (s *Service) invalidate(ctx context.Context, ownerID, agentID int) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.InvalidateTaskCaches(ctx, ownerID, agentID); err != nil {
		s.logger.WithError(err).Warn("Cache invalidation failed")
	}
}
