package task

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"agenthub/internal/cache"
	"agenthub/internal/llm"
	"agenthub/internal/model"
)

// ErrTaskNotFound is returned when a task id does not resolve to a row.
var ErrTaskNotFound = errors.New("task not found")

// Executor drives one task through its lifecycle: claim it, call the
// model, persist the terminal state. Safe to invoke twice for the same id:
// the claim is a conditional update, so a second run is a no-op.
type Executor struct {
	db        *gorm.DB
	invoker   llm.Invoker
	snapshots *cache.Snapshots
	maxTokens int
	logger    *logrus.Entry
}

// NewExecutor creates a task executor
func NewExecutor(db *gorm.DB, invoker llm.Invoker, snapshots *cache.Snapshots, maxTokens int, logger *logrus.Entry) *Executor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Executor{
		db:        db,
		invoker:   invoker,
		snapshots: snapshots,
		maxTokens: maxTokens,
		logger:    logger.WithField("component", "task-executor"),
	}
}

// Run executes the task with the given id. Model failures are absorbed
// into the task row (status=failed); only a missing task or a database
// failure surfaces as an error.
func (e *Executor) Run(ctx context.Context, taskID int) error {
	var task model.AgentTask
	if err := e.db.WithContext(ctx).Preload("Agent").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	// Claim: transition to running only if still pending. RowsAffected==0
	// means another worker holds the task or it is already terminal.
	startedAt := time.Now()
	claim := e.db.WithContext(ctx).Model(&model.AgentTask{}).
		Where("id = ? AND status = ?", task.ID, model.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusRunning,
			"started_at": startedAt,
		})
	if claim.Error != nil {
		e.markFailed(ctx, &task)
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		e.logger.WithField("task_id", task.ID).Info("Task already claimed or terminal, skipping")
		return nil
	}
	e.invalidate(ctx, &task)

	output, err := e.invoker.Invoke(ctx, llm.Request{
		SystemPrompt: task.Agent.SystemPrompt(),
		Model:        task.Agent.Model,
		Temperature:  task.Agent.Temperature,
		UserText:     task.InputText,
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		// The task row is the error report; nothing propagates further
		// and there is no retry.
		e.logger.WithField("task_id", task.ID).WithError(err).Warn("Model invocation failed")
		e.markFailed(ctx, &task)
		return nil
	}

	finishedAt := time.Now()
	if err := e.db.WithContext(ctx).Model(&model.AgentTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"output_text": output,
			"status":      model.TaskStatusCompleted,
			"finished_at": finishedAt,
		}).Error; err != nil {
		return err
	}
	e.invalidate(ctx, &task)

	return nil
}

// markFailed is best-effort: if even this write fails the task stays in
// its current state and the caller must treat a task that never leaves
// pending as a stall.
func (e *Executor) markFailed(ctx context.Context, task *model.AgentTask) {
	finishedAt := time.Now()
	err := e.db.WithContext(ctx).Model(&model.AgentTask{}).
		Where("id = ? AND status IN ?", task.ID, []string{model.TaskStatusPending, model.TaskStatusRunning}).
		Updates(map[string]interface{}{
			"status":      model.TaskStatusFailed,
			"finished_at": finishedAt,
		}).Error
	if err != nil {
		e.logger.WithField("task_id", task.ID).WithError(err).Error("Failed to record task failure")
		return
	}
	e.invalidate(ctx, task)
}

func (e *Executor) invalidate(ctx context.Context, task *model.AgentTask) {
	if e.snapshots == nil {
		return
	}
	if err := e.snapshots.InvalidateTaskCaches(ctx, task.OwnerID, task.AgentID); err != nil {
		e.logger.WithField("task_id", task.ID).WithError(err).Warn("Cache invalidation failed")
	}
}
