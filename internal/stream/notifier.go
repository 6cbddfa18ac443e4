package stream

import (
	"context"
	"time"

	"gorm.io/gorm"

	"agenthub/internal/model"
)

// TaskNotifier republishes task row changes as a stream of events by
// polling updated_at against a moving cursor. A task updated twice within
// one interval surfaces only its latest state; intermediate states are
// not replayed.
type TaskNotifier struct {
	db       *gorm.DB
	interval time.Duration
}

// NewTaskNotifier creates a notifier polling at the given interval
func NewTaskNotifier(db *gorm.DB, interval time.Duration) *TaskNotifier {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &TaskNotifier{db: db, interval: interval}
}

// Poll runs one notifier iteration: fetch the owner's tasks whose
// updated_at is at or after since (inclusive), and return the next cursor.
// The cursor advances to "now" even when nothing matched.
func (n *TaskNotifier) Poll(ctx context.Context, ownerID int, since time.Time) ([]model.AgentTask, time.Time, error) {
	var tasks []model.AgentTask
	err := n.db.WithContext(ctx).
		Where("owner_id = ? AND updated_at >= ?", ownerID, since).
		Order("updated_at ASC").
		Find(&tasks).Error
	next := time.Now()
	if err != nil {
		return nil, next, err
	}
	return tasks, next, nil
}

// Stream polls until ctx is done, handing each batch to emit and calling
// keepalive once per iteration. The cursor starts at "now": subscribers
// see changes from connection time onward, not history.
func (n *TaskNotifier) Stream(ctx context.Context, ownerID int, emit func(model.AgentTask) error, keepalive func() error) error {
	cursor := time.Now()

	for {
		tasks, next, err := n.Poll(ctx, ownerID, cursor)
		if err != nil {
			return err
		}
		cursor = next

		for _, t := range tasks {
			if err := emit(t); err != nil {
				return err
			}
		}
		if err := keepalive(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(n.interval):
		}
	}
}
