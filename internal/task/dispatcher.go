package task

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Dispatcher hands task ids to an out-of-process worker via a Redis list.
// When the queue is unreachable and FallbackInline is set, the task runs
// synchronously in-process instead; the caller's request then carries the
// full execution latency.
type Dispatcher struct {
	rdb            *redis.Client
	queueKey       string
	fallbackInline bool
	executor       *Executor
	logger         *logrus.Entry
}

// NewDispatcher creates a dispatcher. rdb may be nil (queue disabled), in
// which case every enqueue takes the inline path if enabled.
func NewDispatcher(rdb *redis.Client, queueKey string, fallbackInline bool, executor *Executor, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		rdb:            rdb,
		queueKey:       queueKey,
		fallbackInline: fallbackInline,
		executor:       executor,
		logger:         logger.WithField("component", "task-dispatcher"),
	}
}

// Enqueue pushes a task id onto the work queue and returns immediately.
// No deduplication: enqueuing the same id twice is allowed, the executor's
// claim makes the second run a no-op.
func (d *Dispatcher) Enqueue(ctx context.Context, taskID int) error {
	if d.rdb != nil {
		err := d.rdb.RPush(ctx, d.queueKey, strconv.Itoa(taskID)).Err()
		if err == nil {
			return nil
		}
		if !d.fallbackInline {
			return fmt.Errorf("enqueue task %d: %w", taskID, err)
		}
		d.logger.WithField("task_id", taskID).WithError(err).Warn("Queue unreachable, executing inline")
	} else if !d.fallbackInline {
		return fmt.Errorf("enqueue task %d: queue disabled and inline fallback off", taskID)
	}

	if err := d.executor.Run(ctx, taskID); err != nil {
		d.logger.WithField("task_id", taskID).WithError(err).Error("Inline execution failed")
		return err
	}
	return nil
}
