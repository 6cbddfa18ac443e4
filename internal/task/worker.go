package task

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// WorkerConfig defines task worker configuration
type WorkerConfig struct {
	Enabled       bool
	QueueKey      string
	PopTimeoutSec int
}

// Worker consumes task ids from the Redis queue and executes them.
type Worker struct {
	rdb         *redis.Client
	executor    *Executor
	config      WorkerConfig
	stopChan    chan struct{}
	stoppedChan chan struct{}
	logger      *logrus.Entry
}

// NewWorker creates a task worker
func NewWorker(rdb *redis.Client, executor *Executor, config WorkerConfig, logger *logrus.Entry) *Worker {
	return &Worker{
		rdb:         rdb,
		executor:    executor,
		config:      config,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
		logger:      logger.WithField("component", "task-worker"),
	}
}

// Start starts the worker loop
func (w *Worker) Start() {
	if !w.config.Enabled {
		w.logger.Info("Task worker disabled, skipping")
		close(w.stoppedChan)
		return
	}

	w.logger.WithField("queue", w.config.QueueKey).Info("Task worker starting")
	go w.run()
}

// Stop stops the worker and waits for the current task to finish
func (w *Worker) Stop() {
	if !w.config.Enabled {
		return
	}
	close(w.stopChan)
	<-w.stoppedChan
	w.logger.Info("Task worker stopped")
}

func (w *Worker) run() {
	defer close(w.stoppedChan)

	popTimeout := time.Duration(w.config.PopTimeoutSec) * time.Second
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}

	for {
		select {
		case <-w.stopChan:
			return
		default:
		}

		ctx := context.Background()
		vals, err := w.rdb.BLPop(ctx, popTimeout, w.config.QueueKey).Result()
		if err == redis.Nil {
			continue // queue empty, poll again
		}
		if err != nil {
			w.logger.WithError(err).Warn("Queue pop failed")
			select {
			case <-w.stopChan:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// BLPop returns [key, value]
		if len(vals) != 2 {
			continue
		}
		taskID, err := strconv.Atoi(vals[1])
		if err != nil {
			w.logger.WithField("value", vals[1]).Warn("Dropping malformed task id")
			continue
		}

		if err := w.executor.Run(ctx, taskID); err != nil {
			w.logger.WithField("task_id", taskID).WithError(err).Error("Task execution failed")
		}
	}
}
