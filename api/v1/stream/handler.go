package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agenthub/api/v1/middleware"
	"agenthub/internal/httpx"
	"agenthub/internal/model"
	"agenthub/internal/stream"
)

// Handler serves the server-sent event endpoints
type Handler struct {
	notifier       *stream.TaskNotifier
	signals        *stream.SignalBuffer
	signalInterval time.Duration
}

// NewHandler creates a new stream handler
func NewHandler(notifier *stream.TaskNotifier, signals *stream.SignalBuffer, signalInterval time.Duration) *Handler {
	if signalInterval <= 0 {
		signalInterval = time.Second
	}
	return &Handler{
		notifier:       notifier,
		signals:        signals,
		signalInterval: signalInterval,
	}
}

// taskEvent is the wire shape of one task status update
type taskEvent struct {
	TaskID     int        `json:"task_id"`
	AgentID    int        `json:"agent_id"`
	Status     string     `json:"status"`
	OutputText string     `json:"output_text,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func sseSetup(c *gin.Context) (http.Flusher, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		httpx.FailErr(c, httpx.ErrInternalError("streaming unsupported", nil))
		return nil, false
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func sseData(c *gin.Context, flusher http.Flusher, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func sseKeepalive(c *gin.Context, flusher http.Flusher) error {
	if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// Tasks handles GET /api/v1/stream/tasks. It pushes the caller's task
// status changes from connection time onward; a client reconnecting
// misses whatever changed while it was away.
func (h *Handler) Tasks(c *gin.Context) {
	id := middleware.Identity(c)

	flusher, ok := sseSetup(c)
	if !ok {
		return
	}

	emit := func(t model.AgentTask) error {
		return sseData(c, flusher, taskEvent{
			TaskID:     t.ID,
			AgentID:    t.AgentID,
			Status:     t.Status,
			OutputText: t.OutputText,
			UpdatedAt:  t.UpdatedAt,
			FinishedAt: t.FinishedAt,
		})
	}
	keepalive := func() error {
		return sseKeepalive(c, flusher)
	}

	// The loop ends when the client disconnects or a write fails.
	_ = h.notifier.Stream(c.Request.Context(), id.UID, emit, keepalive)
}

// Signals handles GET /api/v1/stream/signals, the superuser-only feed of
// auth activity events.
func (h *Handler) Signals(c *gin.Context) {
	id := middleware.Identity(c)
	if !id.IsSuperuser {
		httpx.FailErr(c, httpx.ErrForbidden("superuser required"))
		return
	}

	flusher, ok := sseSetup(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cursor := h.signals.Cursor()

	for {
		events, next := h.signals.Since(cursor)
		cursor = next

		for _, ev := range events {
			if err := sseData(c, flusher, ev); err != nil {
				return
			}
		}
		if err := sseKeepalive(c, flusher); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.signalInterval):
		}
	}
}
