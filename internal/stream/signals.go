package stream

import (
	"sync"
	"time"
)

// Signal event types published by the auth handlers.
const (
	SignalUserLoggedIn    = "user_logged_in"
	SignalUserLoggedOut   = "user_logged_out"
	SignalUserLoginFailed = "user_login_failed"
	SignalUserRegistered  = "user_registered"
)

// SignalEvent is one system signal pushed to the monitoring stream.
type SignalEvent struct {
	Seq        uint64                 `json:"seq"`
	Timestamp  time.Time              `json:"timestamp"`
	SignalType string                 `json:"signal_type"`
	Level      string                 `json:"level"`
	Data       map[string]interface{} `json:"data"`
}

// SignalBuffer is a bounded ring of recent signal events with a single
// writer (the HTTP process) and any number of readers, each tracking its
// own position by sequence number. When full, the oldest event is dropped.
// Lifecycle is process start to process stop; it is constructed in main
// and passed down, never a package-level singleton.
type SignalBuffer struct {
	mu       sync.Mutex
	events   []SignalEvent
	capacity int
	nextSeq  uint64 // sequence number of the next event to be published
}

// NewSignalBuffer creates a ring buffer holding up to capacity events
func NewSignalBuffer(capacity int) *SignalBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &SignalBuffer{capacity: capacity}
}

// Publish appends an event, evicting the oldest when at capacity, and
// returns its sequence number.
func (b *SignalBuffer) Publish(signalType, level string, data map[string]interface{}) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	event := SignalEvent{
		Seq:        b.nextSeq,
		Timestamp:  time.Now().UTC(),
		SignalType: signalType,
		Level:      level,
		Data:       data,
	}
	b.nextSeq++

	if len(b.events) == b.capacity {
		b.events = append(b.events[1:], event)
	} else {
		b.events = append(b.events, event)
	}
	return event.Seq
}

// Since returns events with sequence >= seq and the cursor to pass next
// time. A reader that fell behind a full buffer silently skips the
// evicted events.
func (b *SignalBuffer) Since(seq uint64) ([]SignalEvent, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 || seq >= b.nextSeq {
		return nil, b.nextSeq
	}

	oldest := b.events[0].Seq
	if seq < oldest {
		seq = oldest
	}

	out := make([]SignalEvent, b.nextSeq-seq)
	copy(out, b.events[seq-oldest:])
	return out, b.nextSeq
}

// Cursor returns the sequence number a new reader should start from to
// receive only events published after this call.
func (b *SignalBuffer) Cursor() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}

// Len returns the number of buffered events
func (b *SignalBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
