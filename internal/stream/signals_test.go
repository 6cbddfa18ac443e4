package stream

import (
	"fmt"
	"sync"
	"testing"
)

func TestSignalBuffer_PublishAndSince(t *testing.T) {
	b := NewSignalBuffer(10)

	b.Publish(SignalUserLoggedIn, "info", map[string]interface{}{"username": "alice"})
	b.Publish(SignalUserLoggedOut, "info", map[string]interface{}{"username": "alice"})

	events, next := b.Since(0)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].SignalType != SignalUserLoggedIn {
		t.Errorf("Expected first event %s, got %s", SignalUserLoggedIn, events[0].SignalType)
	}
	if next != 2 {
		t.Errorf("Expected next cursor 2, got %d", next)
	}

	// Nothing new after the cursor
	events, next = b.Since(next)
	if len(events) != 0 {
		t.Errorf("Expected no events past cursor, got %d", len(events))
	}
	if next != 2 {
		t.Errorf("Cursor should be stable, got %d", next)
	}
}

func TestSignalBuffer_CapacityEviction(t *testing.T) {
	b := NewSignalBuffer(3)

	for i := 0; i < 5; i++ {
		b.Publish(SignalUserLoginFailed, "warning", map[string]interface{}{"n": i})
	}

	if b.Len() != 3 {
		t.Fatalf("Expected buffer length 3, got %d", b.Len())
	}

	// A reader that fell behind skips evicted events and resumes at the
	// oldest retained one.
	events, next := b.Since(0)
	if len(events) != 3 {
		t.Fatalf("Expected 3 retained events, got %d", len(events))
	}
	if events[0].Seq != 2 {
		t.Errorf("Expected oldest retained seq 2, got %d", events[0].Seq)
	}
	if next != 5 {
		t.Errorf("Expected next cursor 5, got %d", next)
	}
}

func TestSignalBuffer_MultipleReaders(t *testing.T) {
	b := NewSignalBuffer(100)

	b.Publish(SignalUserRegistered, "info", map[string]interface{}{"username": "a"})
	b.Publish(SignalUserRegistered, "info", map[string]interface{}{"username": "b"})

	// Two readers with independent cursors see the same events
	eventsA, cursorA := b.Since(0)
	eventsB, _ := b.Since(0)
	if len(eventsA) != 2 || len(eventsB) != 2 {
		t.Fatalf("Both readers should see 2 events, got %d and %d", len(eventsA), len(eventsB))
	}

	b.Publish(SignalUserLoggedIn, "info", nil)
	eventsA, _ = b.Since(cursorA)
	if len(eventsA) != 1 || eventsA[0].SignalType != SignalUserLoggedIn {
		t.Errorf("Reader A should see only the new event, got %+v", eventsA)
	}
}

func TestSignalBuffer_ConcurrentReadersDoNotRace(t *testing.T) {
	b := NewSignalBuffer(50)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Publish(SignalUserLoggedIn, "info", map[string]interface{}{"i": fmt.Sprint(i)})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var cursor uint64
			for i := 0; i < 100; i++ {
				var events []SignalEvent
				events, cursor = b.Since(cursor)
				for j := 1; j < len(events); j++ {
					if events[j].Seq != events[j-1].Seq+1 {
						t.Errorf("Non-contiguous batch: %d then %d", events[j-1].Seq, events[j].Seq)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
