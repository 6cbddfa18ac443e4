package cache

import (
	"context"
	"testing"
	"time"
)

func newTestSnapshots() *Snapshots {
	store := NewMemoryStore(128, time.Hour)
	return NewSnapshots(store, 5*time.Minute, 5*time.Minute, 2*time.Minute)
}

func TestSnapshots_HitWithinTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestSnapshots()

	original := []map[string]interface{}{{"id": float64(1), "name": "A"}}
	if err := s.SetJSON(ctx, AgentListKey(1), original, s.AgentListTTL); err != nil {
		t.Fatalf("SetJSON() failed: %v", err)
	}

	var first, second []map[string]interface{}
	ok, err := s.GetJSON(ctx, AgentListKey(1), &first)
	if err != nil || !ok {
		t.Fatalf("Expected cache hit, ok=%v err=%v", ok, err)
	}

	// A second read within the TTL returns the identical snapshot even if
	// the underlying store of record changed meanwhile.
	ok, err = s.GetJSON(ctx, AgentListKey(1), &second)
	if err != nil || !ok {
		t.Fatalf("Expected second cache hit, ok=%v err=%v", ok, err)
	}
	if len(first) != len(second) || first[0]["name"] != second[0]["name"] {
		t.Errorf("Snapshots differ: %v vs %v", first, second)
	}
}

func TestSnapshots_MissAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	s := newTestSnapshots()

	if err := s.SetJSON(ctx, AgentListKey(2), []string{"x"}, s.AgentListTTL); err != nil {
		t.Fatalf("SetJSON() failed: %v", err)
	}
	if err := s.InvalidateAgentList(ctx, 2); err != nil {
		t.Fatalf("InvalidateAgentList() failed: %v", err)
	}

	var out []string
	ok, err := s.GetJSON(ctx, AgentListKey(2), &out)
	if err != nil {
		t.Fatalf("GetJSON() failed: %v", err)
	}
	if ok {
		t.Error("Expected miss after invalidation")
	}
}

func TestSnapshots_InvalidateTaskCaches(t *testing.T) {
	ctx := context.Background()
	s := newTestSnapshots()

	if err := s.SetJSON(ctx, TaskStatsKey(3), map[string]int{"pending": 1}, s.TaskStatsTTL); err != nil {
		t.Fatalf("SetJSON() failed: %v", err)
	}
	for _, limit := range RecentTaskLimits {
		if err := s.SetJSON(ctx, RecentTasksKey(9, limit), []int{limit}, s.RecentTasksTTL); err != nil {
			t.Fatalf("SetJSON() failed: %v", err)
		}
	}

	if err := s.InvalidateTaskCaches(ctx, 3, 9); err != nil {
		t.Fatalf("InvalidateTaskCaches() failed: %v", err)
	}

	var stats map[string]int
	if ok, _ := s.GetJSON(ctx, TaskStatsKey(3), &stats); ok {
		t.Error("Expected stats cache to be invalidated")
	}
	for _, limit := range RecentTaskLimits {
		var recent []int
		if ok, _ := s.GetJSON(ctx, RecentTasksKey(9, limit), &recent); ok {
			t.Errorf("Expected recent cache (limit=%d) to be invalidated", limit)
		}
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(8, time.Hour)

	if err := store.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Expected miss after per-key TTL expiry")
	}
}

func TestSnapshots_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(8, time.Hour)
	s := NewSnapshots(store, time.Minute, time.Minute, time.Minute)

	if err := store.Set(ctx, "bad", []byte("{not json"), time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var out map[string]int
	ok, err := s.GetJSON(ctx, "bad", &out)
	if err != nil {
		t.Fatalf("GetJSON() returned error for corrupt entry: %v", err)
	}
	if ok {
		t.Error("Corrupt entry should read as a miss")
	}
}
