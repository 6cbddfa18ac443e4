package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Known recent-task list limits. Invalidation enumerates this fixed set
// because the store has no pattern-based delete.
var RecentTaskLimits = []int{5, 10, 20}

// Key builders for the list caches.

func AgentListKey(userID int) string {
	return fmt.Sprintf("agents:list:user:%d", userID)
}

func TaskStatsKey(userID int) string {
	return fmt.Sprintf("tasks:stats:user:%d", userID)
}

func RecentTasksKey(agentID, limit int) string {
	return fmt.Sprintf("tasks:recent:agent:%d:limit:%d", agentID, limit)
}

// Snapshots wraps a Store with JSON serialization and the invalidation
// rules for agent/task list queries. Values are query-result snapshots
// (plain field maps), never live rows.
type Snapshots struct {
	store Store

	AgentListTTL   time.Duration
	TaskStatsTTL   time.Duration
	RecentTasksTTL time.Duration
}

// NewSnapshots creates a snapshot cache over the given store
func NewSnapshots(store Store, agentListTTL, taskStatsTTL, recentTasksTTL time.Duration) *Snapshots {
	return &Snapshots{
		store:          store,
		AgentListTTL:   agentListTTL,
		TaskStatsTTL:   taskStatsTTL,
		RecentTasksTTL: recentTasksTTL,
	}
}

// GetJSON loads a cached snapshot into out; ok is false on miss.
// Decode failures are treated as a miss so a bad entry self-heals on the
// next Set.
func (s *Snapshots) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = s.store.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON stores a snapshot under key with the given TTL
func (s *Snapshots) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, data, ttl)
}

// InvalidateAgentList drops the agent list snapshot for a user
func (s *Snapshots) InvalidateAgentList(ctx context.Context, userID int) error {
	return s.store.Delete(ctx, AgentListKey(userID))
}

// InvalidateTaskCaches drops every task-derived snapshot that a mutation
// of one of the agent's tasks can stale: the owner's stats and the
// agent's recent-task lists at all known limits.
func (s *Snapshots) InvalidateTaskCaches(ctx context.Context, userID, agentID int) error {
	keys := []string{TaskStatsKey(userID)}
	for _, limit := range RecentTaskLimits {
		keys = append(keys, RecentTasksKey(agentID, limit))
	}
	return s.store.Delete(ctx, keys...)
}
