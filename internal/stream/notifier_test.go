package stream

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agenthub/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.User{}, &model.Agent{}, &model.AgentTask{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func seedTask(t *testing.T, db *gorm.DB) *model.AgentTask {
	t.Helper()
	user := model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	agent := model.Agent{OwnerID: user.ID, Name: "A"}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}
	task := model.AgentTask{AgentID: agent.ID, OwnerID: user.ID, InputText: "hi", Status: model.TaskStatusPending}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return &task
}

func TestPoll_LatestStateWins(t *testing.T) {
	db := newTestDB(t)
	task := seedTask(t, db)
	n := NewTaskNotifier(db, time.Second)

	since := time.Now().Add(-time.Minute)

	// Two updates land between two poll iterations; only the latest state
	// surfaces in the next batch.
	if err := db.Model(task).Update("status", model.TaskStatusRunning).Error; err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := db.Model(task).Update("status", model.TaskStatusCompleted).Error; err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tasks, next, err := n.Poll(context.Background(), task.OwnerID, since)
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected exactly 1 task (latest state wins), got %d", len(tasks))
	}
	if tasks[0].Status != model.TaskStatusCompleted {
		t.Errorf("Expected latest status %s, got %s", model.TaskStatusCompleted, tasks[0].Status)
	}
	if !next.After(since) {
		t.Error("Cursor should advance")
	}
}

func TestPoll_CursorBoundaryInclusive(t *testing.T) {
	db := newTestDB(t)
	task := seedTask(t, db)
	n := NewTaskNotifier(db, time.Second)

	// Pin updated_at to a known instant and poll with since == updated_at:
	// the comparison is inclusive, so the row must match.
	boundary := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := db.Model(task).UpdateColumn("updated_at", boundary).Error; err != nil {
		t.Fatalf("UpdateColumn failed: %v", err)
	}

	tasks, _, err := n.Poll(context.Background(), task.OwnerID, boundary)
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected row at exact cursor boundary to be included, got %d rows", len(tasks))
	}

	// Just past the boundary it must not match.
	tasks, _, err = n.Poll(context.Background(), task.OwnerID, boundary.Add(time.Millisecond))
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected no rows past the boundary, got %d", len(tasks))
	}
}

func TestPoll_ScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	task := seedTask(t, db)
	n := NewTaskNotifier(db, time.Second)

	since := time.Now().Add(-time.Minute)
	tasks, _, err := n.Poll(context.Background(), task.OwnerID+1, since)
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks for another owner, got %d", len(tasks))
	}
}

func TestStream_EmitsAndStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	task := seedTask(t, db)
	n := NewTaskNotifier(db, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitted := make(chan model.AgentTask, 16)
	keepalives := 0
	done := make(chan error, 1)

	go func() {
		done <- n.Stream(ctx, task.OwnerID, func(tk model.AgentTask) error {
			emitted <- tk
			return nil
		}, func() error {
			keepalives++
			return nil
		})
	}()

	// The row's updated_at is "now", and the stream cursor also starts at
	// "now"; update after a short delay so the change lands inside the
	// first polling window.
	time.Sleep(20 * time.Millisecond)
	if err := db.Model(task).Update("status", model.TaskStatusRunning).Error; err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	select {
	case tk := <-emitted:
		if tk.Status != model.TaskStatusRunning {
			t.Errorf("Expected running status, got %s", tk.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for emitted task")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stream() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not stop on cancel")
	}

	if keepalives == 0 {
		t.Error("Expected at least one keepalive")
	}
}
