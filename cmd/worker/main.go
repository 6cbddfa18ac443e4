package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"agenthub/internal/cache"
	"agenthub/internal/config"
	"agenthub/internal/db"
	"agenthub/internal/llm"
	"agenthub/internal/task"
)

// Standalone queue worker. Run this when the embedded worker in the API
// server is disabled and task execution should scale separately.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to INI config file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize database
	if err := db.Init(cfg.DB); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 3. Redis is mandatory here; without a queue there is nothing to consume
	if !cfg.Redis.Enabled {
		log.Fatal("Redis must be enabled for the standalone worker")
	}
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer cache.Close()

	// 4. Build the executor and its cache layer
	snapshots := cache.NewSnapshots(
		cache.NewRedisStore(cache.Client),
		time.Duration(cfg.Cache.AgentListTTLSec)*time.Second,
		time.Duration(cfg.Cache.TaskStatsTTLSec)*time.Second,
		time.Duration(cfg.Cache.RecentTasksTTLSec)*time.Second,
	)
	logger := logrus.WithField("app", "agenthub-worker")
	invoker := llm.NewOpenAIClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		TimeoutSec: cfg.LLM.TimeoutSec,
	})
	executor := task.NewExecutor(db.DB, invoker, snapshots, cfg.LLM.MaxTokens, logger)

	worker := task.NewWorker(cache.Client, executor, task.WorkerConfig{
		Enabled:       true,
		QueueKey:      cfg.Dispatch.QueueKey,
		PopTimeoutSec: cfg.Dispatch.PopTimeoutSec,
	}, logger)
	worker.Start()
	log.Printf("✓ Worker consuming %s", cfg.Dispatch.QueueKey)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	worker.Stop()
}
