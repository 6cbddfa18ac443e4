package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "agenthub/api/v1"
	"agenthub/internal/auth"
	"agenthub/internal/cache"
	"agenthub/internal/config"
	"agenthub/internal/db"
	"agenthub/internal/llm"
	"agenthub/internal/stream"
	"agenthub/internal/task"
)

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
	if cfg.Migrate {
		if err := db.Migrate(db.DB); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("✓ Database migrated")
	}

	// 3. Initialize Redis (optional; caching and the queue degrade
	// gracefully without it)
	if cfg.Redis.Enabled {
		if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer cache.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("✓ Redis disabled, using in-memory cache")
	}

	// 4. Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)

	// 5. Build the cache layer
	var store cache.Store
	if cfg.Redis.Enabled {
		store = cache.NewRedisStore(cache.Client)
	} else {
		store = cache.NewMemoryStore(1024, 10*time.Minute)
	}
	snapshots := cache.NewSnapshots(
		store,
		time.Duration(cfg.Cache.AgentListTTLSec)*time.Second,
		time.Duration(cfg.Cache.TaskStatsTTLSec)*time.Second,
		time.Duration(cfg.Cache.RecentTasksTTLSec)*time.Second,
	)

	// 6. Wire the task pipeline
	logger := logrus.WithField("app", "agenthub")
	invoker := llm.NewOpenAIClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		TimeoutSec: cfg.LLM.TimeoutSec,
	})
	executor := task.NewExecutor(db.DB, invoker, snapshots, cfg.LLM.MaxTokens, logger)
	dispatcher := task.NewDispatcher(cache.Client, cfg.Dispatch.QueueKey, cfg.Dispatch.FallbackInline, executor, logger)
	taskService := task.NewService(db.DB, dispatcher, snapshots, logger)

	// 7. Start the embedded queue worker
	if cfg.Redis.Enabled && cfg.Dispatch.WorkerEnabled {
		worker := task.NewWorker(cache.Client, executor, task.WorkerConfig{
			Enabled:       true,
			QueueKey:      cfg.Dispatch.QueueKey,
			PopTimeoutSec: cfg.Dispatch.PopTimeoutSec,
		}, logger)
		worker.Start()
		defer worker.Stop()
		log.Println("✓ Task worker started")
	}

	// 8. Streams
	notifier := stream.NewTaskNotifier(db.DB, cfg.Stream.TaskInterval())
	signals := stream.NewSignalBuffer(cfg.Stream.SignalBufferSize)

	// 9. HTTP server
	gin.SetMode(gin.ReleaseMode)
	r := v1.SetupRouter(v1.Deps{
		DB:        db.DB,
		Cfg:       cfg,
		Blacklist: auth.NewTokenBlacklist(cache.Client),
		Snapshots: snapshots,
		Tasks:     taskService,
		Notifier:  notifier,
		Signals:   signals,
	})

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
