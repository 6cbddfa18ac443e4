package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	LLM      LLMConfig
	Dispatch DispatchConfig
	Stream   StreamConfig
	Cache    CacheConfig
	Migrate  bool
	HTTPAddr string
}

// DBConfig holds database configuration
type DBConfig struct {
	Driver string // "mysql" or "sqlite"
	DSN    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret               string
	AccessExpireMinutes  int
	RefreshExpireMinutes int
	Issuer               string
}

// LLMConfig holds model API client configuration
type LLMConfig struct {
	BaseURL    string
	APIKey     string
	TimeoutSec int
	MaxTokens  int
}

// DispatchConfig holds task dispatch configuration
type DispatchConfig struct {
	QueueKey       string
	FallbackInline bool
	WorkerEnabled  bool
	PopTimeoutSec  int
}

// StreamConfig holds SSE stream configuration
type StreamConfig struct {
	TaskIntervalSec   int
	SignalIntervalSec int
	SignalBufferSize  int
}

// TaskInterval returns the task stream poll interval
func (c StreamConfig) TaskInterval() time.Duration {
	return time.Duration(c.TaskIntervalSec) * time.Second
}

// SignalInterval returns the signal stream poll interval
func (c StreamConfig) SignalInterval() time.Duration {
	return time.Duration(c.SignalIntervalSec) * time.Second
}

// CacheConfig holds list-cache TTL configuration (seconds)
type CacheConfig struct {
	AgentListTTLSec   int
	TaskStatsTTLSec   int
	RecentTasksTTLSec int
}

// Load loads configuration with priority: ENV > INI file > default.
// iniPath may be empty, in which case only environment variables apply.
func Load(iniPath string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	var cfgFile *ini.File
	if iniPath != "" {
		f, err := ini.Load(iniPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load INI file: %w", err)
		}
		cfgFile = f
	}

	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if cfgFile != nil {
			if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
				return value
			}
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := getValue(envKey, iniSection, iniKey, ""); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := getValue(envKey, iniSection, iniKey, ""); value != "" {
			return value == "1" || value == "true"
		}
		return defaultValue
	}

	cfg := &Config{
		DB: DBConfig{
			Driver: getValue("DB_DRIVER", "db", "driver", "mysql"),
			DSN:    getValue("DB_DSN", "db", "dsn", ""),
		},
		Redis: RedisConfig{
			Enabled:  getValueBool("REDIS_ENABLED", "redis", "enabled", true),
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "password", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:               getValue("JWT_SECRET", "jwt", "secret", ""),
			AccessExpireMinutes:  getValueInt("JWT_ACCESS_EXPIRE_MINUTES", "jwt", "access_expire_minutes", 60),
			RefreshExpireMinutes: getValueInt("JWT_REFRESH_EXPIRE_MINUTES", "jwt", "refresh_expire_minutes", 10080),
			Issuer:               getValue("JWT_ISSUER", "jwt", "issuer", "agenthub"),
		},
		LLM: LLMConfig{
			BaseURL:    getValue("LLM_BASE_URL", "llm", "base_url", "https://api.openai.com/v1"),
			APIKey:     getValue("LLM_API_KEY", "llm", "api_key", ""),
			TimeoutSec: getValueInt("LLM_TIMEOUT_SEC", "llm", "timeout_sec", 120),
			MaxTokens:  getValueInt("LLM_MAX_TOKENS", "llm", "max_tokens", 1024),
		},
		Dispatch: DispatchConfig{
			QueueKey:       getValue("DISPATCH_QUEUE_KEY", "dispatch", "queue_key", "tasks:queue"),
			FallbackInline: getValueBool("DISPATCH_FALLBACK_INLINE", "dispatch", "fallback_inline", true),
			WorkerEnabled:  getValueBool("DISPATCH_WORKER_ENABLED", "dispatch", "worker_enabled", true),
			PopTimeoutSec:  getValueInt("DISPATCH_POP_TIMEOUT_SEC", "dispatch", "pop_timeout_sec", 5),
		},
		Stream: StreamConfig{
			TaskIntervalSec:   getValueInt("STREAM_TASK_INTERVAL_SEC", "stream", "task_interval_sec", 2),
			SignalIntervalSec: getValueInt("STREAM_SIGNAL_INTERVAL_SEC", "stream", "signal_interval_sec", 1),
			SignalBufferSize:  getValueInt("STREAM_SIGNAL_BUFFER_SIZE", "stream", "signal_buffer_size", 1000),
		},
		Cache: CacheConfig{
			AgentListTTLSec:   getValueInt("CACHE_AGENT_LIST_TTL_SEC", "cache", "agent_list_ttl_sec", 300),
			TaskStatsTTLSec:   getValueInt("CACHE_TASK_STATS_TTL_SEC", "cache", "task_stats_ttl_sec", 300),
			RecentTasksTTLSec: getValueInt("CACHE_RECENT_TASKS_TTL_SEC", "cache", "recent_tasks_ttl_sec", 120),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "app", "http_addr", ":8080"),
	}

	// Validate required fields
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}
	if cfg.DB.Driver != "mysql" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}
