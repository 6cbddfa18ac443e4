package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// Set required environment variables
	os.Setenv("DB_DSN", "user:pass@tcp(localhost:3306)/test")
	os.Setenv("JWT_SECRET", "test-secret")
	defer func() {
		os.Unsetenv("DB_DSN")
		os.Unsetenv("JWT_SECRET")
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DB.DSN == "" {
		t.Error("DB DSN should not be empty")
	}

	if cfg.DB.Driver != "mysql" {
		t.Errorf("Expected default driver mysql, got %s", cfg.DB.Driver)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}

	if cfg.Stream.TaskIntervalSec != 2 {
		t.Errorf("Expected task stream interval 2, got %d", cfg.Stream.TaskIntervalSec)
	}

	if cfg.Cache.RecentTasksTTLSec != 120 {
		t.Errorf("Expected recent tasks TTL 120, got %d", cfg.Cache.RecentTasksTTLSec)
	}

	if !cfg.Dispatch.FallbackInline {
		t.Error("Expected fallback_inline to default to true")
	}
}

func TestLoad_MissingDSN(t *testing.T) {
	os.Unsetenv("DB_DSN")
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	_, err := Load("")
	if err == nil {
		t.Error("Expected error when DB_DSN is missing")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Setenv("DB_DSN", "file:test.db")
	os.Unsetenv("JWT_SECRET")
	defer os.Unsetenv("DB_DSN")

	_, err := Load("")
	if err == nil {
		t.Error("Expected error when JWT_SECRET is missing")
	}
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	os.Setenv("DB_DSN", "host=localhost")
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("DB_DRIVER", "postgres")
	defer func() {
		os.Unsetenv("DB_DSN")
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("DB_DRIVER")
	}()

	_, err := Load("")
	if err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestLoad_INIWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "app.ini")
	content := `[db]
driver = sqlite
dsn = file:ini.db

[jwt]
secret = ini-secret

[dispatch]
fallback_inline = 0

[app]
http_addr = :9090
`
	if err := os.WriteFile(iniPath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write INI file: %v", err)
	}

	// ENV beats INI
	os.Setenv("HTTP_ADDR", ":7070")
	defer os.Unsetenv("HTTP_ADDR")

	cfg, err := Load(iniPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DB.Driver != "sqlite" {
		t.Errorf("Expected driver sqlite from INI, got %s", cfg.DB.Driver)
	}
	if cfg.JWT.Secret != "ini-secret" {
		t.Errorf("Expected JWT secret from INI, got %s", cfg.JWT.Secret)
	}
	if cfg.Dispatch.FallbackInline {
		t.Error("Expected fallback_inline disabled via INI")
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("Expected env override :7070, got %s", cfg.HTTPAddr)
	}
}
