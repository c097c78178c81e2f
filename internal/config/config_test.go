package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Set only required env var
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Upload.MaxConcurrent != 2 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 2)
	}
	if cfg.Upload.MaxFileSize != 52428800 {
		t.Errorf("Upload.MaxFileSize = %d, want %d", cfg.Upload.MaxFileSize, 52428800)
	}
	if cfg.Resolver.CaseFold {
		t.Error("Resolver.CaseFold should default to false")
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("RESOLVER_CASE_FOLD", "true")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("RESOLVER_CASE_FOLD")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if !cfg.Resolver.CaseFold {
		t.Error("Resolver.CaseFold = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	// Test that DB_URL works as fallback
	os.Setenv("DB_URL", "postgres://localhost/alttest")
	defer os.Unsetenv("DB_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("DB_URL")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "99999"}},
		{"bad duration", map[string]string{"UPLOAD_TIMEOUT": "soon"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"conns inverted", map[string]string{"DB_MAX_CONNS": "1", "DB_MIN_CONNS": "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("DATABASE_URL", "postgres://localhost/test")
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer func() {
				os.Unsetenv("DATABASE_URL")
				for k := range tt.env {
					os.Unsetenv(k)
				}
			}()

			if _, err := Load(); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := c.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
	c.Host = ""
	if got := c.Addr(); got != ":8080" {
		t.Errorf("Addr() = %q", got)
	}
}
