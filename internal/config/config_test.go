package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PDFCHAT_API_URL", "")
	t.Setenv("PDFCHAT_HISTORY_DB", "")
	t.Setenv("PDFCHAT_DEBUG", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("expected BaseURL=http://localhost:8000, got %s", cfg.API.BaseURL)
	}
	if !cfg.Features.TrackSources || !cfg.Features.TrackUploadProgress {
		t.Error("expected both widget features enabled by default")
	}
	if cfg.Upload.MaxFiles != 10 {
		t.Errorf("expected MaxFiles=10, got %d", cfg.Upload.MaxFiles)
	}
	if cfg.History.Enabled {
		t.Error("expected history disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://rag.internal:9000/api"
	cfg.Features.TrackSources = false
	cfg.Upload.MaxFiles = 3

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.API.BaseURL != "https://rag.internal:9000/api" {
		t.Errorf("expected BaseURL round trip, got %s", loaded.API.BaseURL)
	}
	if loaded.Features.TrackSources {
		t.Error("expected TrackSources=false after load")
	}
	if !loaded.Features.TrackUploadProgress {
		t.Error("expected TrackUploadProgress to keep its value")
	}
	if loaded.Upload.MaxFiles != 3 {
		t.Errorf("expected MaxFiles=3, got %d", loaded.Upload.MaxFiles)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != DefaultConfig().API.BaseURL {
		t.Errorf("expected default base url, got %s", cfg.API.BaseURL)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "api:\n  base_url: http://example.test:8080\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://example.test:8080" {
		t.Errorf("unexpected base url %s", cfg.API.BaseURL)
	}
	if cfg.Upload.MaxFiles != 10 {
		t.Errorf("expected default MaxFiles, got %d", cfg.Upload.MaxFiles)
	}
	if !cfg.Features.TrackSources {
		t.Error("expected default TrackSources")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [unterminated"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"https base", func(c *Config) { c.API.BaseURL = "https://example.com" }, false},
		{"no scheme", func(c *Config) { c.API.BaseURL = "localhost:8000" }, true},
		{"ftp scheme", func(c *Config) { c.API.BaseURL = "ftp://example.com" }, true},
		{"missing host", func(c *Config) { c.API.BaseURL = "http://" }, true},
		{"zero max files", func(c *Config) { c.Upload.MaxFiles = 0 }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, true},
		{"history bad driver", func(c *Config) {
			c.History.Enabled = true
			c.History.Driver = "postgres"
		}, true},
		{"history disabled ignores driver", func(c *Config) { c.History.Driver = "postgres" }, false},
		{"history no path", func(c *Config) {
			c.History.Enabled = true
			c.History.Path = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetChatTimeout(); got != 0 {
		t.Errorf("expected no chat timeout by default, got %v", got)
	}

	cfg.API.ChatTimeout = "45s"
	cfg.API.UploadTimeout = "garbage"
	if got := cfg.GetChatTimeout(); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
	if got := cfg.GetUploadTimeout(); got != 0 {
		t.Errorf("expected fallback 0 for unparsable timeout, got %v", got)
	}

	cfg.Watch.Debounce = "0"
	if got := cfg.GetWatchDebounce(); got != 2*time.Second {
		t.Errorf("expected debounce fallback 2s, got %v", got)
	}
}

func TestConfig_IsAllowedFile(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsAllowedFile("/tmp/Report.PDF") {
		t.Error("extension match should be case-insensitive")
	}
	if cfg.IsAllowedFile("notes.txt") {
		t.Error("txt should not be allowed by default")
	}
	cfg.Upload.AllowedExtensions = nil
	if !cfg.IsAllowedFile("notes.txt") {
		t.Error("empty extension list should allow everything")
	}
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{}
	if lc.IsCategoryEnabled("api") {
		t.Error("categories must be disabled without debug mode")
	}
	lc.DebugMode = true
	if !lc.IsCategoryEnabled("api") {
		t.Error("all categories enabled when no filter is set")
	}
	lc.Categories = map[string]bool{"api": false}
	if lc.IsCategoryEnabled("api") {
		t.Error("api explicitly disabled")
	}
	if !lc.IsCategoryEnabled("upload") {
		t.Error("unlisted categories default to enabled")
	}
}
