package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pdfchat configuration.
type Config struct {
	// Backend question-answering service
	API APIConfig `yaml:"api"`

	// Independently toggleable widget features
	Features FeaturesConfig `yaml:"features"`

	// Upload batch limits
	Upload UploadConfig `yaml:"upload"`

	// Watch-folder uploads
	Watch WatchConfig `yaml:"watch"`

	// Optional transcript persistence
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`
}

// APIConfig configures the backend endpoints.
type APIConfig struct {
	BaseURL       string `yaml:"base_url"`
	ChatTimeout   string `yaml:"chat_timeout"`   // "0" disables
	UploadTimeout string `yaml:"upload_timeout"` // "0" disables
}

// FeaturesConfig toggles the optional widget capabilities.
type FeaturesConfig struct {
	TrackSources        bool `yaml:"track_sources"`
	TrackUploadProgress bool `yaml:"track_upload_progress"`
}

// UploadConfig limits what can be selected for upload.
type UploadConfig struct {
	MaxFiles          int      `yaml:"max_files"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// WatchConfig configures `pdfchat watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme    string `yaml:"theme"` // auto, light, dark
	Title    string `yaml:"title"`
	WordWrap int    `yaml:"word_wrap"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "http://localhost:8000",
			ChatTimeout:   "0",
			UploadTimeout: "0",
		},

		Features: FeaturesConfig{
			TrackSources:        true,
			TrackUploadProgress: true,
		},

		Upload: UploadConfig{
			MaxFiles:          10,
			AllowedExtensions: []string{".pdf"},
		},

		Watch: WatchConfig{
			Debounce: "2s",
		},

		History: HistoryConfig{
			Enabled: false,
			Driver:  "sqlite",
			Path:    filepath.Join(".pdfchat", "history.db"),
		},

		Logging: LoggingConfig{
			Level:      "info",
			DebugMode:  false,
			File:       filepath.Join(".pdfchat", "logs", "pdfchat.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},

		UI: UIConfig{
			Theme:    "auto",
			Title:    "PDF Chatbot",
			WordWrap: 80,
		},
	}
}

// DefaultPath returns the default path to .pdfchat/config.yaml.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".pdfchat", "config.yaml")
	}
	return filepath.Join(cwd, ".pdfchat", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still take environment overrides
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("PDFCHAT_API_URL"); u != "" {
		c.API.BaseURL = u
	}

	// Setting a database path implies the user wants transcripts kept
	if path := os.Getenv("PDFCHAT_HISTORY_DB"); path != "" {
		c.History.Path = path
		c.History.Enabled = true
	}

	switch strings.ToLower(os.Getenv("PDFCHAT_DEBUG")) {
	case "1", "true", "yes":
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// GetChatTimeout returns the /chat timeout. Zero means no timeout.
func (c *Config) GetChatTimeout() time.Duration {
	return parseDuration(c.API.ChatTimeout, 0)
}

// GetUploadTimeout returns the /upload timeout. Zero means no timeout.
func (c *Config) GetUploadTimeout() time.Duration {
	return parseDuration(c.API.UploadTimeout, 0)
}

// GetWatchDebounce returns the quiet period before a watched batch is uploaded.
func (c *Config) GetWatchDebounce() time.Duration {
	d := parseDuration(c.Watch.Debounce, 2*time.Second)
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid api.base_url %q: %w", c.API.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api.base_url %q: scheme must be http or https", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: missing host", c.API.BaseURL)
	}

	if c.Upload.MaxFiles < 1 {
		return fmt.Errorf("upload.max_files must be at least 1 (got %d)", c.Upload.MaxFiles)
	}

	if c.History.Enabled {
		if err := c.History.validate(); err != nil {
			return err
		}
	}

	switch c.UI.Theme {
	case "", "auto", "light", "dark":
	default:
		return fmt.Errorf("invalid ui.theme %q (valid: auto, light, dark)", c.UI.Theme)
	}

	return nil
}

// IsAllowedFile reports whether path has one of the configured upload extensions.
// An empty extension list allows everything.
func (c *Config) IsAllowedFile(path string) bool {
	if len(c.Upload.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Upload.AllowedExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
