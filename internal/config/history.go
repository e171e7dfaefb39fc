package config

import "fmt"

// HistoryConfig configures transcript persistence.
// Transcripts are off by default: a chat session lives only in memory.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	Path    string `yaml:"path"`
}

// ValidHistoryDrivers lists the database/sql driver names the store registers.
var ValidHistoryDrivers = []string{"sqlite", "sqlite3"}

func (h HistoryConfig) validate() error {
	if h.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	for _, d := range ValidHistoryDrivers {
		if h.Driver == d {
			return nil
		}
	}
	return fmt.Errorf("invalid history.driver: %s (valid: %v)", h.Driver, ValidHistoryDrivers)
}
