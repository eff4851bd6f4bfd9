package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openl10n/tmsync/internal/models"
)

// Config holds all application configuration.
type Config struct {
	// Database location
	Database DatabaseConfig `mapstructure:"database" json:"database"`

	// Sync behavior
	Sync SyncConfig `mapstructure:"sync" json:"sync"`

	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`
}

// DatabaseConfig for the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	// SystemUser is attributed to changes made by background syncs when no
	// acting user is given.
	SystemUser string `mapstructure:"system_user" json:"system_user"`

	// SuggestOnConflict records conflicting file edits as suggestions
	// instead of overwriting database translations.
	SuggestOnConflict bool `mapstructure:"suggest_on_conflict" json:"suggest_on_conflict"`

	// DefaultLanguage is used when creating stores without an explicit
	// language flag.
	DefaultLanguage string `mapstructure:"default_language" json:"default_language"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // empty = stdout
}

// Default returns config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(".tmsync", "tmsync.db"),
		},
		Sync: SyncConfig{
			SystemUser:        "system",
			SuggestOnConflict: true,
			DefaultLanguage:   "en",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", models.ErrInvalidConfig)
	}

	if c.Sync.SystemUser == "" {
		return fmt.Errorf("%w: sync.system_user is required", models.ErrInvalidConfig)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("%w: unknown log level %q", models.ErrInvalidConfig, c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("%w: unknown log format %q", models.ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates the directories the config points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Database.Path)}
	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
