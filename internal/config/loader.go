package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from an optional file plus TMSYNC_* environment
// overrides. With an empty path the default locations are searched and a
// missing file falls back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("sync.system_user", defaults.Sync.SystemUser)
	v.SetDefault("sync.suggest_on_conflict", defaults.Sync.SuggestOnConflict)
	v.SetDefault("sync.default_language", defaults.Sync.DefaultLanguage)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.file", defaults.Log.File)

	v.SetEnvPrefix("TMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tmsync")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tmsync")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
