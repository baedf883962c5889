// Package config loads worldbuilder settings from worldbuilder.yaml,
// WORLDBUILDER_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kittclouds/worldbuilder/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. WORLDBUILDER_LOG_LEVEL.
const EnvPrefix = "WORLDBUILDER"

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig holds entry store behaviour.
type StoreConfig struct {
	// OnConflict is "ask", "overwrite" or "skip".
	OnConflict     string `mapstructure:"on_conflict"`
	CascadeDeletes bool   `mapstructure:"cascade_deletes"`
}

// SuggestConfig holds tag suggestion settings.
type SuggestConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	MinNameLength int           `mapstructure:"min_name_length"`
}

// Config holds all runtime configuration.
type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	World   string        `mapstructure:"world"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Suggest SuggestConfig `mapstructure:"suggest"`
}

// DefaultDataDir is where world files live unless configured otherwise.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "db")
	}
	return filepath.Join(home, ".local", "share", "WorldBuilder", "db")
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("world", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.on_conflict", "ask")
	v.SetDefault("store.cascade_deletes", false)
	v.SetDefault("suggest.cache_ttl", 10*time.Minute)
	v.SetDefault("suggest.min_name_length", 3)
}

// Load applies defaults and environment bindings to v, reads the config
// file if one is set or found, and unmarshals the result. A missing config
// file is not an error.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("worldbuilder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "worldbuilder"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values viper cannot check by type.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if _, ok := store.ParseConflictPolicy(c.Store.OnConflict); !ok {
		return fmt.Errorf("store.on_conflict: unknown policy %q (want ask, overwrite or skip)", c.Store.OnConflict)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q (want json or console)", c.Log.Format)
	}
	if c.Suggest.CacheTTL < 0 {
		return fmt.Errorf("suggest.cache_ttl must not be negative")
	}
	if c.Suggest.MinNameLength < 1 {
		return fmt.Errorf("suggest.min_name_length must be at least 1")
	}
	return nil
}

// ConflictPolicy returns the parsed store.on_conflict value.
func (c Config) ConflictPolicy() store.ConflictPolicy {
	p, _ := store.ParseConflictPolicy(c.Store.OnConflict)
	return p
}
