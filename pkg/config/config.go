// Package config loads service settings from a config file, the environment
// and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Blueprint BlueprintConfig `mapstructure:"blueprint"`
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DatabaseConfig configures the optional blueprint catalog. An empty URL
// disables it.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type EngineConfig struct {
	NodeDelay time.Duration `mapstructure:"node_delay"`
	Traversal string        `mapstructure:"traversal"`
	LogSize   int           `mapstructure:"log_size"`
}

// BlueprintConfig names a YAML file whose graph replaces the built-in seed.
type BlueprintConfig struct {
	File string `mapstructure:"file"`
}

// Load reads configuration. configFile may be empty, in which case
// heliex.yaml is searched for in ".", "./config" and "$HOME/.heliex".
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HELIEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by the hosting environment.
	envMappings := map[string][]string{
		"gemini.api_key": {"HELIEX_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"},
		"database.url":   {"HELIEX_DATABASE_URL", "DATABASE_URL"},
	}
	for key, envs := range envMappings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("heliex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.heliex")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("Config file not found, using environment variables and defaults")
	} else {
		slog.Info("Using config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have a closed set of options.
func (c *Config) Validate() error {
	switch c.Engine.Traversal {
	case "depth-first", "topological":
	default:
		return fmt.Errorf("engine.traversal must be depth-first or topological, got %q", c.Engine.Traversal)
	}
	if c.Engine.NodeDelay < 0 {
		return errors.New("engine.node_delay must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-3-flash-preview")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("engine.node_delay", 800*time.Millisecond)
	v.SetDefault("engine.traversal", "depth-first")
	v.SetDefault("engine.log_size", 16)
	v.SetDefault("blueprint.file", "")
}
