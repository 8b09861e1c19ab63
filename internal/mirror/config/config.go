// Package config holds settings of the downstream mirror. Values come from
// defaults, an optional YAML/JSON file, CARTOGRAPHER_MIRROR_* variables and
// command-line flags bound through viper.
package config

import (
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CARTOGRAPHER_MIRROR"

// Config holds runtime settings for the mirror.
type Config struct {
	ServerURL   string        `mapstructure:"server_url"`
	DatabaseDSN string        `mapstructure:"database_dsn"`
	Token       string        `mapstructure:"token"`
	PageSize    int           `mapstructure:"page_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Published   bool          `mapstructure:"published"`
	LogBackend  string        `mapstructure:"log_backend"`
	LogLevel    string        `mapstructure:"log_level"`
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://127.0.0.1:8000")
	v.SetDefault("database_dsn", "file:mirror.db")
	v.SetDefault("token", "")
	v.SetDefault("page_size", 200)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("published", false)
	v.SetDefault("log_backend", "slog")
	v.SetDefault("log_level", "info")
}

// Load reads v into a Config, applying defaults for anything unset.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
