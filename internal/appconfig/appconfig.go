// Package appconfig loads the ambient, non-domain settings for the CLI:
// log level and format, and whether human-readable output uses color.
// It never decides the witness ledger path — that is resolved directly
// from the documented EPISTEMIC_WITNESS environment variable by
// pkg/witness, which this layer must not shadow.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds ambient CLI settings: defaults, overridden by an optional
// ~/.epistemic/config.yaml file, overridden in turn by environment
// variables prefixed LOCK_.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Color     bool   `mapstructure:"color"`
}

// Load reads ambient configuration. A missing config file is not an
// error; defaults plus environment variables are sufficient.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		v.AddConfigPath(filepath.Join(home, ".epistemic"))
	}

	v.SetEnvPrefix("LOCK")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("color", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("appconfig: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("appconfig: unmarshal: %w", err)
	}
	return &cfg, nil
}
