// Package config loads tracker configuration from config.yaml and the
// environment. Environment variables use the MB_ prefix and override
// file values (MB_DB overrides db, MB_SMTP_HOST overrides smtp.host).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full runtime configuration.
type Config struct {
	DBPath     string        `mapstructure:"db"`
	ListenAddr string        `mapstructure:"listen"`
	BaseURL    string        `mapstructure:"base-url"`
	UploadDir  string        `mapstructure:"upload-dir"`
	SessionTTL time.Duration `mapstructure:"session-ttl"`
	SMTP       SMTP          `mapstructure:"smtp"`
	AI         AI            `mapstructure:"ai"`
}

// AI holds description generation settings. An empty API key disables
// the feature unless ANTHROPIC_API_KEY is set in the environment.
type AI struct {
	APIKey string `mapstructure:"api-key"`
	Model  string `mapstructure:"model"`
}

// SMTP holds mail relay settings. An empty host disables outbound mail.
type SMTP struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	From string `mapstructure:"from"`
}

// Load reads configuration from the given file (optional) and the
// environment. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("db", "managebug.db")
	v.SetDefault("listen", ":8080")
	v.SetDefault("base-url", "http://localhost:8080")
	v.SetDefault("upload-dir", "uploads")
	v.SetDefault("session-ttl", "720h")
	// Every key needs a default so AutomaticEnv can see it during
	// Unmarshal; viper only merges env values for known keys.
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("ai.api-key", "")
	v.SetDefault("ai.model", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; the implicit search may miss.
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
