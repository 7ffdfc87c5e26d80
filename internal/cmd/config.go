package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mailcraft/mailcraft"
	"github.com/mailcraft/mailcraft/internal/store/postgres"
	"github.com/mailcraft/mailcraft/pkg/blob"
	"github.com/mailcraft/mailcraft/pkg/queue"
	"github.com/mailcraft/mailcraft/pkg/sender/resend"
	"github.com/mailcraft/mailcraft/pkg/sender/smtp"
	"github.com/mailcraft/mailcraft/pkg/view"
)

const defaultConfigFile = "mailcraft.yaml"

type appConfig struct {
	Server   serverConfig     `yaml:"server"`
	Log      logConfig        `yaml:"log"`
	Database postgres.Config  `yaml:"database"`
	Mail     mailcraft.Config `yaml:"mail"`
	Resend   resend.Config    `yaml:"resend"`
	SMTP     smtp.Config      `yaml:"smtp"`
	Views    view.Config      `yaml:"views"`
	Queue    queue.Config     `yaml:"queue"`
	Storage  storageConfig    `yaml:"storage"`
	Cache    cacheConfig      `yaml:"cache"`
}

type serverConfig struct {
	Addr string `yaml:"addr"`
}

type logConfig struct {
	Level             string `yaml:"level"`
	SentryDSN         string `yaml:"sentry_dsn"`
	SentryEnvironment string `yaml:"sentry_environment"`
}

func (c logConfig) slogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// storageConfig maps named attachment disks to S3 buckets.
type storageConfig struct {
	Disks map[string]blob.S3Config `yaml:"disks"`
}

type cacheConfig struct {
	// RedisURL enables the shared template cache; empty falls back to an
	// in-process cache.
	RedisURL    string        `yaml:"redis_url"`
	TemplateTTL time.Duration `yaml:"template_ttl"`
}

func loadConfig(path string) (appConfig, error) {
	cfg := appConfig{
		Server: serverConfig{Addr: ":8080"},
		Mail:   mailcraft.DefaultConfig(),
		Cache:  cacheConfig{TemplateTTL: time.Minute},
	}

	if path == "" {
		path = defaultConfigFile
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
