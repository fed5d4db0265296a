// Package config reads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/born-ml/digitnet/internal/artifact"
)

// DefaultEnvFile is loaded when present and no other file is named.
const DefaultEnvFile = ".env"

// Env holds the settings shared by all commands. Flags override them.
type Env struct {
	ArtifactDir string `env:"DIGITNET_ARTIFACT_DIR" envDefault:"checkpoints"`
	DataDir     string `env:"DIGITNET_DATA_DIR" envDefault:""`
	HistoryDB   string `env:"DIGITNET_HISTORY_DB" envDefault:""`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	S3Endpoint      string `env:"S3_ENDPOINT_URL" envDefault:""`
	S3Region        string `env:"AWS_REGION" envDefault:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
}

// Load reads envFile (or .env when envFile is empty and the file exists)
// into the process environment without overriding variables already set,
// then parses Env.
func Load(envFile string) (Env, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("error loading env file %q: %w", path, err)
		}
	}

	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return cfg, nil
}

// S3Options returns the S3 client settings.
func (e Env) S3Options() artifact.S3Options {
	return artifact.S3Options{
		Endpoint:        e.S3Endpoint,
		Region:          e.S3Region,
		AccessKeyID:     e.AccessKeyID,
		SecretAccessKey: e.SecretAccessKey,
	}
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (e Env) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(e.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", e.LogLevel, err)
	}
	return level, nil
}
