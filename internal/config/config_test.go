package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"DIGITNET_ARTIFACT_DIR", "DIGITNET_DATA_DIR", "LOG_LEVEL", "S3_ENDPOINT_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "checkpoints", cfg.ArtifactDir)
	assert.Equal(t, "", cfg.DataDir)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_EnvironmentAndFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "digitnet.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"DIGITNET_DATA_DIR=/data/mnist\nLOG_LEVEL=debug\nS3_ENDPOINT_URL=http://localhost:9000\n"), 0o600))

	t.Setenv("DIGITNET_ARTIFACT_DIR", "s3://bucket/runs")
	// Values already in the environment win over the file.
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DIGITNET_DATA_DIR", "")
	require.NoError(t, os.Unsetenv("DIGITNET_DATA_DIR"))
	t.Setenv("S3_ENDPOINT_URL", "")
	require.NoError(t, os.Unsetenv("S3_ENDPOINT_URL"))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/runs", cfg.ArtifactDir)
	assert.Equal(t, "/data/mnist", cfg.DataDir)
	assert.Equal(t, "http://localhost:9000", cfg.S3Options().Endpoint)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoad_MissingNamedFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLevel_Invalid(t *testing.T) {
	_, err := Env{LogLevel: "loud"}.Level()
	assert.Error(t, err)
}
