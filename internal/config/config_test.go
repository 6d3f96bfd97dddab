package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"vimeodl/internal/config"
	"vimeodl/internal/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		config.EnvUserAgent, config.EnvLogLevel, config.EnvLogFormat, config.EnvTimeout,
		config.EnvRetries, config.EnvRetryDelay, config.EnvFFmpeg, config.EnvHeaders,
	} {
		t.Setenv(key, "")
	}

	cfg := config.FromEnv("1.2.3")
	assert.Equal(t, "vimeo-dl/1.2.3", cfg.UserAgent)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Empty(t, cfg.FFmpegPath)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(config.EnvUserAgent, "custom-agent")
	t.Setenv(config.EnvTimeout, "5s")
	t.Setenv(config.EnvRetries, "7")
	t.Setenv(config.EnvRetryDelay, "not-a-duration")
	t.Setenv(config.EnvFFmpeg, "/opt/ffmpeg/bin/ffmpeg")

	cfg := config.FromEnv("dev")
	assert.Equal(t, "custom-agent", cfg.UserAgent)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.Retries)
	assert.Equal(t, fetch.DefaultRetryDelay, cfg.RetryDelay, "invalid values fall back to defaults")
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VIMEO_DL_RETRIES=4\n"), 0644))
	t.Setenv(config.EnvRetries, "")
	os.Unsetenv(config.EnvRetries)

	require.NoError(t, config.Load(path))
	assert.Equal(t, 4, config.FromEnv("dev").Retries)
}

func TestLoad_MissingFile(t *testing.T) {
	err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"referer": "https://player.example.com/", "X-Custom": "1"}`), 0644))

	headers, err := config.LoadHeaders(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Referer":  "https://player.example.com/",
		"X-Custom": "1",
	}, headers)

	headers, err = config.LoadHeaders("")
	assert.NoError(t, err)
	assert.Nil(t, headers)
}

func TestLoadHeaders_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := config.LoadHeaders(filepath.Join(dir, "nope.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`["not", "an", "object"]`), 0644))
	_, err = config.LoadHeaders(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty-name.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{" ": "x"}`), 0644))
	_, err = config.LoadHeaders(empty)
	assert.Error(t, err)
}
