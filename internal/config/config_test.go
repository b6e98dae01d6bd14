package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CALL_TIMEOUT_SECONDS", "")
	t.Setenv("SCENE_MODEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 120*time.Second, cfg.CallTimeout)
	assert.Equal(t, "imagen-4.0-generate-001", cfg.SceneModel)
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoadClampsInvalidValues(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("SCENE_BATCH_PARALLELISM", "-3")
	t.Setenv("CALL_TIMEOUT_SECONDS", "-1")
	t.Setenv("MIN_CALL_INTERVAL_MS", "abc")
	t.Setenv("DEBUG", "yes-please")
	t.Setenv("TELEGRAM_BOT_TOKEN", " token ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 1, cfg.SceneParallelism)
	assert.Equal(t, 120*time.Second, cfg.CallTimeout)
	assert.Zero(t, cfg.MinCallInterval)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.NoError(t, cfg.RequireTelegram())
}
