package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "localhost:7233", cfg.Temporal.Address)
	assert.Equal(t, "sightline-pipeline", cfg.Temporal.TaskQueue)
	assert.Equal(t, 0.5, cfg.Scan.CallsPerSecond)
	assert.Equal(t, 5, cfg.Loop.MaxCompetitors)
	assert.Equal(t, 5, cfg.Loop.MaxQueries)
	assert.Equal(t, 3, cfg.Loop.MaxCycles)
	assert.Equal(t, 50, cfg.Feed.MaxPageSize)
	assert.Equal(t, 20, cfg.Feed.DefaultPageSize)
	assert.Equal(t, 120, cfg.Redis.RequestsPerWindow)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Anthropic.AnswerModels)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SIGHTLINE_STORE_DRIVER", "sqlite")
	t.Setenv("SIGHTLINE_TEMPORAL_TASK_QUEUE", "test-queue")
	t.Setenv("SIGHTLINE_LOOP_MAX_CYCLES", "7")
	t.Setenv("SIGHTLINE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "test-queue", cfg.Temporal.TaskQueue)
	assert.Equal(t, 7, cfg.Loop.MaxCycles)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "bogus", Format: "json"})
	require.Error(t, err)
}
