package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := New(tt.level)
			require.NotNil(t, logger)
			assert.True(t, logger.Enabled(nil, tt.enabled))
		})
	}
}

func TestNewDebugDisabledAtInfo(t *testing.T) {
	logger := New("info")
	assert.False(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestDefault(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
}

func TestWith(t *testing.T) {
	logger := Default().With("component", "test")
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}
