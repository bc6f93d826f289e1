package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigureDefaultsToInfoLevel(t *testing.T) {
	logger := Configure("", "json")
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
}

func TestConfigureDebugLevelEnablesDebug(t *testing.T) {
	logger := Configure("debug", "json")
	ctx := context.Background()
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
}

func TestConfigureWarnLevelDisablesInfo(t *testing.T) {
	logger := Configure("warn", "json")
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))
}

func TestConfigureErrorLevelDisablesWarn(t *testing.T) {
	logger := Configure("error", "text")
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelWarn))
	assert.True(t, logger.Enabled(ctx, slog.LevelError))
}

func TestConfigureIsCaseInsensitive(t *testing.T) {
	logger := Configure("DEBUG", "JSON")
	ctx := context.Background()
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
}

func TestConfigureSetsDefaultLogger(t *testing.T) {
	logger := Configure("info", "text")
	assert.Same(t, logger, slog.Default())
}

func TestConfigureUnknownFormatFallsBackToJSON(t *testing.T) {
	logger := Configure("info", "yaml")
	ctx := context.Background()
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo))
}
