package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		verbose int
		quiet   bool
		enabled zapcore.Level
		blocked zapcore.Level
	}{
		{"default info", LogConfig{}, 0, false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"configured warn", LogConfig{Level: "warn", Format: "json"}, 0, false, zapcore.WarnLevel, zapcore.InfoLevel},
		{"verbose lowers level", LogConfig{Level: "warn"}, 1, false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"very verbose", LogConfig{Level: "warn"}, 5, false, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"quiet wins", LogConfig{Level: "debug"}, 2, true, zapcore.ErrorLevel, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg, tt.verbose, tt.quiet)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.blocked))
		})
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud"}, 0, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}
