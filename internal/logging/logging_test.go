package logging

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardata-bridge/cdb/internal/config"
)

func TestSetupCreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	closer, err := Setup(config.LoggingConfig{Dir: dir, Level: "debug", MaxSizeMB: 1})
	require.NoError(t, err)
	defer closer.Close()

	assert.DirExists(t, dir)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := Setup(config.LoggingConfig{Dir: t.TempDir(), Level: "verbose"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "level %q", tt.in)
	}
}

func TestErrAttr(t *testing.T) {
	assert.Equal(t, "no-error", Err(nil).Value.String())
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
}
