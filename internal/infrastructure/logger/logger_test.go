package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigs(t *testing.T) {
	dev := DefaultConfig()
	assert.Equal(t, "debug", dev.Level)
	assert.Equal(t, "console", dev.Format)
	assert.Equal(t, "stderr", dev.Output)

	prod := ProductionConfig()
	assert.Equal(t, "info", prod.Level)
	assert.Equal(t, "json", prod.Format)
	assert.Equal(t, "stdout", prod.Output)
	assert.NotEmpty(t, prod.TimeFormat)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"default config", DefaultConfig()},
		{"production config", ProductionConfig()},
		{"missing time format", &Config{Level: "warn", Format: "json", Output: "stdout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	l, err := New(&Config{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "out.log")}, core)
	require.NoError(t, err)

	l.Info("staged", zap.String("sku", "A1"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "staged", entries[0].Message)
	assert.Equal(t, "A1", entries[0].ContextMap()["sku"])
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogsync.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("handoff", zap.Int("offset", 40))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"handoff"`)
	assert.Contains(t, string(data), `"offset":40`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewForEnvironment(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		l, err := NewForEnvironment(env)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}
