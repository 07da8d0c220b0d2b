package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeHandler(t *testing.T) {
	var a, b bytes.Buffer
	h := NewTeeHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	require.Len(t, h, 2)

	logger := slog.New(h).With("core", "c1")
	logger.Debug("quiet")
	logger.Warn("loud")

	assert.Contains(t, a.String(), "quiet")
	assert.Contains(t, a.String(), "loud")
	assert.NotContains(t, b.String(), "quiet")
	assert.Contains(t, b.String(), "loud")
	assert.Contains(t, b.String(), "core=c1")
}

func TestOpenTextLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fed.log")
	h, f, err := OpenTextLog(path, slog.LevelInfo)
	require.NoError(t, err)

	slog.New(h).Info("hello", "n", 1)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, _, err = OpenTextLog(filepath.Join(t.TempDir(), "missing", "x.log"), nil)
	assert.Error(t, err)
}
