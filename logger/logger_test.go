package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_CategoriesAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Component: "engine", Output: &buf})

	l.Economy("VOUCH", "bob", "granted +%d", 2)
	l.Debug(ECONOMY, "hidden %s", "line")

	out := buf.String()
	assert.Contains(t, out, "granted +2")
	assert.Contains(t, out, "category=ECONOMY")
	assert.Contains(t, out, "target=bob")
	assert.Contains(t, out, "component=engine")
	assert.NotContains(t, out, "hidden line")
}

func TestLogger_FileSink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Dir: dir, Output: &buf})
	l.System("Start", "booted")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "masp_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"booted"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("ctx", "nothing %d", 1)
	})
}
