package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "")
	defer l.Close()

	l.Info("hidden")
	l.Warn("Sync step failed", "seq", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Sync step failed")
	assert.Contains(t, out, "seq=7")
	assert.Empty(t, l.LogFile)
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "loud", "")

	l.Info("visible")
	assert.Contains(t, buf.String(), "Falling back to info level")
	assert.Contains(t, buf.String(), "visible")
}

func TestFileReceivesJSON(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := newLogger(&buf, "info", dir)

	l.With("component", "sim").Info("Simulation ended", "steps", 1999)
	require.NoError(t, l.Close())

	assert.Equal(t, filepath.Join(dir, FileName), l.LogFile)
	data, err := os.ReadFile(l.LogFile)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	assert.Equal(t, "Simulation ended", rec["msg"])
	assert.Equal(t, "sim", rec["component"])
	assert.Equal(t, float64(1999), rec["steps"])
	assert.Contains(t, buf.String(), "Simulation ended")
}

func TestMultiHandlerRespectsEachLevel(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	lg := slog.New(h).WithGroup("sync")

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	lg.Debug("step dispatched", "seq", 1)
	lg.Error("integrator down")

	assert.Contains(t, debugBuf.String(), "step dispatched")
	assert.Contains(t, debugBuf.String(), "sync.seq=1")
	assert.NotContains(t, errorBuf.String(), "step dispatched")
	assert.Contains(t, errorBuf.String(), "integrator down")
}
