package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file created in the log directory.
const FileName = "flightsim-client.log"

// Logger is an slog.Logger that may own a rotating log file.
type Logger struct {
	*slog.Logger
	LogFile string
	file    io.Closer
}

// ParseLevel maps debug, info, warn and error to a slog level. Unknown names
// yield info and an error.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: invalid level %q", level)
	}
}

// New builds a logger writing text to stderr and, when dir is set, JSON to a
// rotated file in dir. Stdout is left alone for the MCP stdio transport.
func New(level, dir string) *Logger {
	return newLogger(os.Stderr, level, dir)
}

func newLogger(console io.Writer, level, dir string) *Logger {
	lvl, err := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	handlers := []slog.Handler{slog.NewTextHandler(console, opts)}
	l := &Logger{}
	if dir != "" {
		w := &lumberjack.Logger{
			Filename:   filepath.Join(dir, FileName),
			MaxSize:    32, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
		l.LogFile = w.Filename
		l.file = w
	}

	l.Logger = slog.New(NewMultiHandler(handlers...))
	if err != nil {
		l.Warn("Falling back to info level", "err", err)
	}
	return l
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
