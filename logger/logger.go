// Package logger provides the categorized structured logger used across the engine.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Category defines the different categories of log events
type Category string

const (
	ENGINE    Category = "ENGINE"
	DECISION  Category = "DECISION"
	ECONOMY   Category = "ECONOMY"
	SCHEDULER Category = "SCHEDULER"
	PROTOCOL  Category = "PROTOCOL"
	LEDGER    Category = "LEDGER"
	STORE     Category = "STORE"
	SYSTEM    Category = "SYSTEM"
	ERROR     Category = "ERROR"
)

// Config controls where and how much the logger writes.
type Config struct {
	Level     string
	Component string
	// Dir enables a JSON file sink under Dir when set.
	Dir    string
	Output io.Writer
}

// Logger provides structured logging with different log categories
type Logger struct {
	component string
	slog      *slog.Logger
	file      *os.File
}

// ParseLevel maps a level name to a slog.Level. Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing colored output to the console and, if
// cfg.Dir is set, JSON lines to a timestamped file under it.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(cfg.Level)

	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	handlers := []slog.Handler{tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	})}

	var logFile *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err == nil {
			name := fmt.Sprintf("masp_%s.log", time.Now().Format("20060102_150405"))
			if f, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				logFile = f
				handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
			} else {
				fmt.Fprintf(out, "Warning: Could not create log file: %v\n", err)
			}
		}
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers)
	}
	l := slog.New(h)
	if cfg.Component != "" {
		l = l.With("component", cfg.Component)
	}
	return &Logger{component: cfg.Component, slog: l, file: logFile}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

// With returns a child logger tagged with component.
func (l *Logger) With(component string) *Logger {
	return &Logger{component: component, slog: l.slog.With("component", component)}
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close closes the log file if it's open
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

func (l *Logger) log(level slog.Level, category Category, action, target, format string, args ...any) {
	if !l.slog.Enabled(context.Background(), level) {
		return
	}
	attrs := []any{"category", string(category)}
	if action != "" {
		attrs = append(attrs, "action", action)
	}
	if target != "" {
		attrs = append(attrs, "target", target)
	}
	l.slog.Log(context.Background(), level, fmt.Sprintf(format, args...), attrs...)
}

// Info logs general information
func (l *Logger) Info(category Category, format string, args ...any) {
	l.log(slog.LevelInfo, category, "", "", format, args...)
}

// Debug logs verbose diagnostics such as soft rejects.
func (l *Logger) Debug(category Category, format string, args ...any) {
	l.log(slog.LevelDebug, category, "", "", format, args...)
}

// Warn logs recoverable problems
func (l *Logger) Warn(category Category, format string, args ...any) {
	l.log(slog.LevelWarn, category, "", "", format, args...)
}

// Engine logs step loop and lifecycle events
func (l *Logger) Engine(action, format string, args ...any) {
	l.log(slog.LevelInfo, ENGINE, action, "", format, args...)
}

// Decision logs an agent's decision outcome
func (l *Logger) Decision(agentName, format string, args ...any) {
	l.log(slog.LevelInfo, DECISION, "Decide", agentName, format, args...)
}

// Economy logs reputation and vouch effects
func (l *Logger) Economy(action, target, format string, args ...any) {
	l.log(slog.LevelInfo, ECONOMY, action, target, format, args...)
}

// Scheduler logs wake-time changes
func (l *Logger) Scheduler(agentName, format string, args ...any) {
	l.log(slog.LevelDebug, SCHEDULER, "Schedule", agentName, format, args...)
}

// Protocol logs remote decision and probe traffic
func (l *Logger) Protocol(endpoint, format string, args ...any) {
	l.log(slog.LevelDebug, PROTOCOL, "Remote", endpoint, format, args...)
}

// Ledger logs ledger mirroring
func (l *Logger) Ledger(action, format string, args ...any) {
	l.log(slog.LevelInfo, LEDGER, action, "", format, args...)
}

// Store logs persistence activity
func (l *Logger) Store(action, format string, args ...any) {
	l.log(slog.LevelDebug, STORE, action, "", format, args...)
}

// Error logs error conditions
func (l *Logger) Error(context string, format string, args ...any) {
	l.log(slog.LevelError, ERROR, context, "", format, args...)
}

// System logs system-level messages
func (l *Logger) System(action string, format string, args ...any) {
	l.log(slog.LevelInfo, SYSTEM, action, "", format, args...)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
