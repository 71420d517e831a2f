// Package logger provides component-tagged structured logging.
//
// Every entry carries a component name ("dispatch", "onebot", ...) and an
// optional field map, so call sites read like
//
//	logger.InfoCF("dispatch", "Private message sent", map[string]any{"user_id": id})
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	base     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the minimum level emitted by all loggers.
func SetLevel(level LogLevel) {
	levelVar.Set(level.slogLevel())
}

// GetLevel returns the current minimum level.
func GetLevel() LogLevel {
	switch l := levelVar.Level(); {
	case l <= slog.LevelDebug:
		return DEBUG
	case l <= slog.LevelInfo:
		return INFO
	case l <= slog.LevelWarn:
		return WARN
	default:
		return ERROR
	}
}

// SetOutput redirects log output. json selects the JSON handler.
func SetOutput(w io.Writer, json bool) {
	opts := &slog.HandlerOptions{Level: levelVar}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	mu.Lock()
	base = slog.New(h)
	mu.Unlock()
}

func logf(level LogLevel, component, msg string, fields map[string]any) {
	mu.RLock()
	l := base
	mu.RUnlock()

	lvl := level.slogLevel()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+1)
	if component != "" {
		attrs = append(attrs, slog.String("component", component))
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.LogAttrs(context.Background(), lvl, msg, attrs...)
}

func Debug(msg string)                                      { logf(DEBUG, "", msg, nil) }
func DebugC(component, msg string)                          { logf(DEBUG, component, msg, nil) }
func DebugCF(component, msg string, fields map[string]any) { logf(DEBUG, component, msg, fields) }

func Info(msg string)                                      { logf(INFO, "", msg, nil) }
func InfoC(component, msg string)                          { logf(INFO, component, msg, nil) }
func InfoCF(component, msg string, fields map[string]any) { logf(INFO, component, msg, fields) }

func Warn(msg string)                                      { logf(WARN, "", msg, nil) }
func WarnC(component, msg string)                          { logf(WARN, component, msg, nil) }
func WarnCF(component, msg string, fields map[string]any) { logf(WARN, component, msg, fields) }

func Error(msg string)                                      { logf(ERROR, "", msg, nil) }
func ErrorC(component, msg string)                          { logf(ERROR, component, msg, nil) }
func ErrorCF(component, msg string, fields map[string]any) { logf(ERROR, component, msg, fields) }
