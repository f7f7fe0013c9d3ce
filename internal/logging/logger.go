// Package logging provides the structured diagnostic logger used while a
// migration runs. Reports and entry logs are written by package log; this
// package only carries progress and debug output, on stderr by default.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines the logging calls used across the tool.
type Logger interface {
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
	SetLevel(level string)
	WithContext(ctx map[string]interface{}) Logger
}

// ZeroLogger implements Logger using zerolog.
type ZeroLogger struct {
	zlog zerolog.Logger
}

// New creates a console logger writing to out, or stderr when out is nil.
func New(out io.Writer, level string) Logger {
	if out == nil {
		out = os.Stderr
	}

	_, isFile := out.(*os.File)
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: !isFile}
	output.FormatLevel = func(i any) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}

	l := &ZeroLogger{
		zlog: zerolog.New(output).With().Timestamp().Logger(),
	}
	l.SetLevel(level)
	return l
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &ZeroLogger{zlog: zerolog.Nop()}
}

func (l *ZeroLogger) Info(msg string, keyvals ...interface{}) {
	withFields(l.zlog.Info(), keyvals).Msg(msg)
}

func (l *ZeroLogger) Warn(msg string, keyvals ...interface{}) {
	withFields(l.zlog.Warn(), keyvals).Msg(msg)
}

func (l *ZeroLogger) Error(msg string, keyvals ...interface{}) {
	withFields(l.zlog.Error(), keyvals).Msg(msg)
}

func (l *ZeroLogger) Debug(msg string, keyvals ...interface{}) {
	withFields(l.zlog.Debug(), keyvals).Msg(msg)
}

// SetLevel sets the minimum level of this logger. Unknown names fall back
// to info; "disabled" silences it.
func (l *ZeroLogger) SetLevel(level string) {
	l.zlog = l.zlog.Level(ParseLevel(level))
}

// WithContext creates a new logger with additional fields.
func (l *ZeroLogger) WithContext(ctx map[string]interface{}) Logger {
	newLogger := l.zlog.With()
	for key, value := range ctx {
		newLogger = newLogger.Interface(key, value)
	}
	return &ZeroLogger{zlog: newLogger.Logger()}
}

// ParseLevel converts a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "quiet":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func withFields(event *zerolog.Event, keyvals []interface{}) *zerolog.Event {
	for i := 0; i < len(keyvals)-1; i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, keyvals[i+1])
	}
	return event
}
