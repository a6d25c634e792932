/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of log messages
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a flag value to a Level. Unknown values fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config holds the logger configuration
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
}

// Logger writes leveled entries with ordered structured fields.
type Logger struct {
	config Config
	mu     sync.Mutex
	out    *log.Logger
}

// New creates a logger writing to w.
func New(config Config, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{config: config, out: log.New(w, "", 0)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Level: ErrorLevel + 1}, io.Discard)
}

// Named returns a copy of the logger tagged with a sub-component.
func (l *Logger) Named(component string) *Logger {
	cfg := l.config
	if cfg.Component != "" {
		cfg.Component = cfg.Component + "." + component
	} else {
		cfg.Component = component
	}
	return &Logger{config: cfg, out: l.out}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.config.Level
}

// Log writes a log message
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Time:      time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.config.Component,
		fields:    fields,
	}

	var output string
	if l.config.JSON {
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			output = fmt.Sprintf(`{"level":"ERROR","message":"log marshal failed: %v"}`, err)
		} else {
			output = string(jsonBytes)
		}
	} else {
		output = l.formatPretty(entry)
	}

	l.mu.Lock()
	l.out.Print(output)
	l.mu.Unlock()
}

func (l *Logger) Trace(message string, fields ...Field) { l.Log(TraceLevel, message, fields...) }
func (l *Logger) Debug(message string, fields ...Field) { l.Log(DebugLevel, message, fields...) }
func (l *Logger) Info(message string, fields ...Field)  { l.Log(InfoLevel, message, fields...) }
func (l *Logger) Warn(message string, fields ...Field)  { l.Log(WarnLevel, message, fields...) }
func (l *Logger) Error(message string, fields ...Field) { l.Log(ErrorLevel, message, fields...) }

var levelColors = map[string]string{
	"TRACE": "37",
	"DEBUG": "36",
	"INFO":  "32",
	"WARN":  "33",
	"ERROR": "31",
}

// formatPretty formats the log entry in a human-readable way
func (l *Logger) formatPretty(entry LogEntry) string {
	var b strings.Builder

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))

	level := entry.Level
	if l.config.UseColor {
		if code, ok := levelColors[level]; ok {
			level = "\033[" + code + "m" + level + "\033[0m"
		}
	}
	fmt.Fprintf(&b, " [%s]", level)

	if entry.Component != "" {
		fmt.Fprintf(&b, " %s:", entry.Component)
	}
	b.WriteString(" ")
	b.WriteString(entry.Message)

	if len(entry.fields) > 0 {
		b.WriteString(" {")
		for i, f := range entry.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", f.Key, f.Value)
		}
		b.WriteString("}")
	}

	return b.String()
}

// Field represents a structured field in a log entry
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Float(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration records d in milliseconds so JSON consumers get a number.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key + "_ms", Value: d.Milliseconds()}
}

// Err creates an error field; a nil error is rendered as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// LogEntry represents a log entry
type LogEntry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	fields    []Field
}

// MarshalJSON flattens ordered fields into a "fields" object.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	type plain LogEntry
	out := struct {
		plain
		Fields map[string]interface{} `json:"fields,omitempty"`
	}{plain: plain(e)}
	if len(e.fields) > 0 {
		out.Fields = make(map[string]interface{}, len(e.fields))
		for _, f := range e.fields {
			out.Fields[f.Key] = f.Value
		}
	}
	return json.Marshal(out)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Initialize sets up the default logger used by the package-level helpers.
func Initialize(config Config) {
	defaultMu.Lock()
	defaultLogger = New(config, os.Stderr)
	defaultMu.Unlock()
}

// Default returns the package logger, or a stderr INFO logger when Initialize was never called.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	return New(Config{Level: InfoLevel, Component: "codescore"}, os.Stderr)
}

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger != nil {
		defaultLogger.out.SetOutput(w)
	}
}

func Trace(message string, fields ...Field) { Default().Trace(message, fields...) }
func Debug(message string, fields ...Field) { Default().Debug(message, fields...) }
func Info(message string, fields ...Field)  { Default().Info(message, fields...) }
func Warn(message string, fields ...Field)  { Default().Warn(message, fields...) }
func Error(message string, fields ...Field) { Default().Error(message, fields...) }
