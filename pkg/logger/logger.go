package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the API server and the storecopy tool.
// Package-level helpers log without a component; Named returns a logger
// that prefixes every line with "[component]".

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	out    *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
	exitFn             = os.Exit
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// ParseLevel maps a LOG_LEVEL value to a Level.
func ParseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SetOutput redirects all log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", 0)
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return level.String()
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func emit(l Level, component, format string, v ...interface{}) {
	if l < LevelFatal && !enabled(l) {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(l.String()))
	b.WriteString("] ")
	if component != "" {
		b.WriteString("[" + component + "] ")
	}
	b.WriteString(fmt.Sprintf(format, v...))
	mu.RLock()
	o := out
	mu.RUnlock()
	o.Print(b.String())
}

func Debugf(format string, v ...interface{}) { emit(LevelDebug, "", format, v...) }
func Infof(format string, v ...interface{})  { emit(LevelInfo, "", format, v...) }
func Warnf(format string, v ...interface{})  { emit(LevelWarn, "", format, v...) }
func Errorf(format string, v ...interface{}) { emit(LevelError, "", format, v...) }

func Fatalf(format string, v ...interface{}) {
	emit(LevelFatal, "", format, v...)
	exitFn(1)
}

func Info(v string) { Infof("%s", v) }
func Warn(v string) { Warnf("%s", v) }

// Logger is a component-scoped view of the global logger.
type Logger struct {
	component string
}

// Named returns a logger whose lines carry the given component tag.
func Named(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Debugf(format string, v ...interface{}) { emit(LevelDebug, l.component, format, v...) }
func (l *Logger) Infof(format string, v ...interface{})  { emit(LevelInfo, l.component, format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { emit(LevelWarn, l.component, format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { emit(LevelError, l.component, format, v...) }
