// Package klog provides named, leveled module loggers backed by zerolog.
package klog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// level is the process-wide minimum severity, adjustable via SetLevel.
var (
	mu    sync.Mutex
	level = zerolog.InfoLevel
	out   zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).With().Timestamp().Logger()
)

// SetLevel adjusts the process-wide minimum log severity.
func SetLevel(l zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()

	level = l
}

// SetOutput replaces the default stderr console writer with w for module
// loggers obtained from Module after the call. Loggers obtained earlier keep
// writing to the writer they were created with.
func SetOutput(w zerolog.ConsoleWriter) {
	mu.Lock()
	defer mu.Unlock()

	out = zerolog.New(w).With().Timestamp().Logger()
}

// levelFilter discards events below the level set by SetLevel at the time
// the event is written, so SetLevel also governs loggers created earlier.
type levelFilter struct{}

func (levelFilter) Run(e *zerolog.Event, l zerolog.Level, _ string) {
	mu.Lock()
	minLevel := level
	mu.Unlock()

	if l < minLevel {
		e.Discard()
	}
}

// Module returns a logger tagged with the given module name, e.g. "kopiorapido/retry".
func Module(name string) *zerolog.Logger {
	mu.Lock()
	l := out.Hook(levelFilter{}).With().Str("module", name).Logger()
	mu.Unlock()

	return &l
}
