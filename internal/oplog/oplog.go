// Package oplog writes the per-operation plain-text log required by §6:
// Logs/<uuid>.log, one line per event in the form
//
//	YYYY-MM-DD HH:MM:SS.fff [LEVEL] message [| File: <path>] [\n    Exception: <...>]
//
// It is a dedicated per-operation zerolog.Logger writing to the log file's
// io.Writer through a custom zerolog.ConsoleWriter formatter, the same
// console-writer-over-an-arbitrary-io.Writer pattern internal/klog uses for
// the process-wide module loggers, just reformatted to the §6 line shape
// instead of klog's own.
package oplog

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
)

// Level is the severity of a logged event.
type Level string

// Severity levels accepted by Log.
const (
	Info    Level = "INFO"
	Warning Level = "WARN"
	Error   Level = "ERROR"
)

const (
	fieldFile = "file"
	fieldErr  = "error"
)

// Log is a single operation's append-only text log file.
type Log struct {
	zl zerolog.Logger
}

// New wraps w (typically an *os.File opened in append mode) as an operation log.
func New(w io.Writer) *Log {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05.000",
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("[%s]", strings.ToUpper(fmt.Sprint(i)))
		},
		FormatFieldName: func(i interface{}) string {
			if i == fieldFile {
				return "| File:"
			}

			return "\n    Exception:"
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%v", i)
		},
	}

	zl := zerolog.New(cw).Hook(timestampHook{})

	return &Log{zl: zl}
}

// timestampHook pins every event's timestamp to clock.Now so operation logs
// stay deterministic under the injectable clock used elsewhere (retry
// backoff, ETA, performance sampling).
type timestampHook struct{}

func (timestampHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Str(zerolog.TimestampFieldName, clock.Now().Format(timestampLayout))
}

// timestampLayout is the §6 line timestamp. It is written pre-formatted
// because zerolog's default time encoding drops the milliseconds.
const timestampLayout = "2006-01-02 15:04:05.000"

func levelOf(l Level) zerolog.Level {
	switch l {
	case Warning:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Event writes one log line. file and err may be empty/nil.
func (l *Log) Event(level Level, message string, file string, err error) {
	ev := l.zl.WithLevel(levelOf(level))

	// The suffixes go into the message rather than into fields: the console
	// writer sorts fields, puts "error" first under its own label, and
	// quotes values containing spaces.
	if file != "" {
		message += " | File: " + file
	}

	if err != nil {
		message += "\n    Exception: " + err.Error()
	}

	ev.Msg(message)
}

// Infof logs an INFO line about file (file may be "").
func (l *Log) Infof(file, format string, args ...interface{}) {
	l.Event(Info, fmt.Sprintf(format, args...), file, nil)
}

// Warnf logs a WARN line about file (file may be "").
func (l *Log) Warnf(file, format string, args ...interface{}) {
	l.Event(Warning, fmt.Sprintf(format, args...), file, nil)
}

// Errorf logs an ERROR line about file with an attached cause.
func (l *Log) Errorf(file string, err error, format string, args ...interface{}) {
	l.Event(Error, fmt.Sprintf(format, args...), file, err)
}
