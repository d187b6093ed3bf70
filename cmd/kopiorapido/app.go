// Package main is the kopiorapido CLI composition root (spec §6): a thin
// kingpin verb tree over the engine package, grounded on kopia's
// cli/app.go single-struct-holds-everything pattern.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"

	"github.com/KredoKodo/KopioRapido-sub000/engine"
	"github.com/KredoKodo/KopioRapido-sub000/internal/engineconfig"
	"github.com/KredoKodo/KopioRapido-sub000/internal/klog"
)

//nolint:gochecknoglobals
var (
	defaultColor = color.New()
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgHiRed)
	noteColor    = color.New(color.FgHiCyan)
)

// app holds per-invocation global flags and the Engine they configure.
type app struct {
	verbose    bool
	jsonOutput bool
	plain      bool
	forceColor bool
	stateDir   string
	logLevel   string

	eng *engine.Engine

	osExit       func(int)
	stdoutWriter io.Writer
	stderrWriter io.Writer
}

func newApp() *app {
	return &app{
		logLevel:     "info",
		osExit:       os.Exit,
		stdoutWriter: colorable.NewColorableStdout(),
		stderrWriter: colorable.NewColorableStderr(),
	}
}

// setup registers kopiorapido's global flags on app and attaches every verb
// group, mirroring kopia App.setup's single place-everything-is-wired style.
func (a *app) setup(kp *kingpin.Application) {
	kp.Flag("verbose", "Enable debug-level logging").Short('v').BoolVar(&a.verbose)
	kp.Flag("json", "Emit machine-readable JSON records instead of text").BoolVar(&a.jsonOutput)
	kp.Flag("plain", "Disable colour and the live progress line").BoolVar(&a.plain)
	kp.Flag("color", "Force colour output even when stdout is not a terminal").BoolVar(&a.forceColor)
	kp.Flag("state-dir", "Override the resume-state directory (default: per-user local app data)").StringVar(&a.stateDir)
	kp.Flag("log-level", "Minimum log severity (debug, info, warn, error)").Default("info").StringVar(&a.logLevel)

	kp.PreAction(func(*kingpin.ParseContext) error {
		return a.init()
	})

	a.setupOperationCommands(kp)
	a.setupResumeCommand(kp)
	a.setupListCommand(kp)
}

// init applies the parsed global flags: builds the Engine, adjusts the
// logger, and disables colour where §6 requires plain/JSON output.
func (a *app) init() error {
	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if a.verbose {
		level = zerolog.DebugLevel
	}

	klog.SetLevel(level)

	if a.jsonOutput || a.plain || !a.forceColor && !isTerminal() {
		color.NoColor = true
	}

	if a.forceColor {
		color.NoColor = false
	}

	cfg := engineconfig.Default(engineconfig.WithLogLevel(a.logLevel))
	if a.stateDir != "" {
		cfg.StateRoot = a.stateDir
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	a.eng = eng

	return nil
}

func (a *app) fail(err error) {
	if a.jsonOutput {
		writeJSON(a.stdoutWriter, jsonError{Error: err.Error()})
	} else {
		errorColor.Fprintf(a.stderrWriter, "error: %v\n", err) //nolint:errcheck
	}

	a.osExit(1)
}

func (a *app) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	if a.jsonOutput {
		writeJSON(a.stdoutWriter, jsonMessage{Level: "warning", Message: msg})
		return
	}

	warningColor.Fprintf(a.stderrWriter, "warning: %s\n", msg) //nolint:errcheck
}

func main() {
	a := newApp()

	kp := kingpin.New("kopiorapido", "Resumable, adaptive file-transfer engine.")
	a.setup(kp)

	cmd := kingpin.MustParse(kp.Parse(os.Args[1:]))

	ctx, cancel := installSignalHandler()
	defer cancel()

	if run, ok := runners[cmd]; ok {
		run(ctx, a)
	}
}

// runners is populated by setupOperationCommands/setupResumeCommand/
// setupListCommand, keyed by the kingpin full command string.
//
//nolint:gochecknoglobals
var runners = map[string]func(ctx context.Context, a *app){}
