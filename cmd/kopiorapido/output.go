package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
)

// jsonError is the §6 `--json` error record: `{"error":...}`.
type jsonError struct {
	Error string `json:"error"`
}

// jsonMessage is the §6 `--json` warning/info record.
type jsonMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// writeJSON emits one JSON value terminated by a newline, per §6's "one
// JSON value per stdout write" requirement.
func writeJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// installSignalHandler links a single cancellation signal to SIGINT/SIGTERM
// (spec §5: "a single cancellation signal is linked to an external caller's
// signal"), returning a context cancelled on the first such signal.
func installSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
