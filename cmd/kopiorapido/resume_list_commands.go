package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/KredoKodo/KopioRapido-sub000/internal/units"
)

func (a *app) setupResumeCommand(kp *kingpin.Application) {
	cmd := kp.Command("resume", "Resume a previously interrupted operation.")

	var id string

	cmd.Arg("id", "Operation ID, as printed by 'list'.").Required().StringVar(&id)

	runners["resume"] = func(ctx context.Context, a *app) {
		progress := newLineProgress(a)

		op, err := a.eng.ResumeOperation(ctx, id, progress.sink())

		progress.done()

		a.reportOperation(op, err)
	}
}

func (a *app) setupListCommand(kp *kingpin.Application) {
	kp.Command("list", "List resumable operations.")

	runners["list"] = func(ctx context.Context, a *app) {
		ops, err := a.eng.ListResumable()
		if err != nil {
			a.fail(err)
			return
		}

		if a.jsonOutput {
			writeJSON(a.stdoutWriter, ops)
			a.osExit(0)
			return
		}

		if len(ops) == 0 {
			fmt.Fprintln(a.stdoutWriter, "no resumable operations") //nolint:errcheck
			a.osExit(0)
			return
		}

		for _, op := range ops {
			fmt.Fprintf(a.stdoutWriter, "%s  %-8s %-20s %s -> %s  %d/%d files (%s)\n", //nolint:errcheck
				op.ID, op.Status, op.OperationType, op.SourcePath, op.DestinationPath,
				op.FilesTransferred, op.TotalFiles, units.BytesString(op.BytesTransferred))
		}

		a.osExit(0)
	}
}
