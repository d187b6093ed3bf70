package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/internal/units"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

// operationFlags are the shared per-verb flags on every operation command
// (spec §6): `--analyze --strategy --max-concurrent --buffer-size
// --no-compression --no-delta-sync`.
type operationFlags struct {
	source      string
	destination string

	analyze       bool
	strategyName  string
	maxConcurrent int
	bufferSizeKiB int
	noCompression bool
	noDeltaSync   bool
}

func bindOperationFlags(cmd *kingpin.CmdClause, f *operationFlags) {
	cmd.Arg("source", "Source path.").Required().ExistingFileOrDirVar(&f.source)
	cmd.Arg("destination", "Destination path.").Required().StringVar(&f.destination)

	cmd.Flag("analyze", "Print the plan and exit without transferring anything").BoolVar(&f.analyze)
	cmd.Flag("strategy", "Force a transfer strategy instead of auto-selecting one").EnumVar(&f.strategyName, "sequential", "conservative", "moderate", "aggressive")
	cmd.Flag("max-concurrent", "Override the strategy's concurrent-file limit").IntVar(&f.maxConcurrent)
	cmd.Flag("buffer-size", "Override the strategy's copy buffer size, in KiB").IntVar(&f.bufferSizeKiB)
	cmd.Flag("no-compression", "Disable on-the-wire compression").BoolVar(&f.noCompression)
	cmd.Flag("no-delta-sync", "Disable delta synchronisation of partially-matching files").BoolVar(&f.noDeltaSync)
}

// setupOperationCommands registers copy/move/sync/mirror/bidirectional-sync.
func (a *app) setupOperationCommands(kp *kingpin.Application) {
	specs := []struct {
		verb   string
		help   string
		opType model.OperationType
	}{
		{"copy", "Copy files from source to destination.", model.OpCopy},
		{"move", "Move files from source to destination, deleting the source once copied.", model.OpMove},
		{"sync", "One-way synchronise destination to match source's newer files.", model.OpSync},
		{"mirror", "Make destination an exact mirror of source, deleting extras.", model.OpMirror},
		{"bidirectional-sync", "Synchronise source and destination in both directions.", model.OpBiDirectionalSync},
	}

	for _, s := range specs {
		s := s

		cmd := kp.Command(s.verb, s.help)
		f := &operationFlags{}
		bindOperationFlags(cmd, f)

		full := s.verb
		runners[full] = func(ctx context.Context, a *app) {
			a.runOperation(ctx, s.opType, f)
		}
	}
}

// strategyOverride builds a *model.TransferStrategy from auto-selection
// overlaid with any explicit CLI flags, or nil if none were given.
func (a *app) strategyOverride(ctx context.Context, f *operationFlags) (*model.TransferStrategy, error) {
	explicit := f.strategyName != "" || f.maxConcurrent > 0 || f.bufferSizeKiB > 0 || f.noCompression || f.noDeltaSync
	if !explicit {
		return nil, nil //nolint:nilnil
	}

	_, _, _, auto, err := a.eng.AnalyseAndSelectStrategy(ctx, f.source, f.destination)
	if err != nil {
		return nil, errors.Wrap(err, "selecting base strategy")
	}

	if f.strategyName != "" {
		auto.Mode = modeFromFlag(f.strategyName)
		auto.MaxConcurrentFiles = model.ConcurrencyFor(auto.Mode)
	}

	if f.maxConcurrent > 0 {
		auto.MaxConcurrentFiles = f.maxConcurrent
	}

	if f.bufferSizeKiB > 0 {
		auto.BufferSizeKiB = f.bufferSizeKiB
	}

	if f.noCompression {
		auto.UseCompression = false
	}

	if f.noDeltaSync {
		auto.UseDeltaSync = false
	}

	return &auto, nil
}

func modeFromFlag(name string) model.TransferMode {
	switch name {
	case "conservative":
		return model.ParallelConservative
	case "moderate":
		return model.ParallelModerate
	case "aggressive":
		return model.ParallelAggressive
	default:
		return model.Sequential
	}
}

func (a *app) runOperation(ctx context.Context, opType model.OperationType, f *operationFlags) {
	if f.analyze {
		a.runAnalyze(ctx, opType, f)
		return
	}

	strat, err := a.strategyOverride(ctx, f)
	if err != nil {
		a.fail(err)
		return
	}

	progress := newLineProgress(a)

	op, err := a.eng.StartOperation(ctx, f.source, f.destination, opType, progress.sink(), strat)

	progress.done()

	a.reportOperation(op, err)
}

func (a *app) runAnalyze(ctx context.Context, opType model.OperationType, f *operationFlags) {
	summary, err := a.eng.AnalyseSync(ctx, f.source, f.destination, opType)
	if err != nil {
		a.fail(err)
		return
	}

	if a.jsonOutput {
		writeJSON(a.stdoutWriter, summary)
		return
	}

	fmt.Fprintf(a.stdoutWriter, "%s: %d file(s) to copy (%s), %d to delete, %d identical\n", //nolint:errcheck
		summary.OperationType, summary.FilesToCopy, units.BytesString(summary.TotalBytesToCopy), summary.FilesToDelete, summary.Identical)
}

// reportOperation prints the terminal CopyOperation and sets the process
// exit code per §6: 0 success, 1 failure, 130 cancelled.
func (a *app) reportOperation(op *model.CopyOperation, err error) {
	if op == nil && err != nil {
		a.fail(err)
		return
	}

	if a.jsonOutput {
		writeJSON(a.stdoutWriter, op)
	} else {
		printOperationBanner(a, op)
	}

	if op.Status == model.StatusCompleted && op.FilesFailed > 0 {
		a.warn("%d file(s) failed to transfer; see the operation log for details", op.FilesFailed)
	}

	switch op.Status {
	case model.StatusCancelled:
		a.osExit(130)
	case model.StatusCompleted:
		a.osExit(0)
	default:
		a.osExit(1)
	}
}

func printOperationBanner(a *app, op *model.CopyOperation) {
	col := defaultColor

	switch op.Status {
	case model.StatusCompleted:
		col = noteColor
	case model.StatusCancelled:
		col = warningColor
	case model.StatusFailed:
		col = errorColor
	}

	col.Fprintf(a.stdoutWriter, "%s: %d file(s) transferred (%s), %d skipped, %d failed, %d deleted\n", //nolint:errcheck
		op.Status, op.FilesTransferred, units.BytesString(op.BytesTransferred), op.FilesSkipped, op.FilesFailed, op.FilesDeleted)

	if op.Status == model.StatusFailed && op.ErrorMessage != "" {
		errorColor.Fprintf(a.stderrWriter, "error: %s\n", op.ErrorMessage) //nolint:errcheck
	}
}
