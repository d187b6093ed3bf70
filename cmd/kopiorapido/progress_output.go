package main

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/internal/units"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

const progressUpdateInterval = 200_000_000 // 200ms, in nanoseconds

// lineProgress renders one overwriting status line to stderr, time-gated the
// way kopia's cliProgress rate-limits its own \r updates.
type lineProgress struct {
	a *app

	mu             sync.Mutex
	lastLineLength int
	nextOutputNano int64
}

func newLineProgress(a *app) *lineProgress {
	return &lineProgress{a: a}
}

// sink returns the progress callback to hand to engine.StartOperation /
// ResumeOperation. In JSON mode progress is suppressed entirely (spec §6).
func (p *lineProgress) sink() func(model.FileTransferProgress) {
	switch {
	case p.a.jsonOutput:
		return nil
	case p.a.plain:
		return p.onProgressPlain
	default:
		return p.onProgress
	}
}

// onProgressPlain prints one line per completed file, with no carriage
// returns or colour, for log-friendly non-terminal output.
func (p *lineProgress) onProgressPlain(fp model.FileTransferProgress) {
	if fp.FileSize > 0 && fp.BytesTransferred < fp.FileSize {
		return
	}

	fmt.Fprintf(p.a.stderrWriter, "%s  %s  %s\n", fp.FileName, units.BytesString(fp.BytesTransferred), units.SpeedString(fp.AverageSpeedBytesPerSecond)) //nolint:errcheck
}

func (p *lineProgress) onProgress(fp model.FileTransferProgress) {
	now := clock.Now().UnixNano()

	next := atomic.LoadInt64(&p.nextOutputNano)
	if now < next {
		return
	}

	if !atomic.CompareAndSwapInt64(&p.nextOutputNano, next, now+progressUpdateInterval) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf(" %s  %s / %s (%s)  %s",
		fp.FileName,
		units.BytesString(fp.BytesTransferred),
		units.BytesString(fp.FileSize),
		units.Percent(fp.PercentComplete()),
		units.SpeedString(fp.CurrentSpeedBytesPerSecond),
	)

	if fp.IsRetrying {
		line += fmt.Sprintf("  retry %d/%d", fp.RetryAttempt, fp.MaxRetryAttempts)
	}

	var pad string
	if len(line) < p.lastLineLength {
		pad = strings.Repeat(" ", p.lastLineLength-len(line))
	}

	p.lastLineLength = len(line)

	fmt.Fprintf(p.a.stderrWriter, "\r%s%s", line, pad) //nolint:errcheck
}

// done clears the progress line, leaving the cursor at the start of a fresh one.
func (p *lineProgress) done() {
	if p.a.jsonOutput || p.lastLineLength == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.a.stderrWriter, "\r%s\r", strings.Repeat(" ", p.lastLineLength)) //nolint:errcheck
	p.lastLineLength = 0
}
