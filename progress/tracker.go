// Package progress implements the Progress Tracker (C6, spec §4.6): a
// concurrency-safe, per-operation aggregation of bytes/files transferred,
// current/average throughput, percent complete, and ETA, in the
// atomic-counters-plus-mutex style of kopia's cli/cli_progress.go.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
)

// Tracker aggregates progress for one CopyOperation. All exported methods
// are safe for concurrent use by many workers and readers.
type Tracker struct {
	startTime    atomic.Int64 // UnixNano
	lastUpdate   atomic.Int64 // UnixNano

	totalBytesExpected atomic.Int64
	totalFilesExpected atomic.Int64

	totalBytesTransferred atomic.Int64
	totalFilesTransferred atomic.Int64

	mu          sync.Mutex
	currentFile *string
	currentSpeed float64
}

// New creates a Tracker expecting totalBytes across totalFiles.
func New(totalBytes int64, totalFiles int) *Tracker {
	t := &Tracker{}
	t.startTime.Store(clock.Now().UnixNano())
	t.lastUpdate.Store(clock.Now().UnixNano())
	t.totalBytesExpected.Store(totalBytes)
	t.totalFilesExpected.Store(int64(totalFiles))

	return t
}

// SetProgress re-seeds the counters and resets startTime, used on resume so
// speed reflects only the continuation (spec §4.6).
func (t *Tracker) SetProgress(bytes int64, files int) {
	t.totalBytesTransferred.Store(bytes)
	t.totalFilesTransferred.Store(int64(files))
	t.startTime.Store(clock.Now().UnixNano())
	t.lastUpdate.Store(clock.Now().UnixNano())
}

// AddBytes records additional bytes transferred for the file in progress.
func (t *Tracker) AddBytes(n int64) {
	t.totalBytesTransferred.Add(n)
	t.lastUpdate.Store(clock.Now().UnixNano())
}

// FileCompleted increments the completed-file counter and clears the
// current-file pointer.
func (t *Tracker) FileCompleted() {
	t.totalFilesTransferred.Add(1)

	t.mu.Lock()
	t.currentFile = nil
	t.currentSpeed = 0
	t.mu.Unlock()
}

// SetCurrentFile records which file is presently being transferred and its
// instantaneous speed, as reported by the File Operator.
func (t *Tracker) SetCurrentFile(name string, speedBytesPerSecond float64) {
	t.mu.Lock()
	t.currentFile = &name
	t.currentSpeed = speedBytesPerSecond
	t.mu.Unlock()
}

// CurrentFile returns the file presently being transferred, if any.
func (t *Tracker) CurrentFile() (name string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentFile == nil {
		return "", false
	}

	return *t.currentFile, true
}

// CurrentSpeed returns the current file's reported speed in bytes/sec.
func (t *Tracker) CurrentSpeed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.currentSpeed
}

// AverageSpeed returns totalBytesTransferred / elapsed, in bytes/sec.
func (t *Tracker) AverageSpeed() float64 {
	elapsed := clock.Now().Sub(time.Unix(0, t.startTime.Load())).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return float64(t.totalBytesTransferred.Load()) / elapsed
}

// OverallProgress returns 0-100, or 0 when no bytes are expected.
func (t *Tracker) OverallProgress() float64 {
	expected := t.totalBytesExpected.Load()
	if expected <= 0 {
		return 0
	}

	return float64(t.totalBytesTransferred.Load()) * 100 / float64(expected) //nolint:mnd
}

// ETA returns the estimated remaining duration, or nil if it cannot be
// computed (no average speed yet or no known total), per spec §4.6.
func (t *Tracker) ETA() *time.Duration {
	avg := t.AverageSpeed()
	if avg <= 0 {
		return nil
	}

	expected := t.totalBytesExpected.Load()
	if expected <= 0 {
		return nil
	}

	remaining := expected - t.totalBytesTransferred.Load()
	if remaining <= 0 {
		d := time.Duration(0)
		return &d
	}

	seconds := float64(remaining) / avg
	d := time.Duration(seconds * float64(time.Second))

	return &d
}

// BytesTransferred returns the running total.
func (t *Tracker) BytesTransferred() int64 { return t.totalBytesTransferred.Load() }

// FilesTransferred returns the running total.
func (t *Tracker) FilesTransferred() int { return int(t.totalFilesTransferred.Load()) }
