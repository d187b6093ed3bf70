// Package engine implements the Operation Orchestrator (C12, spec §4.12)
// and the Engine API consumed by a CLI or other frontend (spec §6). It is
// the composition root: every other component is constructed once here and
// wired together the way kopia's cli/app.go builds its service graph at
// startup, rather than through a runtime DI container.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/KredoKodo/KopioRapido-sub000/fileop"
	"github.com/KredoKodo/KopioRapido-sub000/fileset"
	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/internal/engineconfig"
	"github.com/KredoKodo/KopioRapido-sub000/internal/klog"
	"github.com/KredoKodo/KopioRapido-sub000/internal/oplog"
	"github.com/KredoKodo/KopioRapido-sub000/internal/xerr"
	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/perfmon"
	"github.com/KredoKodo/KopioRapido-sub000/planner"
	"github.com/KredoKodo/KopioRapido-sub000/progress"
	"github.com/KredoKodo/KopioRapido-sub000/resumestore"
	"github.com/KredoKodo/KopioRapido-sub000/storageprofile"
	"github.com/KredoKodo/KopioRapido-sub000/strategy"
)

var log = klog.Module("kopiorapido/engine")

const (
	maxConcurrencyCap = 32
	sampleInterval    = 2 * time.Second
	adaptInterval     = 5 * time.Second
)

// Engine wires the Storage Profiler, File-Set Analyzer, Transfer
// Intelligence, Directory Planner, Performance Monitor, Resume Store, and
// File Operator into the operations described by spec §6.
type Engine struct {
	cfg      engineconfig.Config
	store    *resumestore.Store
	profiler *storageprofile.Profiler
	analyzer *fileset.Analyzer
	planner  *planner.Planner
	monitor  *perfmon.Monitor

	mu      sync.Mutex
	running map[string]*runState
}

// runState is the in-memory handle for an operation currently executing.
type runState struct {
	mu                       sync.Mutex
	op                       *model.CopyOperation
	tracker                  *progress.Tracker
	cancel                   context.CancelFunc
	completedSinceCheckpoint int
	pool                     *workerPool
}

// New constructs an Engine rooted at cfg.StateRoot.
func New(cfg engineconfig.Config) (*Engine, error) {
	store, err := resumestore.New(cfg.StateRoot)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		profiler: storageprofile.New(),
		analyzer: fileset.New(),
		planner:  planner.New(),
		monitor:  perfmon.New(),
		running:  map[string]*runState{},
	}, nil
}

// AnalyseAndSelectStrategy implements spec §6.
func (e *Engine) AnalyseAndSelectStrategy(ctx context.Context, src, dst string) (model.StorageProfile, model.StorageProfile, model.FileSetProfile, model.TransferStrategy, error) {
	srcProfile, err := e.profiler.Profile(ctx, src)
	if err != nil {
		return model.StorageProfile{}, model.StorageProfile{}, model.FileSetProfile{}, model.TransferStrategy{}, errors.Wrap(err, "profiling source")
	}

	dstProfile, err := e.profiler.Profile(ctx, dst)
	if err != nil {
		return model.StorageProfile{}, model.StorageProfile{}, model.FileSetProfile{}, model.TransferStrategy{}, errors.Wrap(err, "profiling destination")
	}

	filesProfile, err := e.analyzer.Analyse(ctx, src)
	if err != nil {
		return model.StorageProfile{}, model.StorageProfile{}, model.FileSetProfile{}, model.TransferStrategy{}, errors.Wrap(err, "analysing file set")
	}

	strat := strategy.Select(srcProfile, dstProfile, filesProfile)

	return srcProfile, dstProfile, filesProfile, strat, nil
}

// AnalyseSync implements spec §6's dry-run summary.
func (e *Engine) AnalyseSync(_ context.Context, src, dst string, opType model.OperationType) (model.SyncOperationSummary, error) {
	plan, err := e.planner.Build(opType, src, dst)
	if err != nil {
		return model.SyncOperationSummary{}, err
	}

	var totalBytesToDelete int64

	for _, p := range plan.ToDelete {
		if info, statErr := os.Stat(p); statErr == nil {
			totalBytesToDelete += info.Size()
		}
	}

	return model.SyncOperationSummary{
		FilesToCopy:        plan.TotalFilesToCopy + len(plan.ToCopyReverse),
		FilesToDelete:      plan.TotalFilesToDelete,
		Identical:          len(plan.IdenticalSkipped),
		TotalBytesToCopy:   plan.TotalBytesToCopy,
		TotalBytesToDelete: totalBytesToDelete,
		OperationType:      opType,
	}, nil
}

// StartOperation implements spec §6. It builds a plan, persists a Pending
// record, then runs the operation to completion or cancellation. It is
// synchronous: a caller wanting concurrency runs it in its own goroutine and
// interrupts it with CancelOperation.
func (e *Engine) StartOperation(ctx context.Context, src, dst string, opType model.OperationType, progressSink func(model.FileTransferProgress), strat *model.TransferStrategy) (*model.CopyOperation, error) {
	if _, statErr := os.Stat(src); statErr != nil {
		return nil, errors.Wrap(statErr, "source path does not exist")
	}

	plan, err := e.planner.Build(opType, src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "building plan")
	}

	chosen := model.TransferStrategy{}

	switch {
	case strat != nil:
		chosen = *strat
	default:
		_, _, _, autoStrat, aErr := e.AnalyseAndSelectStrategy(ctx, src, dst)
		if aErr != nil {
			return nil, aErr
		}

		chosen = autoStrat
	}

	op := &model.CopyOperation{
		ID:              uuid.NewString(),
		SourcePath:      src,
		DestinationPath: dst,
		OperationType:   opType,
		Status:          model.StatusPending,
		StartTime:       clock.Now(),
		TotalBytes:      plan.TotalBytesToCopy,
		TotalFiles:      plan.TotalFilesToCopy,
		CanResume:       true,
		Strategy:        &chosen,
	}

	if err := e.store.Save(op); err != nil {
		return op, errors.Wrap(err, "persisting pending operation")
	}

	return e.run(ctx, op, plan, chosen, progressSink)
}

// ResumeOperation implements spec §6: reloads the operation, re-derives the
// plan against the current trees, and continues past whatever the resume
// skip-logic recognises as already complete.
func (e *Engine) ResumeOperation(ctx context.Context, id string, progressSink func(model.FileTransferProgress)) (*model.CopyOperation, error) {
	op, err := e.store.Load(id)
	if err != nil {
		return nil, err
	}

	if !op.CanResume {
		return nil, errors.Errorf("operation %s is not resumable", id)
	}

	if _, statErr := os.Stat(op.SourcePath); statErr != nil {
		return nil, errors.Wrapf(statErr, "source path for operation %s no longer exists", id)
	}

	plan, err := e.planner.Build(op.OperationType, op.SourcePath, op.DestinationPath)
	if err != nil {
		return nil, err
	}

	strat := model.TransferStrategy{}
	if op.Strategy != nil {
		strat = *op.Strategy
	}

	op.Status = model.StatusInProgress
	op.EndTime = nil

	return e.run(ctx, op, plan, strat, progressSink)
}

// CancelOperation signals a cooperative stop to an in-flight operation;
// cancellation does not delete its durable state (spec §5).
func (e *Engine) CancelOperation(id string) error {
	e.mu.Lock()
	rs, ok := e.running[id]
	e.mu.Unlock()

	if !ok {
		return errors.Errorf("operation %s is not running", id)
	}

	rs.cancel()

	return nil
}

// CancelAndDelete cancels (if running) and removes the operation's durable
// state, making it unresumable.
func (e *Engine) CancelAndDelete(id string) error {
	e.mu.Lock()
	rs, ok := e.running[id]
	e.mu.Unlock()

	if ok {
		rs.cancel()
	}

	return e.store.Delete(id)
}

// ListResumable implements spec §6.
func (e *Engine) ListResumable() ([]*model.CopyOperation, error) {
	return e.store.ListResumable()
}

// CanResume implements spec §6.
func (e *Engine) CanResume(id string) (bool, error) {
	return e.store.CanResume(id)
}

// GetOperation returns the current in-memory state of a running operation,
// falling back to its last persisted checkpoint.
func (e *Engine) GetOperation(id string) (*model.CopyOperation, error) {
	e.mu.Lock()
	rs, ok := e.running[id]
	e.mu.Unlock()

	if ok {
		rs.mu.Lock()
		defer rs.mu.Unlock()

		snapshot := *rs.op

		return &snapshot, nil
	}

	return e.store.Load(id)
}

func (e *Engine) persist(rs *runState) error {
	rs.mu.Lock()
	snapshot := *rs.op
	rs.mu.Unlock()

	return e.store.Save(&snapshot)
}

// run drives one operation to a terminal state: it executes the forward
// copy pool, then the operation-type-specific post-phase, persisting
// checkpoints along the way (spec §4.12).
func (e *Engine) run(ctx context.Context, op *model.CopyOperation, plan model.Plan, strat model.TransferStrategy, progressSink func(model.FileTransferProgress)) (*model.CopyOperation, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rs := &runState{op: op, tracker: progress.New(op.TotalBytes, op.TotalFiles), cancel: cancel}
	rs.tracker.SetProgress(op.BytesTransferred, op.FilesTransferred)

	e.mu.Lock()
	e.running[op.ID] = rs
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.running, op.ID)
		e.mu.Unlock()

		e.monitor.Forget(op.ID)
	}()

	logFile, err := os.OpenFile(e.store.LogPath(op.ID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return op, errors.Wrap(err, "opening operation log")
	}
	defer logFile.Close() //nolint:errcheck

	opLog := oplog.New(logFile)
	opLog.Infof("", "operation %s starting: %s -> %s (%s)", op.ID, op.SourcePath, op.DestinationPath, op.OperationType)

	op.Status = model.StatusInProgress

	if err := e.persist(rs); err != nil {
		opLog.Warnf("", "checkpoint save failed: %v", err)
	}

	pending := e.resolveResumable(rs.op, plan.ToCopy)

	operator := fileop.New(model.DefaultRetryConfiguration())

	stopSampling := e.startSampling(runCtx, rs)
	defer stopSampling()

	onFileProgress := func(p model.FileTransferProgress) {
		rs.tracker.SetCurrentFile(p.FileName, p.CurrentSpeedBytesPerSecond)

		if progressSink != nil {
			progressSink(p)
		}
	}

	runErr := e.runEntries(runCtx, rs, operator, pending, strat, opLog, onFileProgress, true)

	switch {
	case runErr != nil && xerr.Classify(runErr) == xerr.KindCancelled:
		op.Status = model.StatusCancelled
	case runErr != nil:
		op.Status = model.StatusFailed
		op.ErrorMessage = runErr.Error()
		opLog.Errorf("", runErr, "operation failed")
	default:
		e.postPhase(runCtx, rs, plan, strat, operator, opLog)
		op.Status = model.StatusCompleted
	}

	now := clock.Now()
	op.EndTime = &now
	op.CurrentFile = nil

	if saveErr := e.persist(rs); saveErr != nil {
		opLog.Warnf("", "final checkpoint save failed: %v", saveErr)
	}

	opLog.Infof("", "operation %s ended: status=%s filesTransferred=%d filesFailed=%d", op.ID, op.Status, op.FilesTransferred, op.FilesFailed)

	if op.Status == model.StatusFailed {
		return op, errors.New(op.ErrorMessage)
	}

	return op, nil
}

// resolveResumable applies spec §4.12's resume skip-logic: a file is
// skipped iff it has a completion record, the destination still exists, and
// both source size/mtime and destination size match the record. Mismatches
// drop the stale record so the file is re-copied.
func (e *Engine) resolveResumable(op *model.CopyOperation, toCopy []model.FileEntry) []model.FileEntry {
	if len(op.CompletedFiles) == 0 {
		return toCopy
	}

	byRelative := map[string]model.CompletedFileInfo{}
	for _, c := range op.CompletedFiles {
		byRelative[c.RelativePath] = c
	}

	inPlan := map[string]bool{}

	var pending []model.FileEntry

	var kept []model.CompletedFileInfo

	for _, entry := range toCopy {
		inPlan[entry.Relative] = true

		rec, ok := byRelative[entry.Relative]
		if !ok {
			pending = append(pending, entry)
			continue
		}

		dstInfo, statErr := os.Stat(entry.Dst)
		if statErr == nil && rec.FileSize == entry.Size && rec.LastModified.Equal(entry.ModTime) && dstInfo.Size() == entry.Size {
			kept = append(kept, rec)
			continue
		}

		pending = append(pending, entry)
	}

	for _, c := range op.CompletedFiles {
		if !inPlan[c.RelativePath] {
			kept = append(kept, c)
		}
	}

	op.CompletedFiles = kept

	return pending
}

// runEntries dispatches entries through a bounded worker pool sized by
// strat.MaxConcurrentFiles (sequential when that is 1 or unset) driven by
// fileop.Operator.
func (e *Engine) runEntries(ctx context.Context, rs *runState, operator *fileop.Operator, entries []model.FileEntry, strat model.TransferStrategy, opLog *oplog.Log, onProgress func(model.FileTransferProgress), recordCompletion bool) error {
	if len(entries) == 0 {
		return nil
	}

	capacity := strat.MaxConcurrentFiles
	if capacity < 1 {
		capacity = 1
	}

	pool := newWorkerPool(capacity)

	rs.mu.Lock()
	rs.pool = pool
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.pool = nil
		rs.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)

	var dispatchErr error

	for _, entry := range entries {
		entry := entry

		release, err := pool.acquire(gctx)
		if err != nil {
			dispatchErr = err
			break
		}

		g.Go(func() error {
			defer release()

			return e.transferOne(gctx, rs, operator, entry, strat, opLog, onProgress, recordCompletion)
		})
	}

	waitErr := g.Wait()
	if dispatchErr != nil {
		return dispatchErr
	}

	return waitErr
}

// transferOne runs a single file through the operator and folds its result
// into the operation's counters. Non-cancellation errors mark only the file
// as failed; the operation continues (spec §7).
func (e *Engine) transferOne(ctx context.Context, rs *runState, operator *fileop.Operator, entry model.FileEntry, strat model.TransferStrategy, opLog *oplog.Log, onProgress func(model.FileTransferProgress), recordCompletion bool) error {
	rs.mu.Lock()
	rel := entry.Relative
	rs.op.CurrentFile = &rel
	rs.mu.Unlock()

	result, err := operator.Transfer(ctx, rs.op.ID, entry, strat, onProgress)
	if err != nil {
		if xerr.Classify(err) == xerr.KindCancelled {
			return err
		}

		rs.mu.Lock()
		rs.op.FilesFailed++
		rs.op.ErrorMessage = err.Error()
		rs.mu.Unlock()

		opLog.Errorf(entry.Relative, err, "file transfer failed")

		return nil
	}

	rs.mu.Lock()
	rs.op.BytesTransferred += result.BytesTransferred
	rs.op.FilesTransferred++

	if result.Compressed {
		rs.op.FilesCompressed++
		rs.op.TotalCompressedBytes += result.CompressedBytes
		rs.op.TotalUncompressedBytes += result.UncompressedBytes
	}

	if recordCompletion {
		rs.op.CompletedFiles = append(rs.op.CompletedFiles, model.CompletedFileInfo{
			RelativePath: entry.Relative,
			FileSize:     entry.Size,
			LastModified: entry.ModTime,
			CompletedAt:  clock.Now(),
		})
	}

	rs.completedSinceCheckpoint++
	shouldCheckpoint := rs.completedSinceCheckpoint >= e.cfg.CheckpointEveryNFiles

	if shouldCheckpoint {
		rs.completedSinceCheckpoint = 0
	}
	rs.mu.Unlock()

	rs.tracker.AddBytes(result.BytesTransferred)
	rs.tracker.FileCompleted()

	if shouldCheckpoint {
		if saveErr := e.persist(rs); saveErr != nil {
			opLog.Warnf("", "checkpoint save failed: %v", saveErr)
		}
	}

	return nil
}

// postPhase implements spec §4.12's per-OperationType completion step.
func (e *Engine) postPhase(ctx context.Context, rs *runState, plan model.Plan, strat model.TransferStrategy, operator *fileop.Operator, opLog *oplog.Log) {
	rs.mu.Lock()
	failed := rs.op.FilesFailed
	opType := rs.op.OperationType
	srcRoot := rs.op.SourcePath
	rs.mu.Unlock()

	switch opType {
	case model.OpMove:
		if failed > 0 {
			opLog.Warnf("", "skipping source deletion: %d file(s) failed to transfer", failed)
			return
		}

		for _, entry := range plan.ToCopy {
			if err := os.Remove(entry.Src); err != nil && !os.IsNotExist(err) {
				opLog.Errorf(entry.Relative, err, "failed to delete source after move")
			}
		}

		removeEmptyDirs(srcRoot)

	case model.OpMirror:
		for _, path := range plan.ToDelete {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				opLog.Errorf(path, err, "failed to delete destination-only file")
				continue
			}

			rs.mu.Lock()
			rs.op.FilesDeleted++
			rs.mu.Unlock()
		}

	case model.OpBiDirectionalSync:
		if err := e.runEntries(ctx, rs, operator, plan.ToCopyReverse, strat, opLog, nil, false); err != nil {
			opLog.Errorf("", err, "reverse copy pool failed")
		}

		for _, rel := range plan.Conflicts {
			opLog.Warnf(rel, "conflict: same modification time, different size on both sides")
		}
	}
}

// removeEmptyDirs deletes now-empty directories under root, deepest first,
// leaving root itself (a Move empties a tree, it does not delete the
// tree's own root directory entry).
func removeEmptyDirs(root string) {
	var dirs []string

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return nil //nolint:nilerr
		}

		dirs = append(dirs, path)

		return nil
	})

	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i]) // no-op if not empty
	}
}

// startSampling runs the ~2 s performance-sample / ~5 s adaptation-check
// loop against the Performance Monitor (spec §4.8/§4.12), returning a stop
// function. When the monitor recommends a higher concurrency it is applied
// to the currently-running workerPool immediately (capacity can only grow
// safely mid-flight, per REDESIGN FLAGS §9). A recommended decrease is not
// applied: the pool keeps its current capacity, and that unchanged capacity
// is what gets recorded as the adaptation.
func (e *Engine) startSampling(ctx context.Context, rs *runState) func() {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()

		var sinceAdapt time.Duration

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				speedMBps := rs.tracker.CurrentSpeed() / (1 << 20) //nolint:mnd

				rs.mu.Lock()
				concurrency := 1
				if rs.op.Strategy != nil {
					concurrency = rs.op.Strategy.MaxConcurrentFiles
				}
				rs.mu.Unlock()

				e.monitor.RecordSample(rs.op.ID, speedMBps, concurrency)

				sinceAdapt += sampleInterval
				if sinceAdapt < adaptInterval {
					continue
				}

				sinceAdapt = 0

				if adjust, newConcurrency, reason := e.monitor.ShouldAdjust(rs.op.ID); adjust {
					log.Debug().Str("op", rs.op.ID).Int("concurrency", newConcurrency).Str("reason", reason).Msg("performance monitor recommends adaptation")

					applied := newConcurrency

					rs.mu.Lock()
					pool := rs.pool
					rs.mu.Unlock()

					if pool != nil {
						if cur := pool.capacity(); newConcurrency > cur {
							applied = pool.grow(newConcurrency - cur)
						} else {
							applied = cur
						}
					}

					e.monitor.RecordAdaptation(rs.op.ID, applied)
				}
			}
		}
	}()

	return func() { close(done) }
}
