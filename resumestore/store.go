// Package resumestore implements the Resume Store (C7, spec §4.7): durable,
// crash-safe persistence of CopyOperation records under
// <stateRoot>/KopioRapido/, grounded on kopia's atomic state-file writing
// (natefinch/atomic) and single-writer file locking (gofrs/flock).
package resumestore

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/internal/klog"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

var log = klog.Module("kopiorapido/resumestore")

const dirName = "KopioRapido"

// Store persists CopyOperation records keyed by UUID (spec §4.7, §6).
type Store struct {
	root string // <stateRoot>/KopioRapido

	mu   sync.Mutex
	lock *flock.Flock
}

// New ensures the Operations/ and Logs/ subdirectories exist under
// stateRoot/KopioRapido and returns a Store over them.
func New(stateRoot string) (*Store, error) {
	root := filepath.Join(stateRoot, dirName)

	for _, sub := range []string{"Operations", "Logs"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating %s directory", sub)
		}
	}

	return &Store{
		root: root,
		lock: flock.New(filepath.Join(root, ".kopiorapido.lock")),
	}, nil
}

// OperationsDir is the directory holding one JSON file per operation.
func (s *Store) OperationsDir() string { return filepath.Join(s.root, "Operations") }

// LogsDir is the directory holding one plain-text log file per operation.
func (s *Store) LogsDir() string { return filepath.Join(s.root, "Logs") }

func (s *Store) operationPath(id string) string {
	return filepath.Join(s.OperationsDir(), id+".json")
}

// LogPath returns the plain-text log path for an operation (spec §6).
func (s *Store) LogPath(id string) string {
	return filepath.Join(s.LogsDir(), id+".log")
}

// Save serialises op to its canonical JSON file via a temp-file + fsync +
// rename (spec §4.7/§9), guarded by a process-wide advisory lock so
// concurrent checkpoints from different goroutines (or processes) never
// interleave.
func (s *Store) Save(op *model.CopyOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, "acquiring resume store lock")
	}
	defer s.lock.Unlock() //nolint:errcheck

	data, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshalling operation state")
	}

	// atomic.WriteFile writes to a sibling temp file, fsyncs, then renames
	// over the canonical name — the write is never observed half-complete
	// even if the process is killed mid-write (spec §8 State atomicity).
	if err := atomic.WriteFile(s.operationPath(op.ID), bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "atomically writing operation state")
	}

	return nil
}

// Load reads and decodes the operation record for id.
func (s *Store) Load(id string) (*model.CopyOperation, error) {
	data, err := os.ReadFile(s.operationPath(id))
	if err != nil {
		return nil, errors.Wrapf(err, "reading operation state %s", id)
	}

	var op model.CopyOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, errors.Wrapf(err, "decoding operation state %s", id)
	}

	return &op, nil
}

// Delete removes the operation's state file. Idempotent: deleting an
// already-absent operation is not an error.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.operationPath(id))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting operation state %s", id)
	}

	return nil
}

// ListResumable returns operations whose status is InProgress, Paused,
// Failed, or Cancelled (cancellation does not delete state, so a plain
// cancel remains resumable — only cancelAndDelete does not), with
// CanResume=true, whose source path still exists. Corrupted state files are
// skipped with a warning rather than failing the listing (spec §6).
func (s *Store) ListResumable() ([]*model.CopyOperation, error) {
	entries, err := os.ReadDir(s.OperationsDir())
	if err != nil {
		return nil, errors.Wrap(err, "listing operations directory")
	}

	var result []*model.CopyOperation

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		id := trimJSONSuffix(e.Name())

		op, loadErr := s.Load(id)
		if loadErr != nil {
			log.Warn().Err(loadErr).Str("id", id).Msg("skipping corrupted operation state file")
			continue
		}

		if !isResumableStatus(op.Status) || !op.CanResume {
			continue
		}

		if _, statErr := os.Stat(op.SourcePath); statErr != nil {
			continue
		}

		result = append(result, op)
	}

	return result, nil
}

// CanResume reports whether the operation id exists, is in a resumable
// status, and its source path still exists.
func (s *Store) CanResume(id string) (bool, error) {
	op, err := s.Load(id)
	if err != nil {
		return false, nil //nolint:nilerr
	}

	if !isResumableStatus(op.Status) || !op.CanResume {
		return false, nil
	}

	_, statErr := os.Stat(op.SourcePath)

	return statErr == nil, nil
}

func isResumableStatus(st model.Status) bool {
	switch st {
	case model.StatusInProgress, model.StatusPaused, model.StatusFailed, model.StatusCancelled:
		return true
	default:
		return false
	}
}

func trimJSONSuffix(name string) string {
	const suffix = ".json"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}

	return name
}
