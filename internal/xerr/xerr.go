// Package xerr classifies errors into the kinds named by spec §7, independent
// of the concrete OS error type, so the retry executor and orchestrator can
// reason about "transient vs fatal" without depending on platform packages.
package xerr

import (
	"context"
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"syscall"
)

// Kind is one of the error taxonomy buckets from spec §7.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindCancelled
	KindTransientIO
	KindFatalIO
	KindOperationFatal
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindTransientIO:
		return "transient-io"
	case KindFatalIO:
		return "fatal-io"
	case KindOperationFatal:
		return "operation-fatal"
	default:
		return "unknown"
	}
}

// platform sharing/lock and network error codes referenced by spec §4.1.
// These mirror the Windows Win32 error numbers the source classifier keys
// off of; on POSIX platforms the same conditions surface as distinct errno
// values or as plain message text, so message sniffing below covers both.
const (
	errSharingViolation = 32
	errLockViolation     = 33
	errNetworkBusy       = 54
	errNetworkUnavail    = 59
	errNetworkAccessDeny = 65
	errBadNetName        = 67
)

var transientSubstrings = []string{
	"being used by another process",
	"network",
	"timeout",
	"timed out",
	"connection",
	"resource temporarily unavailable",
	"device or resource busy",
}

// Classify assigns a Kind to err following spec §4.1/§7. Cancellation always
// wins over any other classification.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	var errno syscall.Errno
	if runtime.GOOS == "windows" && errors.As(err, &errno) {
		switch errno {
		case errSharingViolation, errLockViolation, errNetworkBusy, errNetworkUnavail, errNetworkAccessDeny, errBadNetName:
			return KindTransientIO
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return KindTransientIO
		}
	}

	if errors.Is(err, fs.ErrPermission) {
		// Access-denied is treated as possibly-temporary (e.g. a file still
		// held open by an indexer), per spec §4.1 — retried, not fatal.
		return KindTransientIO
	}

	if errors.Is(err, fs.ErrNotExist) {
		return KindFatalIO
	}

	return KindUnknown
}

// IsTransient reports whether err should be retried under C1's policy.
func IsTransient(err error) bool {
	return Classify(err) == KindTransientIO
}
