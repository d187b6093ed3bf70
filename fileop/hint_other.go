//go:build !linux

package fileop

import "os"

// adviseSequential is a no-op outside Linux: neither Darwin nor Windows
// expose a portable posix_fadvise equivalent through the standard library,
// and no pack dependency wraps one (REDESIGN FLAGS §9's "degrade gracefully"
// posture).
func adviseSequential(*os.File) {}
