//go:build linux

package fileop

import (
	"os"
	"syscall"
)

// adviseSequential hints the kernel readahead for a large sequential scan
// (spec §4.10 step 4's "sequential-scan hints"). Best-effort: failures are
// ignored, matching the teacher's posture toward advisory syscalls.
func adviseSequential(f *os.File) {
	_ = syscall.Fadvise(int(f.Fd()), 0, 0, syscall.FADV_SEQUENTIAL)
}
