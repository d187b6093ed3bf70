//go:build linux

package storageprofile

import (
	"strings"
	"syscall"

	"github.com/KredoKodo/KopioRapido-sub000/model"
)

// networkFilesystemMagics are the statfs f_type magic numbers for the
// network filesystem types spec §4.2 step 1 lists for Apple, generalised to
// the Linux statfs equivalents (nfs, cifs/smb, fuse.sshfs/webdav).
var networkFilesystemMagics = map[int64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smb",
	0x65735546: "fuse", // generic FUSE mount; many webdav/cloud clients use this
}

type linuxProbe struct{}

func newPlatformProbe() platformProbe { return linuxProbe{} }

func (linuxProbe) isRemote(path string) (bool, string, error) {
	if isUNCLike(path) {
		return true, "unc", nil
	}

	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return false, "", err
	}

	if name, ok := networkFilesystemMagics[int64(st.Type)]; ok { //nolint:unconvert
		return true, name, nil
	}

	return false, "", nil
}

func (linuxProbe) kind(path string) (model.StorageKind, error) {
	// The Linux fallback has no reliable, dependency-free way to query
	// SSD-vs-HDD or USB controller class without root or sysfs scraping
	// per-device, which is brittle across distros; we degrade to
	// benchmarking per REDESIGN FLAGS §9 ("unknown platform ... degrades to
	// benchmarking").
	return model.UnknownStorage, nil
}

func (linuxProbe) isUnderExternalVolumesRoot(path string) bool {
	return strings.HasPrefix(path, "/media/") || strings.HasPrefix(path, "/mnt/") || strings.HasPrefix(path, "/run/media/")
}
