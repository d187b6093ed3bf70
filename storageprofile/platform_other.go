//go:build !linux && !darwin && !windows

package storageprofile

import "github.com/KredoKodo/KopioRapido-sub000/model"

type genericProbe struct{}

func newPlatformProbe() platformProbe { return genericProbe{} }

func (genericProbe) isRemote(path string) (bool, string, error) {
	return isUNCLike(path), "", nil
}

func (genericProbe) kind(path string) (model.StorageKind, error) {
	return model.UnknownStorage, nil
}

func (genericProbe) isUnderExternalVolumesRoot(path string) bool {
	return false
}
