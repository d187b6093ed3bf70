// Package planner implements the Directory Planner (C11, spec §4.11):
// comparing a source and destination tree and building a Plan tailored to
// the requested OperationType.
package planner

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/model"
)

// classification is the per-relative-path comparison result (spec §4.11).
type classification int

const (
	classIdentical classification = iota
	classSourceNewer
	classDestNewer
	classConflicting
	classSourceOnly
	classDestOnly
)

type classifiedEntry struct {
	relative string
	src      model.FileEntry
	dst      model.FileEntry
	class    classification
}

// Planner compares two trees and produces Plans.
type Planner struct{}

// New builds a Planner.
func New() *Planner { return &Planner{} }

// Build compares srcRoot and dstRoot and returns the Plan for opType (spec
// §4.11's table).
func (p *Planner) Build(opType model.OperationType, srcRoot, dstRoot string) (model.Plan, error) {
	entries, err := p.compare(srcRoot, dstRoot)
	if err != nil {
		return model.Plan{}, err
	}

	var plan model.Plan

	for _, e := range entries {
		switch opType {
		case model.OpCopy:
			if e.class != classDestOnly {
				addCopy(&plan, e.src)
			}
		case model.OpMove:
			if e.class != classDestOnly {
				addCopy(&plan, e.src)
				plan.ToDelete = append(plan.ToDelete, e.src.Src)
			}
		case model.OpSync:
			switch e.class {
			case classSourceOnly, classSourceNewer:
				addCopy(&plan, e.src)
			case classIdentical:
				plan.IdenticalSkipped = append(plan.IdenticalSkipped, e.relative)
			}
		case model.OpMirror:
			switch e.class {
			case classSourceOnly, classSourceNewer:
				addCopy(&plan, e.src)
			case classIdentical:
				plan.IdenticalSkipped = append(plan.IdenticalSkipped, e.relative)
			case classDestOnly:
				plan.ToDelete = append(plan.ToDelete, e.dst.Dst)
			}
		case model.OpBiDirectionalSync:
			switch e.class {
			case classSourceOnly, classSourceNewer:
				addCopy(&plan, e.src)
			case classDestOnly, classDestNewer:
				plan.ToCopyReverse = append(plan.ToCopyReverse, reverseEntry(e))
			case classIdentical:
				plan.IdenticalSkipped = append(plan.IdenticalSkipped, e.relative)
			case classConflicting:
				plan.Conflicts = append(plan.Conflicts, e.relative)
			}
		}
	}

	plan.TotalFilesToCopy = len(plan.ToCopy)
	plan.TotalFilesToDelete = len(plan.ToDelete)

	for _, f := range plan.ToCopy {
		plan.TotalBytesToCopy += f.Size
	}

	return plan, nil
}

func addCopy(plan *model.Plan, src model.FileEntry) {
	plan.ToCopy = append(plan.ToCopy, src)
}

func reverseEntry(e classifiedEntry) model.FileEntry {
	return model.FileEntry{
		Src:      e.dst.Dst,
		Dst:      e.src.Src,
		Relative: e.relative,
		Size:     e.dst.Size,
		ModTime:  e.dst.ModTime,
	}
}

// compare walks srcRoot, classifying each file against dstRoot, then walks
// dstRoot to discover files absent from the source (DestOnly).
func (p *Planner) compare(srcRoot, dstRoot string) ([]classifiedEntry, error) {
	seen := map[string]bool{}

	var entries []classifiedEntry

	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(srcRoot, path)
		if relErr != nil {
			return relErr
		}

		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}

		seen[rel] = true

		srcEntry := model.FileEntry{Src: path, Dst: filepath.Join(dstRoot, rel), Relative: rel, Size: info.Size(), ModTime: info.ModTime().UTC()}

		dstInfo, dstErr := os.Stat(srcEntry.Dst)
		if dstErr != nil {
			entries = append(entries, classifiedEntry{relative: rel, src: srcEntry, class: classSourceOnly})
			return nil
		}

		dstEntry := model.FileEntry{Src: srcEntry.Dst, Dst: srcEntry.Dst, Relative: rel, Size: dstInfo.Size(), ModTime: dstInfo.ModTime().UTC()}

		entries = append(entries, classifiedEntry{
			relative: rel,
			src:      srcEntry,
			dst:      dstEntry,
			class:    classify(srcEntry, dstEntry),
		})

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking source tree")
	}

	if _, statErr := os.Stat(dstRoot); statErr == nil {
		err = filepath.WalkDir(dstRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			rel, relErr := filepath.Rel(dstRoot, path)
			if relErr != nil {
				return relErr
			}

			if seen[rel] {
				return nil
			}

			info, statErr := d.Info()
			if statErr != nil {
				return statErr
			}

			dstEntry := model.FileEntry{Src: path, Dst: path, Relative: rel, Size: info.Size(), ModTime: info.ModTime().UTC()}

			entries = append(entries, classifiedEntry{relative: rel, dst: dstEntry, class: classDestOnly})

			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "walking destination tree")
		}
	}

	return entries, nil
}

// classify implements spec §4.11's per-file comparison.
func classify(src, dst model.FileEntry) classification {
	sameSize := src.Size == dst.Size
	sameModTime := src.ModTime.Equal(dst.ModTime)

	switch {
	case sameSize && sameModTime:
		return classIdentical
	case sameModTime && !sameSize:
		return classConflicting
	case src.ModTime.After(dst.ModTime):
		return classSourceNewer
	default:
		return classDestNewer
	}
}
