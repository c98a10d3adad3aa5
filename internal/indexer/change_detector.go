package indexer

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/manifest"
)

// ChangeSet contains the result of change detection. Added, Modified and
// Deleted are pairwise disjoint and sorted.
type ChangeSet struct {
	Added     []string // in the snapshot but not the manifest
	Modified  []string // in both, hash differs
	Deleted   []string // in the manifest but not the snapshot
	Unchanged []string
}

// Empty reports whether nothing needs to be synced.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total returns the number of files that need work.
func (c *ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// Diff compares the manifest of the last successful sync against a fresh
// snapshot. It compares hashes only; no file is read.
func Diff(old manifest.Manifest, snap Snapshot) *ChangeSet {
	oldPaths := mapset.NewThreadUnsafeSetWithSize[string](len(old))
	for p := range old {
		oldPaths.Add(p)
	}
	newPaths := mapset.NewThreadUnsafeSetWithSize[string](len(snap))
	for p := range snap {
		newPaths.Add(p)
	}

	changes := &ChangeSet{
		Added:   sorted(newPaths.Difference(oldPaths)),
		Deleted: sorted(oldPaths.Difference(newPaths)),
	}
	for _, p := range sorted(oldPaths.Intersect(newPaths)) {
		if old[p] != snap[p] {
			changes.Modified = append(changes.Modified, p)
		} else {
			changes.Unchanged = append(changes.Unchanged, p)
		}
	}
	return changes
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}

// ChangeDetector compares the working tree to the stored manifest.
type ChangeDetector struct {
	key         string
	snapshotter *Snapshotter
	manifests   *manifest.Store
}

// NewChangeDetector creates a change detector for the project identified by key.
func NewChangeDetector(key string, snapshotter *Snapshotter, manifests *manifest.Store) *ChangeDetector {
	return &ChangeDetector{key: key, snapshotter: snapshotter, manifests: manifests}
}

// Detection bundles a change set with the inputs it was computed from.
type Detection struct {
	Changes  *ChangeSet
	Manifest manifest.Manifest
	Snapshot Snapshot
	Skipped  *files.Skipped
}

// DetectChanges loads the manifest, snapshots the tree and diffs the two.
func (cd *ChangeDetector) DetectChanges(ctx context.Context) (*Detection, error) {
	old := cd.manifests.Load(cd.key)
	snap, skipped, err := cd.snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Detection{
		Changes:  Diff(old, snap),
		Manifest: old,
		Snapshot: snap,
		Skipped:  skipped,
	}, nil
}
