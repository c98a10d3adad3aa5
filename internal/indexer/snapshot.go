package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/manifest"
)

// Snapshot maps each valid file's relative path to the sha256 of its bytes.
type Snapshot map[string]string

// Snapshotter hashes every eligible, valid file in a project.
type Snapshotter struct {
	discovery   *FileDiscovery
	concurrency int
}

// NewSnapshotter creates a snapshotter. concurrency bounds the number of files
// validated and hashed at once.
func NewSnapshotter(discovery *FileDiscovery, concurrency int) *Snapshotter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Snapshotter{discovery: discovery, concurrency: concurrency}
}

// RootDir returns the project root.
func (s *Snapshotter) RootDir() string {
	return s.discovery.RootDir()
}

// Snapshot lists candidates, validates them and hashes the valid ones.
// Files rejected by validation are reported in the returned Skipped; they
// never fail the snapshot. Only discovery failure or ctx cancellation does.
func (s *Snapshotter) Snapshot(ctx context.Context) (Snapshot, *files.Skipped, error) {
	paths, err := s.discovery.DiscoverFiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover files: %w", err)
	}

	root := s.discovery.RootDir()
	classifier := s.discovery.Classifier()
	skipped := files.NewSkipped()

	var mu sync.Mutex
	snap := make(Snapshot, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			abs := filepath.Join(root, filepath.FromSlash(rel))
			if reason := classifier.Validate(abs); reason != files.ReasonNone {
				skipped.Add(reason, rel)
				return nil
			}
			hash, err := manifest.HashFile(abs)
			if err != nil {
				skipped.Add(files.ReasonError, rel)
				return nil
			}
			mu.Lock()
			snap[rel] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return snap, skipped, nil
}
