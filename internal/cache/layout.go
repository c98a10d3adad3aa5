package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout describes where greppy keeps per-project state under the data directory:
//
//	<data>/chroma/              vector store collections
//	<data>/manifests/<key>.json file hash manifests
//	<data>/locks/<key>.lock     cross-process sync locks
//	<data>/journal.db           sync history
type Layout struct {
	DataDir string
}

// NewLayout returns the layout rooted at dataDir.
func NewLayout(dataDir string) Layout {
	return Layout{DataDir: dataDir}
}

func (l Layout) ChromaDir() string   { return filepath.Join(l.DataDir, "chroma") }
func (l Layout) ManifestDir() string { return filepath.Join(l.DataDir, "manifests") }
func (l Layout) LockDir() string     { return filepath.Join(l.DataDir, "locks") }
func (l Layout) JournalPath() string { return filepath.Join(l.DataDir, "journal.db") }

// ManifestPath returns the manifest file for a project key.
func (l Layout) ManifestPath(key string) string {
	return filepath.Join(l.ManifestDir(), key+".json")
}

// LockPath returns the lock file for a project key.
func (l Layout) LockPath(key string) string {
	return filepath.Join(l.LockDir(), key+".lock")
}

// Ensure creates every directory of the layout.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.ChromaDir(), l.ManifestDir(), l.LockDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
