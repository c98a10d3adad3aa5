// Package manifest persists the file hash manifest of each indexed project.
//
// A manifest maps project-relative paths to the sha256 of the file bytes
// that were indexed. It is the ground truth for "what was indexed last":
// the sync orchestrator saves it only after the vector store accepted
// every write of a pass.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
)

// Manifest maps relative slash-separated paths to whole-file hashes.
type Manifest map[string]string

// Paths returns the manifest keys in sorted order.
func (m Manifest) Paths() []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store reads and writes manifests in a directory, one file per project key.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir. The directory is created on first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Path returns the manifest file for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load returns the manifest for key. A missing or unreadable manifest
// yields an empty one; Load never fails.
func (s *Store) Load(key string) Manifest {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("manifest unreadable, treating as empty", "key", key, "error", err)
		}
		return Manifest{}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn("manifest corrupt, treating as empty", "key", key, "error", err)
		return Manifest{}
	}
	if m == nil {
		m = Manifest{}
	}
	return m
}

// Exists reports whether a non-empty manifest is stored for key.
func (s *Store) Exists(key string) bool {
	return len(s.Load(key)) > 0
}

// Save writes the manifest atomically: readers see either the previous
// manifest or the new one, never a partial file.
func (s *Store) Save(key string, m Manifest) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	if m == nil {
		m = Manifest{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close manifest: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Delete removes the manifest for key. Deleting a missing manifest is not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	return nil
}

// HashBytes returns the hex sha256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex sha256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
