package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

const maxNameLen = 20

// ProjectKey returns the identifier of a project's collection and manifest.
// The key is derived from the absolute project path only, so it is stable
// across runs and distinct for two checkouts of the same repository.
// Format: {sanitized base name, at most 20 chars}_{8-char path hash}.
func ProjectKey(projectPath string) (string, error) {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project path: %w", err)
	}
	return keyForAbsPath(abs), nil
}

func keyForAbsPath(abs string) string {
	name := sanitizeName(filepath.Base(abs))
	return name + "_" + hashString(abs)[:8]
}

// sanitizeName maps "my-app.v2" to "my_app_v2" and truncates to 20 characters.
func sanitizeName(name string) string {
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	if name == "" || name == "_" || name == string(filepath.Separator) {
		name = "root"
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// hashString returns SHA-256 hash of the input string as hex.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
