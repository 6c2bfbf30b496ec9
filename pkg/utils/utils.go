package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// GetPathInfo resolves a possibly relative path to its absolute form and
// the directory containing it.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// WriteFile writes an output artifact, creating parent directories as
// needed.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Fingerprint returns a short stable hash of a build artifact, used to
// report whether a rebuild changed the output.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
