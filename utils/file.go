package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ArchiveDir holds match archives when R2 is not configured.
var ArchiveDir = "archives"

// EnsureArchiveDir creates the archive directory if it doesn't exist
func EnsureArchiveDir() error {
	return os.MkdirAll(ArchiveDir, os.ModePerm)
}

// SaveArchiveFile writes data under the archive directory and returns its path.
func SaveArchiveFile(key string, data []byte) (string, error) {
	dest := ArchivePath(key)
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func ReadArchiveFile(key string) ([]byte, error) {
	return os.ReadFile(ArchivePath(key))
}

// ArchivePath returns the full path for key inside the archive directory.
// Keys cannot climb out of it.
func ArchivePath(key string) string {
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	return filepath.Join(ArchiveDir, clean)
}
