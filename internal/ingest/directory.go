// Package ingest discovers invoice files in a folder, either once or by
// watching it for new arrivals.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// Candidate is a supported file found directly inside the scanned folder.
type Candidate struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// AllowedExt checks if a file extension is in the supported set.
func AllowedExt(ext string) bool {
	return constants.IsSupportedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// ListDirectory returns the supported regular files directly inside dir
// (no recursion, hidden files skipped), sorted by name.
func ListDirectory(dir string) ([]Candidate, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("directory is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var out []Candidate
	for _, e := range entries {
		name := e.Name()
		if IsHidden(name) || !AllowedExt(filepath.Ext(name)) {
			continue
		}
		path := filepath.Join(dir, name)
		// Stat follows symlinks.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, Candidate{Path: path, Name: name, Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

// HashFile returns the hex sha256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
