package fsutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateWithin checks that path stays inside dir once both are cleaned.
// The check is lexical so it works the same on every FileSystem; callers on
// the OS filesystem that must defend against symlinks resolve them first.
func ValidateWithin(path, dir string) error {
	if dir == "" {
		return fmt.Errorf("no directory to validate %s against", path)
	}
	cleanPath, cleanDir := filepath.Clean(path), filepath.Clean(dir)
	if filepath.IsAbs(cleanPath) != filepath.IsAbs(cleanDir) {
		abs, err := filepath.Abs(cleanPath)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path: %w", err)
		}
		absDir, err := filepath.Abs(cleanDir)
		if err != nil {
			return fmt.Errorf("failed to resolve directory path: %w", err)
		}
		cleanPath, cleanDir = abs, absDir
	}

	rel, err := filepath.Rel(cleanDir, cleanPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// SanitizeFilename makes a safe file name from an arbitrary label. Runs of
// characters other than ASCII letters, digits, dot, underscore and dash
// collapse to one underscore; the result is at most 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
		if b.Len() >= maxLen {
			break
		}
	}
	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "unknown"
	}
	return out
}
