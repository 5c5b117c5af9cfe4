package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SweepIntake moves timetable PDFs matching the configured glob from the
// intake directory into rawDir. A PDF already present in rawDir wins; the
// intake copy is removed so re-drops stay idempotent. Returns the moved paths.
func SweepIntake(intakeDir, rawDir, glob string, logger *slog.Logger) ([]string, error) {
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create raw directory %s: %w", rawDir, err)
	}

	matches, err := filepath.Glob(filepath.Join(intakeDir, glob))
	if err != nil {
		return nil, fmt.Errorf("invalid intake glob %q: %w", glob, err)
	}

	var moved []string
	for _, src := range matches {
		dst := filepath.Join(rawDir, filepath.Base(src))
		if _, err := os.Stat(dst); err == nil {
			if err := os.Remove(src); err != nil {
				return nil, fmt.Errorf("failed to remove duplicate intake file %s: %w", src, err)
			}
			logger.Info("removed duplicate intake file", slog.String("file", src))
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return nil, fmt.Errorf("failed to move %s into %s: %w", src, rawDir, err)
		}
		logger.Info("moved intake file", slog.String("file", dst))
		moved = append(moved, dst)
	}
	return moved, nil
}

// ListRawPDFs returns the PDF files ready for extraction, sorted by name.
func ListRawPDFs(rawDir string) ([]string, error) {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw directory %s: %w", rawDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(rawDir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
