package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the layout substituted for {timestamp} in file names
const TimestampLayout = "20060102_150405"

// DefaultFileNamePattern names the CSV when no file name is configured
const DefaultFileNamePattern = "hashtag_posts_{timestamp}.csv"

// Manager writes CSV artifacts into an output directory
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// DefaultFileName returns the timestamped default artifact name for now
func DefaultFileName(now time.Time) string {
	return FileNameFromPattern(DefaultFileNamePattern, now)
}

// FileNameFromPattern expands {timestamp} in pattern
func FileNameFromPattern(pattern string, now time.Time) string {
	if pattern == "" {
		pattern = DefaultFileNamePattern
	}
	return strings.ReplaceAll(pattern, "{timestamp}", now.Format(TimestampLayout))
}

// Path resolves name against the output directory. Absolute names are
// returned unchanged.
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.outputDir, name)
}

// EncodeCSV renders header and rows with standard CSV quoting
func EncodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteCSV writes header and rows to name in a single atomic replace and
// returns the final path. A failed write leaves no partial file behind.
func (m *Manager) WriteCSV(name string, header []string, rows [][]string) (string, error) {
	data, err := EncodeCSV(header, rows)
	if err != nil {
		return "", err
	}

	filename := m.Path(name)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, nil
}
