package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Writer emits report files under a single output directory.
type Writer struct {
	dir string
	log zerolog.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create dir %s: %w", dir, err)
	}
	return &Writer{dir: dir, log: log}, nil
}

// WriteJSON writes v as an indented JSON report.
func (w *Writer) WriteJSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal %s: %w", name, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", name, err)
	}
	w.log.Info().Str("path", path).Msg("json report written")
	return path, nil
}

// WriteCSV writes a header and rows as a CSV report.
func (w *Writer) WriteCSV(name string, header []string, rows [][]string) (string, error) {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("report: write header of %s: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return "", fmt.Errorf("report: write rows of %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("report: flush %s: %w", name, err)
	}
	w.log.Info().Str("path", path).Int("rows", len(rows)).Msg("csv report written")
	return path, nil
}
