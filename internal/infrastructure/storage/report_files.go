package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// FileReportWriter writes reports as indented UTF-8 JSON files.
type FileReportWriter struct{}

var _ port.ReportWriter = FileReportWriter{}

// WriteReport writes report to path, creating parent directories.
func (FileReportWriter) WriteReport(path string, report *entity.Report) error {
	return writeJSON(path, report)
}

// WriteError writes an error report to path.
func (FileReportWriter) WriteError(path string, report *entity.ErrorReport) error {
	return writeJSON(path, report)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
