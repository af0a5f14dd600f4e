package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modelscout/internal/domain"
)

// DefaultFilename returns the timestamped report path for a family, e.g.
// "modelscout_ollama_20250101_150405.json".
func DefaultFilename(family string, now time.Time) string {
	return fmt.Sprintf("modelscout_%s_%s.json", family, now.Format("20060102_150405"))
}

// WriteJSON writes the report as indented JSON, creating parent directories
// as needed.
func WriteJSON(path string, r *domain.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
