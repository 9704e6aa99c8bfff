// internal/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/pkg/models"
)

// EncodeJSON writes the canonical records as indented JSON.
func EncodeJSON(w io.Writer, records []models.JobRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

// WriteJSON writes the records to path atomically: a temp file in the same
// directory, renamed into place, so a crash mid-write never leaves a
// truncated export.
func WriteJSON(path string, records []models.JobRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvester-*.json")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeJSON(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("encode export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("finalize export: %w", err)
	}

	log.Debug().Str("path", path).Int("records", len(records)).Msg("Wrote JSON export")
	return nil
}
