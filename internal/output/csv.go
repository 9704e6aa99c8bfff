// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jobmesh/harvester/pkg/models"
)

var csvHeader = []string{
	"organization", "title", "location", "detail_url", "external_id",
	"source", "description_source", "fetched_at", "description",
}

// EncodeCSV writes the canonical records as CSV with a header row.
func EncodeCSV(w io.Writer, records []models.JobRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Organization,
			r.Title,
			r.LocationText,
			r.DetailURL,
			r.ExternalID,
			r.SourceName,
			r.DescriptionSourceName,
			r.FetchedAt.Format(time.RFC3339),
			r.Description,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes the records to path atomically, same as WriteJSON.
func WriteCSV(path string, records []models.JobRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".harvester-*.csv")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeCSV(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("encode export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("finalize export: %w", err)
	}

	log.Debug().Str("path", path).Int("records", len(records)).Msg("Wrote CSV export")
	return nil
}
