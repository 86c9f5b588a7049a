package importer

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/finsmart/finsmart-server/internal/models"
)

// ParseCSV reads CSV content into raw rows (header -> value). The first
// record is the header; header names are matched case-insensitively and an
// optional caller-supplied rename map is applied before recognition.
// Unrecognized columns are kept in the raw map and ignored downstream.
// A structurally malformed CSV (unreadable, ragged records) is an error for
// the whole file; value-level problems are left for the normalizer.
func ParseCSV(content string, headerMapping map[string]string) ([]models.RowData, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error parsing CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("error parsing CSV: missing header row")
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		name = strings.TrimSpace(name)
		// Apply the rename map against the original header first, then
		// case-fold so recognized columns match case-insensitively.
		if mapped, ok := headerMapping[name]; ok {
			name = mapped
		}
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	rows := make([]models.RowData, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(models.RowData, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
