package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/onnwee/aria/internal/requirement"
)

// ParseCSV reads a UTF-8 CSV document with a header row.
func ParseCSV(r io.Reader) ([]requirement.Requirement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return fromRows(rows)
}
