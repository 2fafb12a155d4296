package ingest

import (
	"fmt"

	"github.com/onnwee/aria/internal/requirement"
	"github.com/tealeg/xlsx/v2"
)

// ParseXLSX reads the first worksheet of an Excel workbook.
func ParseXLSX(data []byte) ([]requirement.Requirement, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open workbook: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, ErrEmptyFile
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return fromRows(rows)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
