// Package ingest turns uploaded spreadsheets into validated requirements.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/onnwee/aria/internal/requirement"
)

// MaxRequirements is the largest batch accepted per session.
const MaxRequirements = 100

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes = 10 << 20

var (
	// ErrUnsupportedFormat is returned for extensions other than .csv and .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format, use .csv or .xlsx")

	// ErrTooManyRequirements is returned when a file exceeds MaxRequirements rows.
	ErrTooManyRequirements = fmt.Errorf("too many requirements, maximum is %d", MaxRequirements)

	// ErrEmptyFile is returned when a file has no header or no data rows.
	ErrEmptyFile = errors.New("file contains no requirements")
)

// Column names, compared after normalization.
const (
	colID               = "id"
	colTitle            = "title"
	colDescription      = "description"
	colBusinessValue    = "businessvalue"
	colCost             = "cost"
	colRisk             = "risk"
	colUrgency          = "urgency"
	colStakeholderValue = "stakeholdervalue"
	colCategory         = "category"
)

var requiredColumns = []string{colID, colTitle, colDescription}

// MissingColumnsError lists required columns absent from the header row.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// RowError describes a problem with one data row. Row is 1-based and
// excludes the header.
type RowError struct {
	Row    int
	Field  string
	Reason string
}

func (e RowError) String() string {
	return fmt.Sprintf("Requirement %d: %s %s", e.Row, e.Field, e.Reason)
}

// ParseError collects every row problem found in a file.
type ParseError struct {
	Problems []RowError
}

func (e *ParseError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.String())
	}
	return "invalid requirements: " + strings.Join(msgs, "; ")
}

// Messages returns one human-readable line per problem.
func (e *ParseError) Messages() []string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.String())
	}
	return msgs
}

// ParseFile dispatches on the filename extension.
func ParseFile(filename string, data []byte) ([]requirement.Requirement, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	case ".xlsx":
		return ParseXLSX(data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// normalizeHeader lowercases and strips everything but letters and digits,
// so "Business Value", "business_value" and "businessValue" match.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fromRows converts a header row plus data rows into requirements.
func fromRows(rows [][]string) ([]requirement.Requirement, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		name := normalizeHeader(h)
		if _, dup := index[name]; !dup && name != "" {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	var data [][]string
	for _, row := range rows[1:] {
		if !blank(row) {
			data = append(data, row)
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) > MaxRequirements {
		return nil, fmt.Errorf("%w: file has %d", ErrTooManyRequirements, len(data))
	}

	var (
		reqs     = make([]requirement.Requirement, 0, len(data))
		problems []RowError
		seen     = make(map[string]int)
	)
	for i, row := range data {
		n := i + 1
		cell := func(col string) string {
			idx, ok := index[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		r := requirement.Requirement{
			ID:          cell(colID),
			Title:       cell(colTitle),
			Description: cell(colDescription),
		}

		if r.ID == "" {
			problems = append(problems, RowError{n, "ID", "is required"})
		} else if prev, dup := seen[r.ID]; dup {
			problems = append(problems, RowError{n, "ID", fmt.Sprintf("%q duplicates requirement %d", r.ID, prev)})
		} else {
			seen[r.ID] = n
		}
		if r.Title == "" {
			problems = append(problems, RowError{n, "Title", "is required"})
		}
		if r.Description == "" {
			problems = append(problems, RowError{n, "Description", "is required"})
		}

		numeric := []struct {
			col   string
			field string
			dst   **float64
		}{
			{colBusinessValue, "businessValue", &r.BusinessValue},
			{colCost, "cost", &r.Cost},
			{colRisk, "risk", &r.Risk},
			{colUrgency, "urgency", &r.Urgency},
			{colStakeholderValue, "stakeholderValue", &r.StakeholderValue},
		}
		for _, f := range numeric {
			raw := cell(f.col)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				problems = append(problems, RowError{n, f.field, fmt.Sprintf("is not a number (%q)", raw)})
				continue
			}
			if !requirement.ValidAttributeValue(v) {
				problems = append(problems, RowError{n, f.field, "must be between 1 and 10"})
				continue
			}
			*f.dst = &v
		}

		// Unknown categories are dropped rather than rejected.
		if c, ok := requirement.ParseCategory(cell(colCategory)); ok {
			r.Category = &c
		}

		if err := r.Validate(); err != nil {
			var ve *requirement.ValidationError
			if errors.As(err, &ve) && ve.Field != "id" && ve.Field != "title" {
				problems = append(problems, RowError{n, ve.Field, ve.Reason})
			}
		}

		reqs = append(reqs, r)
	}

	if len(problems) > 0 {
		return nil, &ParseError{Problems: problems}
	}
	return reqs, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
