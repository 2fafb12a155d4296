// Package report renders prioritization results as CSV and HTML documents.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/onnwee/aria/internal/requirement"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{
	"Rank", "ID", "Title", "Description", "Category",
	"Priority Score", "Confidence", "Business Value", "Cost",
	"Risk", "Urgency", "Stakeholder Value", "Reasoning",
}

// WriteCSV writes results in rank order as CSV.
func WriteCSV(w io.Writer, results []requirement.PrioritizedRequirement) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Rank),
			r.ID,
			r.Title,
			r.Description,
			categoryString(r.Category),
			fmt.Sprintf("%.2f", r.PriorityScore),
			optionalFixed(r.Confidence),
			optionalValue(r.BusinessValue),
			optionalValue(r.Cost),
			optionalValue(r.Risk),
			optionalValue(r.Urgency),
			optionalValue(r.StakeholderValue),
			r.Reasoning,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func categoryString(c *requirement.Category) string {
	if c == nil {
		return ""
	}
	return string(*c)
}

func optionalFixed(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func optionalValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
