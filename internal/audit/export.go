package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{
	"ID",
	"Timestamp (UTC)",
	"User ID",
	"Username",
	"Action",
	"Entity Type",
	"Entity ID",
	"Outcome",
	"Request ID",
	"IP Address",
	"User Agent",
	"Previous Hash",
}

// WriteCSV writes logs to w in the order given.
func WriteCSV(w io.Writer, logs []*Log) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, l := range logs {
		row := []string{
			l.ID,
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.UserID,
			l.Username,
			l.Action,
			l.EntityType,
			l.EntityID,
			l.Outcome,
			l.RequestID,
			l.IPAddress,
			l.UserAgent,
			l.PreviousHash,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
