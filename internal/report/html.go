package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
	"unicode/utf8"

	"github.com/onnwee/aria/internal/requirement"
)

// Score buckets used for highlighting.
const (
	HighScoreThreshold   = 70.0
	MediumScoreThreshold = 40.0
	TopHighlightCount    = 3
	descriptionPreview   = 100
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(template.FuncMap{
		"bucket":  ScoreBucket,
		"preview": preview,
		"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
		"fixed1":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"top":     func(rank int) bool { return rank <= TopHighlightCount },
	}).ParseFS(templateFS, "templates/report.html.tmpl"),
)

// Document is the input to RenderHTML.
type Document struct {
	SessionID   string
	SessionName string
	GeneratedAt time.Time
	Results     []requirement.PrioritizedRequirement
}

// Stats summarizes a result set.
type Stats struct {
	Total             int
	AverageScore      float64
	AverageConfidence float64
	Categories        int
	High              int
	Medium            int
	Low               int
}

// ComputeStats summarizes results. Average confidence counts absent
// confidences as zero.
func ComputeStats(results []requirement.PrioritizedRequirement) Stats {
	s := Stats{Total: len(results)}
	if s.Total == 0 {
		return s
	}

	categories := make(map[string]struct{})
	var scoreSum, confSum float64
	for _, r := range results {
		scoreSum += r.PriorityScore
		if r.Confidence != nil {
			confSum += *r.Confidence
		}
		name := "Uncategorized"
		if r.Category != nil {
			name = string(*r.Category)
		}
		categories[name] = struct{}{}

		switch ScoreBucket(r.PriorityScore) {
		case "high":
			s.High++
		case "medium":
			s.Medium++
		default:
			s.Low++
		}
	}

	s.AverageScore = scoreSum / float64(s.Total)
	s.AverageConfidence = confSum / float64(s.Total)
	s.Categories = len(categories)
	return s
}

// ScoreBucket classifies a priority score as high, medium or low.
func ScoreBucket(score float64) string {
	switch {
	case score >= HighScoreThreshold:
		return "high"
	case score >= MediumScoreThreshold:
		return "medium"
	default:
		return "low"
	}
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= descriptionPreview {
		return s
	}
	runes := []rune(s)
	return string(runes[:descriptionPreview]) + "..."
}

// RenderHTML writes a standalone HTML report.
func RenderHTML(w io.Writer, doc Document) error {
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}
	data := struct {
		Document
		Stats     Stats
		Timestamp string
	}{
		Document:  doc,
		Stats:     ComputeStats(doc.Results),
		Timestamp: doc.GeneratedAt.Format("January 02, 2006 at 03:04 PM"),
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return nil
}
