package ranking

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/onnwee/aria/internal/requirement"
)

// Scoring constants.
const (
	MissingAttributeValue = 5.0
	HighThreshold         = 8.0
	LowThreshold          = 3.0
	attributeCount        = 5
)

// attribute describes one scored requirement attribute.
type attribute struct {
	name     string
	value    func(*requirement.Requirement) *float64
	weight   func(WeightVector) float64
	inverted bool
	// Clauses for values at or above HighThreshold and at or below LowThreshold.
	highLabel string
	lowLabel  string
}

// attributeTable drives scoring, confidence and reasoning. Order matters for
// the order of reasoning clauses.
var attributeTable = [attributeCount]attribute{
	{
		name:      "businessValue",
		value:     func(r *requirement.Requirement) *float64 { return r.BusinessValue },
		weight:    WeightVector.BusinessValue,
		highLabel: "High business value",
		lowLabel:  "Low business value",
	},
	{
		name:      "cost",
		value:     func(r *requirement.Requirement) *float64 { return r.Cost },
		weight:    WeightVector.Cost,
		inverted:  true,
		highLabel: "High implementation cost",
		lowLabel:  "Low implementation cost",
	},
	{
		name:      "risk",
		value:     func(r *requirement.Requirement) *float64 { return r.Risk },
		weight:    WeightVector.Risk,
		inverted:  true,
		highLabel: "High implementation risk",
		lowLabel:  "Low implementation risk",
	},
	{
		name:      "urgency",
		value:     func(r *requirement.Requirement) *float64 { return r.Urgency },
		weight:    WeightVector.Urgency,
		highLabel: "High urgency",
		lowLabel:  "Low urgency",
	},
	{
		name:      "stakeholderValue",
		value:     func(r *requirement.Requirement) *float64 { return r.StakeholderValue },
		weight:    WeightVector.StakeholderValue,
		highLabel: "High stakeholder value",
		lowLabel:  "Low stakeholder value",
	},
}

// categoryProfile holds the per-category multiplier and reasoning clause.
type categoryProfile struct {
	multiplier float64
	clause     string
}

var categoryProfiles = map[requirement.Category]categoryProfile{
	requirement.CategoryBugFix:      {1.2, "Bug fix requirements typically have high priority"},
	requirement.CategoryCompliance:  {1.1, "Compliance requirements are important for regulatory adherence"},
	requirement.CategoryFeature:     {1.0, "New feature for user value"},
	requirement.CategoryEnhancement: {0.9, "Enhancement to existing functionality"},
	requirement.CategoryTechnical:   {0.8, "Technical improvement or refactoring"},
}

// CategoryMultiplier returns the score multiplier for c; nil or unknown
// categories use 1.0.
func CategoryMultiplier(c *requirement.Category) float64 {
	if c == nil {
		return 1.0
	}
	if p, ok := categoryProfiles[*c]; ok {
		return p.multiplier
	}
	return 1.0
}

// Result is the output of scoring a single requirement.
type Result struct {
	Score      float64 // [0, 100]
	Confidence float64 // [0, 1]
	Reasoning  string
}

// Engine scores and ranks requirements. It holds no mutable state and is
// safe for concurrent use when its NoiseSource is.
type Engine struct {
	noise NoiseSource
}

// NewEngine returns an Engine using noise. A nil source uses RandomNoise.
func NewEngine(noise NoiseSource) *Engine {
	if noise == nil {
		noise = RandomNoise
	}
	return &Engine{noise: noise}
}

// BaseScore returns the category-adjusted weighted score in [0,1] scale,
// before noise and clamping.
func BaseScore(req requirement.Requirement, weights WeightVector) float64 {
	weights = weights.orDefault()

	sum := 0.0
	for _, a := range attributeTable {
		v := MissingAttributeValue
		if p := a.value(&req); p != nil {
			v = *p
		}
		norm := (v - 1) / 9
		if a.inverted {
			norm = 1 - norm
		}
		sum += norm * a.weight(weights)
	}

	return sum * CategoryMultiplier(req.Category)
}

// Score computes the priority score, confidence and reasoning for req.
func (e *Engine) Score(req requirement.Requirement, weights WeightVector) Result {
	raw := BaseScore(req, weights) + e.noise.Uniform(-ScoreNoise, ScoreNoise)
	score := clamp(clamp(raw, 0, 1)*100, 0, 100)

	provided := 0
	for _, a := range attributeTable {
		if a.value(&req) != nil {
			provided++
		}
	}
	confidence := float64(provided)/attributeCount + e.noise.Uniform(-ConfidenceNoise, ConfidenceNoise)
	confidence = clamp(confidence, 0, 1)

	return Result{
		Score:      score,
		Confidence: confidence,
		Reasoning:  Reasoning(req, score),
	}
}

// Reasoning builds the human-readable explanation for a score.
func Reasoning(req requirement.Requirement, score float64) string {
	var clauses []string
	for _, a := range attributeTable {
		p := a.value(&req)
		if p == nil {
			continue
		}
		switch {
		case *p >= HighThreshold:
			clauses = append(clauses, fmt.Sprintf("%s (%s/10)", a.highLabel, formatValue(*p)))
		case *p <= LowThreshold:
			clauses = append(clauses, fmt.Sprintf("%s (%s/10)", a.lowLabel, formatValue(*p)))
		}
	}

	if req.Category != nil {
		if p, ok := categoryProfiles[*req.Category]; ok {
			clauses = append(clauses, p.clause)
		}
	}

	switch len(clauses) {
	case 0:
		return fmt.Sprintf("Priority score of %.1f based on weighted analysis of available criteria.", score)
	case 1:
		return fmt.Sprintf("Priority score of %.1f due to %s.", score, clauses[0])
	default:
		return fmt.Sprintf("Priority score of %.1f based on: %s.", score, strings.Join(clauses, ", "))
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
