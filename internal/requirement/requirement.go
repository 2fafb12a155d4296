// Package requirement defines the requirement records that flow through
// ingestion, scoring, storage and reporting.
package requirement

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Category is the closed set of requirement classifications.
type Category string

// Category values.
const (
	CategoryFeature     Category = "FEATURE"
	CategoryEnhancement Category = "ENHANCEMENT"
	CategoryBugFix      Category = "BUG_FIX"
	CategoryTechnical   Category = "TECHNICAL"
	CategoryCompliance  Category = "COMPLIANCE"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryFeature,
	CategoryEnhancement,
	CategoryBugFix,
	CategoryTechnical,
	CategoryCompliance,
}

// Field length and value limits.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MinAttributeValue    = 1.0
	MaxAttributeValue    = 10.0
)

// ParseCategory normalizes s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Requirement is a single item under prioritization.
// Numeric attributes are optional and, when present, lie in [1,10].
type Requirement struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	BusinessValue    *float64  `json:"businessValue,omitempty"`
	Cost             *float64  `json:"cost,omitempty"`
	Risk             *float64  `json:"risk,omitempty"`
	Urgency          *float64  `json:"urgency,omitempty"`
	StakeholderValue *float64  `json:"stakeholderValue,omitempty"`
	Category         *Category `json:"category,omitempty"`
}

// PrioritizedRequirement is a Requirement annotated by a ranking pass.
type PrioritizedRequirement struct {
	Requirement
	PriorityScore float64  `json:"priorityScore"`
	Rank          int      `json:"rank"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
}

// Clone returns a copy of r that shares no pointers with it.
func (r Requirement) Clone() Requirement {
	for _, p := range []**float64{&r.BusinessValue, &r.Cost, &r.Risk, &r.Urgency, &r.StakeholderValue} {
		if *p != nil {
			*p = Float(**p)
		}
	}
	if r.Category != nil {
		r.Category = CategoryPtr(*r.Category)
	}
	return r
}

// Clone returns a deep copy of p.
func (p PrioritizedRequirement) Clone() PrioritizedRequirement {
	p.Requirement = p.Requirement.Clone()
	if p.Confidence != nil {
		p.Confidence = Float(*p.Confidence)
	}
	return p
}

// CloneAll deep-copies items. A nil slice stays nil.
func CloneAll[T interface{ Clone() T }](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Validate checks the requirement against the data model limits.
func (r *Requirement) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if utf8.RuneCountInString(r.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
	}
	if utf8.RuneCountInString(r.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("must be at most %d characters", MaxDescriptionLength)}
	}

	for _, a := range r.attributes() {
		if a.value == nil {
			continue
		}
		if !ValidAttributeValue(*a.value) {
			return &ValidationError{Field: a.name, Reason: "must be between 1 and 10"}
		}
	}

	if r.Category != nil && !r.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", *r.Category)}
	}
	return nil
}

// ValidAttributeValue reports whether v is a finite value within
// [MinAttributeValue, MaxAttributeValue].
func ValidAttributeValue(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= MinAttributeValue && v <= MaxAttributeValue
}

type namedValue struct {
	name  string
	value *float64
}

func (r *Requirement) attributes() []namedValue {
	return []namedValue{
		{"businessValue", r.BusinessValue},
		{"cost", r.Cost},
		{"risk", r.Risk},
		{"urgency", r.Urgency},
		{"stakeholderValue", r.StakeholderValue},
	}
}

// ValidateBatch checks a batch of 1..max requirements with unique IDs.
func ValidateBatch(reqs []Requirement, max int) error {
	if len(reqs) == 0 {
		return &ValidationError{Field: "requirements", Reason: "at least one requirement is required"}
	}
	if max > 0 && len(reqs) > max {
		return &ValidationError{Field: "requirements", Reason: fmt.Sprintf("at most %d requirements allowed", max)}
	}

	seen := make(map[string]struct{}, len(reqs))
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				return &ValidationError{Field: fmt.Sprintf("requirements[%d].%s", i, ve.Field), Reason: ve.Reason}
			}
			return err
		}
		if _, dup := seen[reqs[i].ID]; dup {
			return &ValidationError{Field: fmt.Sprintf("requirements[%d].id", i), Reason: fmt.Sprintf("duplicate id %q", reqs[i].ID)}
		}
		seen[reqs[i].ID] = struct{}{}
	}
	return nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// CategoryPtr returns a pointer to c.
func CategoryPtr(c Category) *Category {
	return &c
}
