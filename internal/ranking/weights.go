package ranking

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/onnwee/aria/internal/requirement"
)

// SumTolerance is the allowed deviation of a weight vector sum from 1.0.
const SumTolerance = 0.01

// Default weights.
const (
	DefaultBusinessValueWeight    = 0.30
	DefaultCostWeight             = 0.20
	DefaultRiskWeight             = 0.15
	DefaultUrgencyWeight          = 0.20
	DefaultStakeholderValueWeight = 0.15
)

// WeightVector is a validated importance distribution over the five
// requirement attributes. Construct with NewWeightVector or DefaultWeightVector.
type WeightVector struct {
	businessValue    float64
	cost             float64
	risk             float64
	urgency          float64
	stakeholderValue float64
	valid            bool
}

// NewWeightVector validates the five weights and returns a WeightVector.
// Each weight must be in [0,1] and the sum must be 1.0 within SumTolerance.
func NewWeightVector(businessValue, cost, risk, urgency, stakeholderValue float64) (WeightVector, error) {
	fields := []struct {
		name  string
		value float64
	}{
		{"businessValue", businessValue},
		{"cost", cost},
		{"risk", risk},
		{"urgency", urgency},
		{"stakeholderValue", stakeholderValue},
	}

	sum := 0.0
	for _, f := range fields {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return WeightVector{}, &requirement.ValidationError{
				Field:  f.name,
				Reason: fmt.Sprintf("weight must be between 0 and 1, got %v", f.value),
			}
		}
		sum += f.value
	}

	if math.Abs(sum-1.0) > SumTolerance {
		return WeightVector{}, &requirement.ValidationError{
			Field:  "sum",
			Reason: fmt.Sprintf("weights must sum to 1.0, got %.3f", sum),
		}
	}

	return WeightVector{
		businessValue:    businessValue,
		cost:             cost,
		risk:             risk,
		urgency:          urgency,
		stakeholderValue: stakeholderValue,
		valid:            true,
	}, nil
}

// DefaultWeightVector returns the default weights
// (business value .30, cost .20, risk .15, urgency .20, stakeholder value .15).
func DefaultWeightVector() WeightVector {
	return WeightVector{
		businessValue:    DefaultBusinessValueWeight,
		cost:             DefaultCostWeight,
		risk:             DefaultRiskWeight,
		urgency:          DefaultUrgencyWeight,
		stakeholderValue: DefaultStakeholderValueWeight,
		valid:            true,
	}
}

// orDefault maps the zero value to the default vector.
func (w WeightVector) orDefault() WeightVector {
	if !w.valid {
		return DefaultWeightVector()
	}
	return w
}

// IsZero reports whether w is the zero value.
func (w WeightVector) IsZero() bool { return !w.valid }

func (w WeightVector) BusinessValue() float64    { return w.orDefault().businessValue }
func (w WeightVector) Cost() float64             { return w.orDefault().cost }
func (w WeightVector) Risk() float64             { return w.orDefault().risk }
func (w WeightVector) Urgency() float64          { return w.orDefault().urgency }
func (w WeightVector) StakeholderValue() float64 { return w.orDefault().stakeholderValue }

// Sum returns the total of all five weights.
func (w WeightVector) Sum() float64 {
	d := w.orDefault()
	return d.businessValue + d.cost + d.risk + d.urgency + d.stakeholderValue
}

// WeightInput is a possibly partial weight override as received from
// API callers and calibration files.
type WeightInput struct {
	BusinessValue    *float64 `json:"businessValue,omitempty"`
	Cost             *float64 `json:"cost,omitempty"`
	Risk             *float64 `json:"risk,omitempty"`
	Urgency          *float64 `json:"urgency,omitempty"`
	StakeholderValue *float64 `json:"stakeholderValue,omitempty"`
}

// Resolve fills absent fields from the defaults and validates the result.
// A nil input resolves to DefaultWeightVector.
func (in *WeightInput) Resolve() (WeightVector, error) {
	if in == nil {
		return DefaultWeightVector(), nil
	}
	pick := func(v *float64, def float64) float64 {
		if v == nil {
			return def
		}
		return *v
	}
	return NewWeightVector(
		pick(in.BusinessValue, DefaultBusinessValueWeight),
		pick(in.Cost, DefaultCostWeight),
		pick(in.Risk, DefaultRiskWeight),
		pick(in.Urgency, DefaultUrgencyWeight),
		pick(in.StakeholderValue, DefaultStakeholderValueWeight),
	)
}

// Input returns w as a fully populated WeightInput.
func (w WeightVector) Input() WeightInput {
	d := w.orDefault()
	return WeightInput{
		BusinessValue:    &d.businessValue,
		Cost:             &d.cost,
		Risk:             &d.risk,
		Urgency:          &d.urgency,
		StakeholderValue: &d.stakeholderValue,
	}
}

// MarshalJSON encodes all five weights.
func (w WeightVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Input())
}

// UnmarshalJSON decodes and validates a weight vector. Absent fields take
// their default value.
func (w *WeightVector) UnmarshalJSON(data []byte) error {
	var in WeightInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	v, err := in.Resolve()
	if err != nil {
		return err
	}
	*w = v
	return nil
}

func (w WeightVector) String() string {
	d := w.orDefault()
	return fmt.Sprintf("businessValue=%.2f cost=%.2f risk=%.2f urgency=%.2f stakeholderValue=%.2f",
		d.businessValue, d.cost, d.risk, d.urgency, d.stakeholderValue)
}
