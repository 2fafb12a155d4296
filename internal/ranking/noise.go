package ranking

import (
	"math/rand/v2"
	"sync"
)

// Noise bounds applied to the weighted score and the confidence.
const (
	ScoreNoise      = 0.05
	ConfidenceNoise = 0.1
)

// NoiseSource draws uniform perturbations in [min, max].
// Implementations must be safe for concurrent use.
type NoiseSource interface {
	Uniform(min, max float64) float64
}

type randomNoise struct{}

func (randomNoise) Uniform(min, max float64) float64 {
	return min + rand.Float64()*(max-min)
}

// RandomNoise draws from the process-wide generator.
var RandomNoise NoiseSource = randomNoise{}

// NoNoise always returns the midpoint of the range, which is zero for the
// symmetric ranges used by the engine.
type NoNoise struct{}

func (NoNoise) Uniform(min, max float64) float64 {
	return (min + max) / 2
}

// FixedNoise returns the same offset for every draw, clamped to the range.
type FixedNoise float64

func (f FixedNoise) Uniform(min, max float64) float64 {
	v := float64(f)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SeededNoise is a reproducible noise source.
type SeededNoise struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededNoise returns a SeededNoise seeded with seed.
func NewSeededNoise(seed uint64) *SeededNoise {
	return &SeededNoise{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededNoise) Uniform(min, max float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Float64()*(max-min)
}
