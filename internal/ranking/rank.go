package ranking

import (
	"sort"

	"github.com/onnwee/aria/internal/requirement"
)

// Rank scores every requirement independently and returns them ordered by
// descending priority score. Equal scores keep their input order. Ranks are
// 1..N with no gaps or shared values. Empty input yields an empty slice.
func (e *Engine) Rank(reqs []requirement.Requirement, weights WeightVector) []requirement.PrioritizedRequirement {
	results := make([]requirement.PrioritizedRequirement, len(reqs))
	for i, req := range reqs {
		r := e.Score(req, weights)
		confidence := r.Confidence
		results[i] = requirement.PrioritizedRequirement{
			Requirement:   req,
			PriorityScore: r.Score,
			Confidence:    &confidence,
			Reasoning:     r.Reasoning,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PriorityScore > results[j].PriorityScore
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
