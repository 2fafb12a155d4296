// Package ranking turns requirements into a ranked, explained ordering.
//
// Basic Usage:
//
//	// Load calibrated weights (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/weights.calibration.json")
//	if err != nil {
//		slog.Warn("using default weights", "error", err)
//	}
//
//	// Score and rank a batch
//	engine := ranking.NewEngine(nil)
//	results := engine.Rank(reqs, weights)
//
// Weight Vector:
//
// A WeightVector holds five importance weights (business value, cost, risk,
// urgency, stakeholder value). NewWeightVector is the only constructor; it
// rejects any value outside [0,1] and any vector whose sum is not 1.0 within
// a tolerance of 0.01. The zero value is treated as DefaultWeightVector.
//
// Scoring:
//
// Absent attributes are substituted with the midpoint 5.0, normalized to
// [0,1] via (v-1)/9, and combined as a weighted sum in which cost and risk
// contribute their inverted value. The sum is scaled by a per-category
// multiplier, perturbed by noise in [-0.05, 0.05], clamped and scaled to
// [0,100]. Confidence is the fraction of provided attributes plus noise in
// [-0.1, 0.1].
//
// Noise:
//
// Noise comes from an injectable NoiseSource. RandomNoise draws from the
// process-wide generator and is safe for concurrent use. NoNoise yields a
// deterministic engine for tests.
//
// Reasoning:
//
// Reasoning text is assembled from two static tables: the attribute table
// (thresholds and labels) and the category profile table (multiplier and
// clause). Adding a category or changing a threshold is a data change.
package ranking
