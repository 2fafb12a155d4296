package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string      `json:"version"` // Config version for future compatibility
	Weights WeightInput `json:"weights"` // Partial weights; absent fields keep defaults
}

// LoadCalibration loads the scoring weights from a JSON calibration file.
// Absent weights are merged from the defaults and the result must pass the
// same validation as NewWeightVector.
//
// On any error the default vector is returned together with the error so
// callers can log and continue.
func LoadCalibration(filePath string) (WeightVector, error) {
	if filePath == "" {
		return DefaultWeightVector(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeightVector(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeightVector(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	weights, err := config.Weights.Resolve()
	if err != nil {
		slog.Warn("invalid calibration weights, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeightVector(), fmt.Errorf("invalid calibration weights: %w", err)
	}

	logCalibrationOverrides(DefaultWeightVector(), weights)
	return weights, nil
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults, loaded WeightVector) {
	var overrides []string
	for _, a := range attributeTable {
		d, l := a.weight(defaults), a.weight(loaded)
		if d != l {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", a.name, d, l))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded scoring calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded scoring calibration (using all defaults)")
	}
}
