package ranking

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCalibration(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write calibration file: %v", err)
	}
	return path
}

func TestLoadCalibration_EmptyPath(t *testing.T) {
	w, err := LoadCalibration("")
	if err != nil {
		t.Fatalf("expected no error for empty path, got %v", err)
	}
	if w != DefaultWeightVector() {
		t.Errorf("expected defaults, got %v", w)
	}
}

func TestLoadCalibration_MissingFile(t *testing.T) {
	w, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if w != DefaultWeightVector() {
		t.Errorf("expected defaults on error, got %v", w)
	}
}

func TestLoadCalibration_InvalidJSON(t *testing.T) {
	path := writeCalibration(t, `{"weights": `)
	w, err := LoadCalibration(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if w != DefaultWeightVector() {
		t.Errorf("expected defaults on error, got %v", w)
	}
}

func TestLoadCalibration_PartialOverride(t *testing.T) {
	path := writeCalibration(t, `{"version": "1", "weights": {"urgency": 0.30, "stakeholderValue": 0.05}}`)
	w, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w.Urgency() != 0.30 || w.StakeholderValue() != 0.05 {
		t.Errorf("expected overrides applied, got %v", w)
	}
	if w.BusinessValue() != DefaultBusinessValueWeight {
		t.Errorf("expected business value default, got %f", w.BusinessValue())
	}
}

func TestLoadCalibration_InvalidSum(t *testing.T) {
	path := writeCalibration(t, `{"weights": {"businessValue": 0.9}}`)
	w, err := LoadCalibration(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if w != DefaultWeightVector() {
		t.Errorf("expected defaults on error, got %v", w)
	}
}
