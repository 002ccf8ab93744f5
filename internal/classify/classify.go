package classify

import "github.com/rsethi/vitalrelay/internal/model"

// Severity levels, from least to most urgent.
const (
	StatusNormal   = "normal"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Classifier grades one vitals reading.
type Classifier interface {
	Classify(v model.Vitals) string
}

// Thresholds is the default range-based classifier. A reading is graded
// by its worst individual vital.
type Thresholds struct {
	// Heart rate in bpm.
	HeartRateLow      float64
	HeartRateHigh     float64
	HeartRateCritical float64

	// Oxygen saturation in percent.
	SpO2Low      float64
	SpO2Critical float64

	// Systolic pressure in mmHg.
	PressureLow      float64
	PressureHigh     float64
	PressureCritical float64
}

// DefaultThresholds returns the standard adult ranges.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRateLow:      60,
		HeartRateHigh:     100,
		HeartRateCritical: 120,
		SpO2Low:           95,
		SpO2Critical:      90,
		PressureLow:       90,
		PressureHigh:      140,
		PressureCritical:  180,
	}
}

// Classify implements Classifier.
func (t Thresholds) Classify(v model.Vitals) string {
	status := StatusNormal

	if v.HeartRate >= t.HeartRateCritical {
		return StatusCritical
	}
	if v.HeartRate < t.HeartRateLow || v.HeartRate > t.HeartRateHigh {
		status = StatusWarning
	}

	if v.SpO2 > 0 {
		if v.SpO2 < t.SpO2Critical {
			return StatusCritical
		}
		if v.SpO2 < t.SpO2Low {
			status = StatusWarning
		}
	}

	if v.Pressure >= t.PressureCritical {
		return StatusCritical
	}
	if v.Pressure > 0 && (v.Pressure < t.PressureLow || v.Pressure > t.PressureHigh) {
		status = StatusWarning
	}

	return status
}
