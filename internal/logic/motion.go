package logic

import (
	"math"
	"strconv"
	"time"
)

// DefaultThreshold is the magnitude at or above which a sample counts as a shake.
const DefaultThreshold = 0.5

// significantFigures is the precision used for magnitudes.
const significantFigures = 3

// MotionDetector watches acceleration samples and fires its trigger whenever
// the magnitude crosses the threshold.
type MotionDetector struct {
	threshold  float64
	trigger    func(now time.Time)
	magnitude  float64
	capability Capability
}

// NewMotionDetector creates a detector that calls trigger for every sample
// whose magnitude is >= threshold.
func NewMotionDetector(threshold float64, trigger func(now time.Time)) *MotionDetector {
	return &MotionDetector{
		threshold:  threshold,
		trigger:    trigger,
		capability: CapabilityUnknown,
	}
}

// Process records the sample's magnitude and fires the trigger on a crossing.
// It reports whether the trigger was called. An unavailable detector never fires.
func (m *MotionDetector) Process(s Sample) bool {
	if m.capability == CapabilityUnavailable {
		return false
	}
	m.magnitude = Magnitude(s.X, s.Y, s.Z)
	if m.magnitude < m.threshold {
		return false
	}
	m.trigger(s.Time)
	return true
}

// Magnitude returns the latest magnitude, rounded to 3 significant figures.
func (m *MotionDetector) Magnitude() float64 {
	return m.magnitude
}

// Threshold returns the configured threshold.
func (m *MotionDetector) Threshold() float64 {
	return m.threshold
}

// Capability returns the sensor capability state.
func (m *MotionDetector) Capability() Capability {
	return m.capability
}

// SetCapability records whether the sensor subscription succeeded.
// Marking the detector unavailable also clears the latest magnitude.
func (m *MotionDetector) SetCapability(c Capability) {
	m.capability = c
	if c != CapabilityAvailable {
		m.magnitude = 0
	}
}

// Magnitude returns the Euclidean norm of (x, y, z) rounded to 3 significant
// figures. Comparing the rounded value keeps samples that sit exactly on the
// threshold from flapping on floating point noise.
func Magnitude(x, y, z float64) float64 {
	return RoundSignificant(math.Sqrt(x*x+y*y+z*z), significantFigures)
}

// RoundSignificant rounds v to n significant figures.
func RoundSignificant(v float64, n int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	exp := math.Ceil(math.Log10(math.Abs(v)))
	pow := math.Pow(10, float64(n)-exp)
	return math.Round(v*pow) / pow
}

// FormatMagnitude renders a magnitude with 3 significant figures, keeping
// trailing zeros ("0.500", "12.0").
func FormatMagnitude(v float64) string {
	if v == 0 {
		return "0.00"
	}
	exp := int(math.Floor(math.Log10(math.Abs(v))))
	decimals := significantFigures - 1 - exp
	if decimals < 0 {
		return strconv.FormatFloat(v, 'e', significantFigures-1, 64)
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// FormatSeconds renders a duration as seconds with 2 decimals ("1.50").
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', 2, 64)
}
