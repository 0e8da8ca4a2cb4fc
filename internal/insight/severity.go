package insight

import (
	"math"

	"github.com/ghalamif/GridBench/internal/domain"
)

// Thresholds grade a measurement into info, warning or critical.
type Thresholds struct {
	THDWarning        float64
	THDCritical       float64
	UnbalanceWarning  float64
	UnbalanceCritical float64
	FrequencyWarning  float64
	FrequencyCritical float64
}

// DefaultThresholds are the bench grading levels.
var DefaultThresholds = Thresholds{
	THDWarning:        5,
	THDCritical:       10,
	UnbalanceWarning:  10,
	UnbalanceCritical: 15,
	FrequencyWarning:  0.5,
	FrequencyCritical: 1.0,
}

func grade(v, warning, critical float64) domain.Severity {
	switch {
	case v > critical:
		return domain.SeverityCritical
	case v > warning:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

// THD grades a distortion percentage.
func (t Thresholds) THD(pct float64) domain.Severity {
	return grade(pct, t.THDWarning, t.THDCritical)
}

// Unbalance grades a phase-angle deviation from the ideal 120° spacing.
func (t Thresholds) Unbalance(deviationDeg float64) domain.Severity {
	return grade(math.Abs(deviationDeg), t.UnbalanceWarning, t.UnbalanceCritical)
}

// Frequency grades the distance of freq from nominal.
func (t Thresholds) Frequency(freq, nominal float64) domain.Severity {
	return grade(math.Abs(freq-nominal), t.FrequencyWarning, t.FrequencyCritical)
}
