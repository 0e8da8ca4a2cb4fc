// Package compliance evaluates a recorded session against a fixed,
// IEEE 2800 inspired rule set for grid-forming inverters.
package compliance

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ghalamif/GridBench/internal/domain"
)

const (
	NominalVoltage   = 120.0
	NominalFrequency = 60.0

	rideThroughFraction = 0.5
	recoveryFraction    = 0.6
	frequencyTolerance  = 0.5
	recoveryWindow      = 20
)

// Rule names.
const (
	RuleDataAvailability = "Data Availability"
	RuleRideThrough      = "Ride-through 50% sag >=200ms"
	RuleFrequencyBand    = "Frequency within ±0.5Hz"
	RuleVoltageRecovery  = "Voltage recovery"
)

// RuleResult is the outcome of one compliance rule.
type RuleResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// Evaluate runs the rule set over s. An empty session yields a single
// failing data availability entry.
func Evaluate(s *domain.Session) []RuleResult {
	if s == nil || len(s.Frames) == 0 {
		return []RuleResult{{Name: RuleDataAvailability, Passed: false, Details: "No frames in session."}}
	}

	n := len(s.Frames)
	freqs := make([]float64, n)
	avg := make([]float64, n)
	for i, f := range s.Frames {
		freqs[i] = f.ValueOr(domain.KeyFrequency, NominalFrequency)
		avg[i] = (f.ValueOr(domain.KeyVA, 0) + f.ValueOr(domain.KeyVB, 0) + f.ValueOr(domain.KeyVC, 0)) / 3
	}

	minV := floats.Min(avg)
	minF, maxF := floats.Min(freqs), floats.Max(freqs)

	recovery := RuleResult{Name: RuleVoltageRecovery, Passed: true, Details: "No extended undervoltage"}
	if start, ok := firstUndervoltageWindow(avg); ok {
		recovery.Passed = false
		recovery.Details = fmt.Sprintf("Undervoltage below %.1fV in frames %d-%d",
			recoveryFraction*NominalVoltage, start, start+recoveryWindow-1)
	}

	return []RuleResult{
		{
			Name:    RuleRideThrough,
			Passed:  minV >= rideThroughFraction*NominalVoltage,
			Details: fmt.Sprintf("Min avg V=%.1f", minV),
		},
		{
			Name:    RuleFrequencyBand,
			Passed:  minF >= NominalFrequency-frequencyTolerance && maxF <= NominalFrequency+frequencyTolerance,
			Details: fmt.Sprintf("Min/Max=%.2f/%.2f", minF, maxF),
		},
		recovery,
	}
}

// firstUndervoltageWindow scans non-overlapping windows of recoveryWindow
// samples (a trailing partial window is ignored) and returns the start of
// the first one dipping below the recovery threshold.
func firstUndervoltageWindow(avg []float64) (int, bool) {
	limit := recoveryFraction * NominalVoltage
	for start := 0; start+recoveryWindow <= len(avg); start += recoveryWindow {
		if floats.Min(avg[start:start+recoveryWindow]) < limit {
			return start, true
		}
	}
	return 0, false
}

// Passed reports whether every rule passed.
func Passed(results []RuleResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return len(results) > 0
}
