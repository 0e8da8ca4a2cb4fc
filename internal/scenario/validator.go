package scenario

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/ghalamif/GridBench/internal/analysis"
	"github.com/ghalamif/GridBench/internal/domain"
)

// Bound is a numeric limit pair; nil means the side is not checked.
type Bound struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Rules is the validation block of a scenario. Absent rules are skipped.
type Rules struct {
	FrequencyNadir *Bound `json:"frequency_nadir,omitempty" yaml:"frequency_nadir,omitempty"`
	VoltageSag     *Bound `json:"voltage_sag,omitempty" yaml:"voltage_sag,omitempty"`
	RecoveryTime   *Bound `json:"recovery_time,omitempty" yaml:"recovery_time,omitempty"`
}

// Result is the outcome of a validation run.
type Result struct {
	Passed bool     `json:"passed"`
	Logs   []string `json:"logs"`
}

const (
	msgNoFrames  = "No frames in session data."
	msgMalformed = "Malformed session data (missing keys)."
	msgNoChecks  = "No validation checks ran."
	msgNoStep    = "WARN: Could not calculate step metrics for recovery check."
)

// Validate checks a recorded session against rules. It fails closed on empty
// or malformed sessions. When no rule is evaluated the result passes with a
// single informational log line.
func Validate(s *domain.Session, rules Rules) Result {
	if s == nil || len(s.Frames) == 0 {
		return Result{Passed: false, Logs: []string{msgNoFrames}}
	}

	n := len(s.Frames)
	ts := make([]float64, n)
	vs := make([]float64, n)
	freqs := make([]float64, n)
	for i, f := range s.Frames {
		t, ok := f.Value(domain.KeyTS)
		if !ok {
			return Result{Passed: false, Logs: []string{msgMalformed}}
		}
		// Any partial phase set fails closed, including vb/vc without va,
		// which would otherwise read as a 0 V frame.
		v, ok := scalarVoltage(f)
		if !ok {
			return Result{Passed: false, Logs: []string{msgMalformed}}
		}
		ts[i] = t
		vs[i] = v
		freqs[i] = f.ValueOr(domain.KeyFrequency, analysis.DefaultFundamental)
	}

	res := Result{Passed: true}

	if b := rules.FrequencyNadir; b != nil && b.Min != nil {
		limit := *b.Min
		nadir := floats.Min(freqs)
		if nadir < limit {
			res.Passed = false
			res.Logs = append(res.Logs, fmt.Sprintf("FAIL: Freq Nadir %.2fHz < Limit %sHz", nadir, num(limit)))
		} else {
			res.Logs = append(res.Logs, fmt.Sprintf("PASS: Freq Nadir %.2fHz >= %sHz", nadir, num(limit)))
		}
	}

	if b := rules.VoltageSag; b != nil && b.Min != nil {
		limit := *b.Min
		minV := floats.Min(vs)
		if minV < limit {
			res.Passed = false
			res.Logs = append(res.Logs, fmt.Sprintf("FAIL: Avg Voltage %.2fV < Limit %sV", minV, num(limit)))
		} else {
			res.Logs = append(res.Logs, fmt.Sprintf("PASS: Avg Voltage %.2fV >= %sV", minV, num(limit)))
		}
	}

	if b := rules.RecoveryTime; b != nil {
		m, ok := analysis.StepResponse(ts, vs)
		switch {
		case !ok:
			res.Logs = append(res.Logs, msgNoStep)
		case b.Max != nil:
			limit := *b.Max
			if m.RiseTime > limit {
				res.Passed = false
				res.Logs = append(res.Logs, fmt.Sprintf("FAIL: Rise Time %.2fs > %ss", m.RiseTime, num(limit)))
			} else {
				res.Logs = append(res.Logs, fmt.Sprintf("PASS: Rise Time %.2fs <= %ss", m.RiseTime, num(limit)))
			}
		}
	}

	if len(res.Logs) == 0 {
		res.Logs = []string{msgNoChecks}
	}
	return res
}

// scalarVoltage uses "v" when present, else the mean of the three phase
// voltages, else 0. A partial phase set is malformed.
func scalarVoltage(f *domain.Frame) (float64, bool) {
	if v, ok := f.Value(domain.KeyVoltage); ok {
		return v, true
	}
	a, okA := f.Value(domain.KeyVA)
	b, okB := f.Value(domain.KeyVB)
	c, okC := f.Value(domain.KeyVC)
	switch {
	case okA && okB && okC:
		return (a + b + c) / 3, true
	case okA || okB || okC:
		return 0, false
	default:
		return 0, true
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
