package gridbench

import (
	"github.com/ghalamif/GridBench/internal/analysis"
	"github.com/ghalamif/GridBench/internal/compliance"
	"github.com/ghalamif/GridBench/internal/scenario"
	"github.com/ghalamif/GridBench/internal/session"
)

type (
	// ComplianceResult is the outcome of one compliance rule.
	ComplianceResult = compliance.RuleResult
	// ValidationRules is the validation block of a scenario.
	ValidationRules = scenario.Rules
	// SessionReport lists integrity warnings found in a session file.
	SessionReport = session.Report
	// Comparison summarises the difference between two series.
	Comparison = analysis.Comparison
)

// LoadSession reads a session capsule (.json, .json.gz or .json.zst).
func LoadSession(path string) (*Session, error) {
	return session.Load(path)
}

// SaveSession writes s atomically, compressing by file extension.
func SaveSession(path string, s *Session) error {
	return session.Save(path, s)
}

// CheckSession reports timestamp problems in s.
func CheckSession(s *Session) SessionReport {
	return session.Check(s)
}

// ValidateSession checks a recorded session against scenario rules.
func ValidateSession(s *Session, rules ValidationRules) ScenarioResult {
	return scenario.Validate(s, rules)
}

// EvaluateCompliance runs the fixed grid-code rule set over s.
func EvaluateCompliance(s *Session) []ComplianceResult {
	return compliance.Evaluate(s)
}

// CompliancePassed reports whether every rule passed.
func CompliancePassed(results []ComplianceResult) bool {
	return compliance.Passed(results)
}

// CompareSessions compares one channel of two sessions frame by frame.
func CompareSessions(ref, test *Session, key string) Comparison {
	return session.Compare(ref, test, key)
}
