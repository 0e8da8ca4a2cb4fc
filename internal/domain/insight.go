package domain

// Severity classifies an insight.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Insight event types emitted by the detector.
const (
	InsightHarmonicBloom       = "Harmonic Bloom"
	InsightPhaseImbalance      = "Phase Imbalance"
	InsightFrequencyUndershoot = "Frequency Undershoot"
	InsightRecoveryDelay       = "Recovery Delay"
)

// Insight is an immutable anomaly record.
type Insight struct {
	ID        string             `json:"id,omitempty"`
	Timestamp float64            `json:"timestamp"`
	EventType string             `json:"event_type"`
	Severity  Severity           `json:"severity"`
	Message   string             `json:"message"`
	Metrics   map[string]float64 `json:"metrics"`
	Phase     string             `json:"phase,omitempty"`
}
