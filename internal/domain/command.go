package domain

// Fault and control command types understood by the bench sources.
const (
	CommandSag            = "sag"
	CommandDrift          = "drift"
	CommandPhaseJump      = "phase_jump"
	CommandUnbalance      = "unbalance"
	CommandInjectWaveform = "inject_waveform"
	CommandClearFault     = "clear_fault"
)

// Command is a fault injection or control request sent to a frame source.
type Command struct {
	Type     string             `json:"type" yaml:"type"`
	Value    float64            `json:"value,omitempty" yaml:"value,omitempty"`
	Duration float64            `json:"duration,omitempty" yaml:"duration,omitempty"`
	Params   map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}
