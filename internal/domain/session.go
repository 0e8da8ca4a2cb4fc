package domain

import "encoding/json"

// Session is a recorded run: metadata, timeline events and ordered frames.
type Session struct {
	Meta   SessionMeta `json:"meta"`
	Events []Event     `json:"events"`
	Frames []*Frame    `json:"frames"`
}

// SessionMeta describes a recorded session.
type SessionMeta struct {
	SessionID  string  `json:"session_id,omitempty"`
	RunID      string  `json:"run_id,omitempty"`
	StartTime  float64 `json:"start_time,omitempty"`
	EndTime    float64 `json:"end_time,omitempty"`
	FrameCount int     `json:"frame_count"`
	Scenario   string  `json:"scenario,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// Event is a timeline marker (fault injection, operator note, scenario step).
type Event struct {
	TS      float64         `json:"ts"`
	Type    string          `json:"type"`
	Details json.RawMessage `json:"details,omitempty"`
}

// NewEvent marshals details into an Event. Unmarshalable details are dropped.
func NewEvent(ts float64, typ string, details any) Event {
	ev := Event{TS: ts, Type: typ}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			ev.Details = b
		}
	}
	return ev
}

// Series extracts one channel across frames, substituting def for missing values.
func (s *Session) Series(key string, def float64) []float64 {
	out := make([]float64, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = f.ValueOr(key, def)
	}
	return out
}
