package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonical channel keys produced by collectors and the channel mapper.
const (
	KeyTS        = "ts"
	KeyFrequency = "freq"
	KeyVoltage   = "v"
	KeyVA        = "v_an"
	KeyVB        = "v_bn"
	KeyVC        = "v_cn"
	KeyIA        = "i_a"
	KeyIB        = "i_b"
	KeyIC        = "i_c"
	KeyPower     = "p_kw"
	KeyReactive  = "q_kvar"
	KeyFaultType = "fault_type"
	KeySource    = "source"
)

// Frame is one telemetry snapshot: a flat mapping of channel name to value,
// with "ts" (seconds) as one of the channels. FaultType is the optional fault
// tag reported by the source; empty means no fault.
type Frame struct {
	Values    map[string]float64
	FaultType string
	Source    string
}

// NewFrame builds a frame stamped with ts.
func NewFrame(ts float64, values map[string]float64) *Frame {
	f := &Frame{Values: make(map[string]float64, len(values)+1)}
	for k, v := range values {
		f.Values[k] = v
	}
	f.Values[KeyTS] = ts
	return f
}

// TS returns the frame timestamp or 0 when absent.
func (f *Frame) TS() float64 {
	return f.ValueOr(KeyTS, 0)
}

func (f *Frame) Has(key string) bool {
	if f == nil || f.Values == nil {
		return false
	}
	_, ok := f.Values[key]
	return ok
}

func (f *Frame) Value(key string) (float64, bool) {
	if f == nil || f.Values == nil {
		return 0, false
	}
	v, ok := f.Values[key]
	return v, ok
}

// ValueOr returns the channel value or def when the channel is missing.
func (f *Frame) ValueOr(key string, def float64) float64 {
	if v, ok := f.Value(key); ok {
		return v
	}
	return def
}

func (f *Frame) Set(key string, v float64) {
	if f.Values == nil {
		f.Values = make(map[string]float64)
	}
	f.Values[key] = v
}

// Faulted reports whether the source tagged this frame with an active fault.
func (f *Frame) Faulted() bool {
	return f != nil && f.FaultType != ""
}

func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := &Frame{
		Values:    make(map[string]float64, len(f.Values)),
		FaultType: f.FaultType,
		Source:    f.Source,
	}
	for k, v := range f.Values {
		out.Values[k] = v
	}
	return out
}

// Keys returns the channel names in sorted order.
func (f *Frame) Keys() []string {
	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON writes the flat wire shape: {"ts":..,"v_an":..,"fault_type":null}.
func (f Frame) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(f.Values)+2)
	for k, v := range f.Values {
		obj[k] = v
	}
	if f.FaultType != "" {
		obj[KeyFaultType] = f.FaultType
	} else {
		obj[KeyFaultType] = nil
	}
	if f.Source != "" {
		obj[KeySource] = f.Source
	}
	return json.Marshal(obj)
}

// UnmarshalJSON accepts the flat wire shape. Numeric fields become channels,
// "fault_type" and "source" are read as strings and anything else is ignored.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	f.Values = make(map[string]float64, len(raw))
	f.FaultType = ""
	f.Source = ""
	for k, msg := range raw {
		switch k {
		case KeyFaultType, KeySource:
			var s *string
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			if s == nil {
				continue
			}
			if k == KeyFaultType {
				f.FaultType = *s
			} else {
				f.Source = *s
			}
			continue
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		f.Values[k] = v
	}
	return nil
}
