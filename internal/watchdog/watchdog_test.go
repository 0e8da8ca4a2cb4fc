package watchdog

import (
	"testing"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

type gaugeRecorder struct {
	gauges map[string]float64
}

func (g *gaugeRecorder) LogInfo(string, ...ports.Field)                   {}
func (g *gaugeRecorder) LogError(string, error, ...ports.Field)           {}
func (g *gaugeRecorder) LogCritical(string, error, ...ports.Field)        {}
func (g *gaugeRecorder) IncCounter(string, float64)                       {}
func (g *gaugeRecorder) ObserveLatency(string, float64)                   {}
func (g *gaugeRecorder) RecordDLQ(ports.WALEntryID, *domain.Frame, error) {}
func (g *gaugeRecorder) SetGauge(name string, v float64) {
	if g.gauges == nil {
		g.gauges = map[string]float64{}
	}
	g.gauges[name] = v
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

func TestNoDataIsNotStale(t *testing.T) {
	w := New(Config{})
	if w.Check(at(10_000)) {
		t.Fatalf("no data yet must not be reported stale")
	}
	if st := w.Stats(at(10_000)); st.Status != StatusNoData {
		t.Fatalf("expected no_data, got %s", st.Status)
	}
}

func TestStaleAndResume(t *testing.T) {
	var staleAge time.Duration
	resumed := 0
	obs := &gaugeRecorder{}
	w := New(Config{Timeout: 2 * time.Second},
		OnStale(func(age time.Duration) { staleAge = age }),
		OnResume(func() { resumed++ }),
		WithObservability(obs),
	)

	w.Observe(at(0))
	if w.Check(at(1999)) {
		t.Fatalf("should not be stale before timeout")
	}
	if !w.Check(at(2500)) {
		t.Fatalf("expected stale transition")
	}
	if w.Check(at(3000)) {
		t.Fatalf("stale must be reported once")
	}
	if staleAge != 2500*time.Millisecond || obs.gauges[ports.MetricTelemetryStale] != 1 {
		t.Fatalf("unexpected stale age %s gauges %v", staleAge, obs.gauges)
	}
	if st := w.Stats(at(3000)); st.Status != StatusStale || st.LastFrameAge != 3*time.Second {
		t.Fatalf("unexpected stats %+v", st)
	}

	w.Observe(at(3100))
	if resumed != 1 || obs.gauges[ports.MetricTelemetryStale] != 0 {
		t.Fatalf("expected one resume, got %d", resumed)
	}
	if st := w.Stats(at(3100)); st.Status != StatusHealthy || st.FrameCount != 2 {
		t.Fatalf("unexpected stats after resume %+v", st)
	}
}

func TestRateChangeAlert(t *testing.T) {
	var changes [][2]float64
	obs := &gaugeRecorder{}
	w := New(Config{}, OnRateChange(func(prev, next float64) {
		changes = append(changes, [2]float64{prev, next})
	}), WithObservability(obs))

	// 50 Hz for the first window
	ms := 0
	for i := 0; i <= 100; i++ {
		w.Observe(at(ms))
		ms += 20
	}
	if len(changes) != 0 {
		t.Fatalf("first measurement must not alert, got %v", changes)
	}
	first := w.Stats(at(ms)).RateHz
	if first < 45 || first > 55 {
		t.Fatalf("expected ~50 Hz, got %.1f", first)
	}
	if obs.gauges[ports.MetricFrameRate] != first {
		t.Fatalf("frame rate gauge not updated")
	}

	// drop to 20 Hz
	for i := 0; i < 60; i++ {
		ms += 50
		w.Observe(at(ms))
	}
	if len(changes) == 0 {
		t.Fatalf("expected a rate change alert")
	}
	if next := changes[0][1]; next > 25 || next < 15 {
		t.Fatalf("expected ~20 Hz after drop, got %.1f", next)
	}
}

func TestReset(t *testing.T) {
	w := New(Config{})
	w.Observe(at(0))
	w.Reset()
	if st := w.Stats(at(10)); st.Status != StatusNoData {
		t.Fatalf("expected no_data after reset, got %+v", st)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Timeout: time.Second, CheckInterval: 2 * time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected interval error")
	}
}
