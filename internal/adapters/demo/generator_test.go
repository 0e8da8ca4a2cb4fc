package demo

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ghalamif/GridBench/internal/analysis"
	"github.com/ghalamif/GridBench/internal/domain"
)

func quietGenerator(rate float64) *Generator {
	return NewGenerator(Config{Rate: rate, Noise: -1})
}

func run(g *Generator, n int) []*domain.Frame {
	out := make([]*domain.Frame, n)
	for i := range out {
		out[i] = g.Step()
	}
	return out
}

func series(frames []*domain.Frame, key string) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.ValueOr(key, 0)
	}
	return out
}

func TestGeneratorNominalSignal(t *testing.T) {
	g := quietGenerator(2000)
	frames := run(g, 2000)

	if frames[0].TS() != 0 || math.Abs(frames[1].TS()-0.0005) > 1e-12 {
		t.Fatalf("unexpected timestamps %v %v", frames[0].TS(), frames[1].TS())
	}
	for _, key := range []string{domain.KeyVA, domain.KeyVB, domain.KeyVC} {
		rms := analysis.RMS(series(frames, key))
		// 3% 5th and 2% 7th harmonics lift the RMS slightly above 120
		if rms < 119 || rms > 121.5 {
			t.Fatalf("%s rms %.2f out of range", key, rms)
		}
	}
	if frames[0].Faulted() || frames[0].Source != "demo" {
		t.Fatalf("unexpected frame meta %+v", frames[0])
	}
	if math.Abs(frames[0].ValueOr(domain.KeyFrequency, 0)-60) > 0.11 {
		t.Fatalf("nominal frequency drifted: %v", frames[0].ValueOr(domain.KeyFrequency, 0))
	}
}

func TestGeneratorSagExpires(t *testing.T) {
	g := quietGenerator(1000)
	if err := g.Command(context.Background(), domain.Command{Type: domain.CommandSag, Duration: 0.1}); err != nil {
		t.Fatalf("sag: %v", err)
	}
	during := run(g, 100)
	if during[0].FaultType != domain.CommandSag {
		t.Fatalf("expected sag fault type, got %q", during[0].FaultType)
	}
	if rms := analysis.RMS(series(during, domain.KeyVA)); rms > 65 {
		t.Fatalf("expected halved voltage during sag, rms %.1f", rms)
	}

	after := run(g, 200)
	if after[len(after)-1].Faulted() {
		t.Fatalf("sag should have expired")
	}
	if rms := analysis.RMS(series(after[100:], domain.KeyVA)); rms < 115 {
		t.Fatalf("voltage did not recover, rms %.1f", rms)
	}
}

func TestGeneratorDriftRampsFrequency(t *testing.T) {
	g := quietGenerator(100)
	_ = g.Command(context.Background(), domain.Command{Type: domain.CommandDrift, Value: -1.5, Duration: 1})
	frames := run(g, 100)
	last := frames[99].ValueOr(domain.KeyFrequency, 0)
	if last > 58.7 || last < 58.3 {
		t.Fatalf("expected ~58.5 Hz at end of ramp, got %.3f", last)
	}
	if frames[0].ValueOr(domain.KeyFrequency, 0) < 59.8 {
		t.Fatalf("ramp should start at nominal, got %.3f", frames[0].ValueOr(domain.KeyFrequency, 0))
	}
}

func TestGeneratorUnbalanceAndClear(t *testing.T) {
	g := quietGenerator(2000)
	_ = g.Command(context.Background(), domain.Command{
		Type:   domain.CommandUnbalance,
		Params: map[string]float64{"a": 1, "b": 0.5, "c": 1},
	})
	frames := run(g, 1000)
	a := analysis.RMS(series(frames, domain.KeyVA))
	b := analysis.RMS(series(frames, domain.KeyVB))
	if b > 0.6*a {
		t.Fatalf("expected phase B reduced, a=%.1f b=%.1f", a, b)
	}

	_ = g.Command(context.Background(), domain.Command{Type: domain.CommandClearFault})
	frames = run(g, 1000)
	a = analysis.RMS(series(frames, domain.KeyVA))
	b = analysis.RMS(series(frames, domain.KeyVB))
	if math.Abs(a-b) > 1 {
		t.Fatalf("expected balanced phases after clear, a=%.1f b=%.1f", a, b)
	}
}

func TestGeneratorWaveformOverride(t *testing.T) {
	g := quietGenerator(1000)
	_ = g.Command(context.Background(), domain.Command{
		Type:     domain.CommandInjectWaveform,
		Duration: 0.5,
		Params:   map[string]float64{"freq": 50, "amplitude": 100},
	})
	f := g.Step()
	if f.ValueOr(domain.KeyFrequency, 0) != 50 {
		t.Fatalf("override frequency not applied: %v", f.ValueOr(domain.KeyFrequency, 0))
	}
	frames := run(g, 400)
	if peak := maxAbs(series(frames, domain.KeyVA)); peak > 106 || peak < 95 {
		t.Fatalf("override amplitude not applied, peak %.1f", peak)
	}
}

func TestGeneratorUnknownCommand(t *testing.T) {
	g := quietGenerator(50)
	if err := g.Command(context.Background(), domain.Command{Type: "melt"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestSeededNoiseIsDeterministic(t *testing.T) {
	a := NewGenerator(Config{Rate: 100, Seed: 7})
	b := NewGenerator(Config{Rate: 100, Seed: 7})
	for i := 0; i < 10; i++ {
		if a.Step().ValueOr(domain.KeyVA, 0) != b.Step().ValueOr(domain.KeyVA, 0) {
			t.Fatalf("seeded generators diverged at step %d", i)
		}
	}
}

func TestCollectorStreams(t *testing.T) {
	c := NewCollector(Config{Rate: 200})
	out := make(chan *domain.Frame, 8)
	if err := c.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(out); err == nil {
		t.Fatalf("expected second start to fail")
	}
	select {
	case f := <-out:
		if !f.Has(domain.KeyVA) {
			t.Fatalf("frame missing v_an")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame from demo collector")
	}
	if err := c.Command(context.Background(), domain.Command{Type: domain.CommandPhaseJump, Value: 30}); err != nil {
		t.Fatalf("command: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func maxAbs(x []float64) float64 {
	var m float64
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
