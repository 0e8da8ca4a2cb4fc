package session

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
)

func TestRecorderCapturesBetweenStartAndStop(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(RecorderConfig{Dir: dir, Format: "gz"})
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC) }

	r.LogFrame(domain.NewFrame(0, nil)) // not recording yet
	id := r.Start("sag-ride-through")
	if id != "session_20260301_123005" || !r.Recording() {
		t.Fatalf("unexpected session id %q", id)
	}

	f := domain.NewFrame(0.02, map[string]float64{domain.KeyFrequency: 60})
	f.Source = "demo"
	if err := r.WriteBatch([]*domain.Frame{f, domain.NewFrame(0.04, nil)}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	r.LogEvent(domain.NewEvent(0.03, domain.CommandSag, nil))

	path, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, ".json.gz") {
		t.Fatalf("unexpected path %s", path)
	}
	if r.Recording() {
		t.Fatalf("recorder should be idle after stop")
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Meta.FrameCount != 2 || len(s.Frames) != 2 || len(s.Events) != 1 {
		t.Fatalf("unexpected capture %+v", s.Meta)
	}
	if s.Meta.Scenario != "sag-ride-through" || s.Meta.Source != "demo" || s.Meta.RunID == "" {
		t.Fatalf("meta not populated: %+v", s.Meta)
	}
}

func TestRecorderIdleStop(t *testing.T) {
	r := NewRecorder(RecorderConfig{Dir: t.TempDir()})
	path, err := r.Stop()
	if path != "" || err != nil {
		t.Fatalf("expected no-op stop, got %q %v", path, err)
	}
	r.LogEvent(domain.NewEvent(1, "note", nil))
}

func TestRecorderConfigValidate(t *testing.T) {
	cfg := RecorderConfig{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil || cfg.Dir == "" {
		t.Fatalf("defaults should validate: %v", err)
	}
	if err := (RecorderConfig{Format: "xml"}).Validate(); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestCompareSessions(t *testing.T) {
	ref := sampleSession(10, 0.1)
	test := sampleSession(8, 0.1)
	test.Frames[3].Set(domain.KeyVA, 123)

	cmp := Compare(ref, test, domain.KeyVA)
	if len(cmp.Deltas) != 8 || cmp.MaxDelta != 3 {
		t.Fatalf("unexpected comparison %+v", cmp)
	}
	if math.Abs(cmp.RMSE-math.Sqrt(9.0/8)) > 1e-12 {
		t.Fatalf("unexpected rmse %v", cmp.RMSE)
	}
}
