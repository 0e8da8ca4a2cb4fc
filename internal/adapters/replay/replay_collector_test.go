package replay

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/session"
)

func writeSession(t *testing.T, n int, dt float64) string {
	t.Helper()
	s := &domain.Session{}
	for i := 0; i < n; i++ {
		s.Frames = append(s.Frames, domain.NewFrame(float64(i)*dt, map[string]float64{domain.KeyFrequency: 60}))
	}
	path := filepath.Join(t.TempDir(), "capture.json")
	if err := session.Save(path, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func drain(t *testing.T, c *Collector, out <-chan *domain.Frame) []*domain.Frame {
	t.Helper()
	var got []*domain.Frame
	for {
		select {
		case f := <-out:
			got = append(got, f)
		case <-c.Done():
			for {
				select {
				case f := <-out:
					got = append(got, f)
				default:
					return got
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("replay did not finish, got %d frames", len(got))
		}
	}
}

func TestReplayFastModeSendsAllFrames(t *testing.T) {
	c, err := NewCollector(Config{Path: writeSession(t, 20, 0.05), Mode: ModeFast, FastInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	out := make(chan *domain.Frame, 32)
	if err := c.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()

	got := drain(t, c, out)
	if len(got) != 20 || got[19].TS() != c.Session().Frames[19].TS() {
		t.Fatalf("expected 20 frames in order, got %d", len(got))
	}
}

func TestReplayRealtimeRespectsSpeed(t *testing.T) {
	// 10 frames spanning 0.45s played at 10x should take roughly 45ms
	c, err := NewCollector(Config{Path: writeSession(t, 10, 0.05), Speed: 10})
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	out := make(chan *domain.Frame, 16)
	start := time.Now()
	if err := c.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()

	got := drain(t, c, out)
	elapsed := time.Since(start)
	if len(got) != 10 {
		t.Fatalf("expected 10 frames, got %d", len(got))
	}
	if elapsed < 40*time.Millisecond {
		t.Fatalf("replay ran faster than scaled timestamps: %s", elapsed)
	}
}

func TestReplayConfigErrors(t *testing.T) {
	if _, err := NewCollector(Config{}); err == nil {
		t.Fatalf("expected missing path error")
	}
	if _, err := NewCollector(Config{Path: "x.json", Mode: "warp"}); err == nil {
		t.Fatalf("expected bad mode error")
	}
	if _, err := NewCollector(Config{Path: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestReplayStopBeforeFinish(t *testing.T) {
	c, err := NewCollector(Config{Path: writeSession(t, 100, 1)})
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	out := make(chan *domain.Frame, 1)
	if err := c.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-out
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case <-c.Done():
		t.Fatalf("done should not close when stopped early")
	default:
	}
}

func TestReplayRejectsNullFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	body := `{"meta":{},"frames":[null,{"ts":1,"v_an":120}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewCollector(Config{Path: path, Mode: ModeFast})
	if !errors.Is(err, session.ErrNullFrame) {
		t.Fatalf("expected null frame error, got %v", err)
	}
}
