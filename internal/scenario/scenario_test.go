package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSONSortsSteps(t *testing.T) {
	path := writeFile(t, "sag.json", `{
		"name": "sag-recovery",
		"events": [
			{"time": 2.0, "type": "clear_fault"},
			{"time": 0.5, "type": "sag", "value": 0.5}
		],
		"validation": {"voltage_sag": {"min": 50}, "recovery_time": {"max": 1.5}}
	}`)

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.Events[0].Type != domain.CommandSag || sc.Events[0].Value != 0.5 {
		t.Fatalf("expected sag first, got %+v", sc.Events[0])
	}
	if sc.Duration() != 2.0 {
		t.Fatalf("duration = %v", sc.Duration())
	}
	if sc.Validation.VoltageSag == nil || *sc.Validation.VoltageSag.Min != 50 {
		t.Fatalf("validation block not parsed: %+v", sc.Validation)
	}
	if sc.Validation.FrequencyNadir != nil {
		t.Fatalf("absent rule should stay nil")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "drift.yaml", `
name: drift
events:
  - time: 1
    type: drift
    value: -1.2
validation:
  frequency_nadir:
    min: 58.5
`)
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sc.Events) != 1 || sc.Events[0].Type != domain.CommandDrift || sc.Events[0].Value != -1.2 {
		t.Fatalf("unexpected events: %+v", sc.Events)
	}
	if *sc.Validation.FrequencyNadir.Min != 58.5 {
		t.Fatalf("unexpected validation: %+v", sc.Validation)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "bad.json", `{"name": "x", "events": [{"time": 1}]}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for step without type")
	}
	path = writeFile(t, "broken.json", `{`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

type recordingCommander struct {
	mu   sync.Mutex
	cmds []domain.Command
	err  error
}

func (r *recordingCommander) Command(_ context.Context, c domain.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
	return r.err
}

func TestRunnerDispatchesStepsInOrder(t *testing.T) {
	cmd := &recordingCommander{}
	var (
		mu     sync.Mutex
		events []string
	)
	r := NewRunner(cmd,
		WithTick(time.Millisecond),
		WithTail(10*time.Millisecond),
		WithEventSink(func(e domain.Event) {
			mu.Lock()
			events = append(events, e.Type)
			mu.Unlock()
		}),
	)
	sc := &Scenario{Name: "quick", Events: []Step{
		{Time: 0.02, Command: domain.Command{Type: domain.CommandClearFault}},
		{Time: 0, Command: domain.Command{Type: domain.CommandSag, Value: 0.5}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Run(ctx, sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(cmd.cmds) != 2 || cmd.cmds[0].Type != domain.CommandSag || cmd.cmds[1].Type != domain.CommandClearFault {
		t.Fatalf("unexpected command order: %+v", cmd.cmds)
	}
	want := []string{EventScenarioStart, domain.CommandSag, domain.CommandClearFault, EventScenarioStop}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if r.Running() {
		t.Fatalf("runner should be idle after finishing")
	}
}

func TestRunnerCancel(t *testing.T) {
	r := NewRunner(nil, WithTick(time.Millisecond))
	sc := &Scenario{Name: "long", Events: []Step{{Time: 10, Command: domain.Command{Type: domain.CommandSag}}}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := r.Run(ctx, sc); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerInject(t *testing.T) {
	cmd := &recordingCommander{err: errors.New("not connected")}
	var got domain.Event
	r := NewRunner(cmd, WithEventSink(func(e domain.Event) { got = e }))

	err := r.Inject(context.Background(), domain.Command{Type: domain.CommandPhaseJump, Value: 30})
	if err == nil {
		t.Fatalf("expected commander error to surface")
	}
	if got.Type != domain.CommandPhaseJump || len(got.Details) == 0 {
		t.Fatalf("expected manual event, got %+v", got)
	}
}
