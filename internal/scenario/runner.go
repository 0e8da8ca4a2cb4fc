package scenario

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// Timeline event types emitted by the runner besides the step commands.
const (
	EventScenarioStart = "scenario_start"
	EventScenarioStop  = "scenario_stop"
)

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithTick sets how often due steps are checked (default 50ms).
func WithTick(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithTail sets how long the runner keeps going after the last step (default 1s).
func WithTail(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d >= 0 {
			r.tail = d
		}
	}
}

// WithEventSink receives every timeline event (start, steps, manual injections, stop).
func WithEventSink(fn func(domain.Event)) RunnerOption {
	return func(r *Runner) { r.onEvent = fn }
}

// WithClock overrides the wall clock used for event timestamps.
func WithClock(fn func() time.Time) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.now = fn
		}
	}
}

// Runner plays a scenario's steps into a commander at their offsets.
type Runner struct {
	cmd     ports.Commander
	tick    time.Duration
	tail    time.Duration
	onEvent func(domain.Event)
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// NewRunner builds a runner. cmd may be nil, in which case steps are only
// reported through the event sink.
func NewRunner(cmd ports.Commander, opts ...RunnerOption) *Runner {
	r := &Runner{
		cmd:  cmd,
		tick: 50 * time.Millisecond,
		tail: time.Second,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Running reports whether a scenario is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run executes sc until its last step plus the tail has elapsed or ctx is
// cancelled. Command failures are logged and do not stop the run.
func (r *Runner) Run(ctx context.Context, sc *Scenario) error {
	if sc == nil {
		return fmt.Errorf("scenario is nil")
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("scenario already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	steps := append([]Step(nil), sc.Events...)
	sortSteps(steps)

	start := r.now()
	r.emit(EventScenarioStart, map[string]any{"name": sc.Name})
	log.Printf("scenario: started %q (%d steps)", sc.Name, len(steps))

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	next := 0
	end := sc.Duration() + r.tail.Seconds()
	for {
		elapsed := r.now().Sub(start).Seconds()
		for next < len(steps) && elapsed >= steps[next].Time {
			st := steps[next]
			r.dispatch(ctx, st.Command, map[string]any{"time": st.Time, "value": st.Value})
			log.Printf("scenario: executed %s at %.2fs", st.Type, st.Time)
			next++
		}
		if next >= len(steps) && elapsed > end {
			r.emit(EventScenarioStop, map[string]any{"name": sc.Name})
			log.Printf("scenario: finished %q", sc.Name)
			return nil
		}

		select {
		case <-ctx.Done():
			r.emit(EventScenarioStop, map[string]any{"name": sc.Name, "cancelled": true})
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Inject sends a command immediately, in parallel with any running scenario.
func (r *Runner) Inject(ctx context.Context, cmd domain.Command) error {
	log.Printf("scenario: manual injection %s = %g", cmd.Type, cmd.Value)
	return r.dispatch(ctx, cmd, map[string]any{"value": cmd.Value, "manual": true})
}

func (r *Runner) dispatch(ctx context.Context, cmd domain.Command, details map[string]any) error {
	r.emit(cmd.Type, details)
	if r.cmd == nil {
		return nil
	}
	if err := r.cmd.Command(ctx, cmd); err != nil {
		log.Printf("scenario: command %s failed: %v", cmd.Type, err)
		return err
	}
	return nil
}

func (r *Runner) emit(typ string, details map[string]any) {
	if r.onEvent == nil {
		return
	}
	ts := float64(r.now().UnixNano()) / 1e9
	r.onEvent(domain.NewEvent(ts, typ, details))
}

func sortSteps(steps []Step) {
	s := Scenario{Events: steps}
	s.sortSteps()
}
