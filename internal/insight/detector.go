package insight

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ghalamif/GridBench/internal/analysis"
	"github.com/ghalamif/GridBench/internal/domain"
)

const nominalSpacingDeg = 120.0

// LogWriter persists the full insight list.
type LogWriter interface {
	WriteInsights(insights []domain.Insight) error
}

// Option customises a Detector.
type Option func(*Detector)

// WithLogWriter rewrites the insight log through w after every emission.
func WithLogWriter(w LogWriter) Option {
	return func(d *Detector) { d.log = w }
}

// WithListener receives each emitted insight after the detector state is updated.
func WithListener(fn func(domain.Insight)) Option {
	return func(d *Detector) {
		if fn != nil {
			d.listeners = append(d.listeners, fn)
		}
	}
}

// WithErrorHandler receives log persistence failures.
func WithErrorHandler(fn func(error)) Option {
	return func(d *Detector) { d.onError = fn }
}

// WithThresholds overrides the severity grading levels.
func WithThresholds(t Thresholds) Option {
	return func(d *Detector) { d.grades = t }
}

// WithIDSource assigns an id to each emitted insight.
func WithIDSource(fn func() string) Option {
	return func(d *Detector) { d.newID = fn }
}

// WithClock sets the time source used to stamp frames that carry no "ts".
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// Detector turns a stream of frames into debounced insights. Update must be
// called from a single goroutine in arrival order; the query methods are safe
// to call concurrently with it.
type Detector struct {
	cfg    Config
	grades Thresholds

	mu         sync.RWMutex
	ts         *ring
	freq       *ring
	va, vb, vc *ring
	lastEmit   map[string]float64
	faultOn    bool
	faultStart float64
	insights   []domain.Insight

	log       LogWriter
	listeners []func(domain.Insight)
	onError   func(error)
	newID     func() string
	now       func() time.Time
}

func NewDetector(cfg Config, opts ...Option) *Detector {
	cfg.ApplyDefaults()
	d := &Detector{
		cfg:      cfg,
		grades:   DefaultThresholds,
		ts:       newRing(cfg.BufferSize),
		freq:     newRing(cfg.BufferSize),
		va:       newRing(cfg.BufferSize),
		vb:       newRing(cfg.BufferSize),
		vc:       newRing(cfg.BufferSize),
		lastEmit: make(map[string]float64),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Config returns the effective thresholds.
func (d *Detector) Config() Config { return d.cfg }

// Update buffers one frame, tracks fault transitions and runs the rules once
// enough samples are buffered. It returns the insights emitted for this frame.
func (d *Detector) Update(f *domain.Frame) []domain.Insight {
	if f == nil {
		return nil
	}
	ts, ok := f.Value(domain.KeyTS)
	if !ok {
		ts = float64(d.now().UnixNano()) / 1e9
	}

	d.mu.Lock()
	d.ts.push(ts)
	d.freq.push(f.ValueOr(domain.KeyFrequency, d.cfg.Fundamental))
	d.va.push(f.ValueOr(domain.KeyVA, 0))
	d.vb.push(f.ValueOr(domain.KeyVB, 0))
	d.vc.push(f.ValueOr(domain.KeyVC, 0))

	switch {
	case f.Faulted() && !d.faultOn:
		d.faultOn = true
		d.faultStart = ts
	case !f.Faulted() && d.faultOn:
		d.faultOn = false
	}

	var emitted []domain.Insight
	if d.ts.len() >= d.cfg.MinSamples {
		emitted = d.detectLocked(ts)
	}
	var snapshot []domain.Insight
	if len(emitted) > 0 && d.log != nil {
		snapshot = append([]domain.Insight(nil), d.insights...)
	}
	d.mu.Unlock()

	if snapshot != nil {
		if err := d.log.WriteInsights(snapshot); err != nil && d.onError != nil {
			d.onError(fmt.Errorf("persist insight log: %w", err))
		}
	}
	for _, in := range emitted {
		for _, fn := range d.listeners {
			fn(in)
		}
	}
	return emitted
}

func (d *Detector) detectLocked(ts float64) []domain.Insight {
	var out []domain.Insight
	times := d.ts.values()
	va := d.va.values()
	opts := analysis.SpectrumOptions{Fundamental: d.cfg.Fundamental, Time: times}

	if thd := analysis.THD(va, opts); thd > d.cfg.THDLimit {
		out = d.emitLocked(out, domain.Insight{
			Timestamp: ts,
			EventType: domain.InsightHarmonicBloom,
			Severity:  d.grades.THD(thd),
			Message:   fmt.Sprintf("THD %.1f%% exceeded %g%%", thd, d.cfg.THDLimit),
			Metrics:   map[string]float64{"thd": thd},
			Phase:     "A",
		})
	}

	if ph, ok := analysis.ExtractThreePhase(va, d.vb.values(), d.vc.values(), opts); ok {
		worst := math.Max(math.Abs(ph.AngleABDeg), math.Abs(ph.AngleACDeg))
		if worst > d.cfg.PhaseAngleLimit {
			dev := worst - nominalSpacingDeg
			out = d.emitLocked(out, domain.Insight{
				Timestamp: ts,
				EventType: domain.InsightPhaseImbalance,
				Severity:  d.grades.Unbalance(dev),
				Message:   fmt.Sprintf("Angle deviation %.1f° exceeds %g°", dev, d.cfg.PhaseAngleLimit-nominalSpacingDeg),
				Metrics: map[string]float64{
					"ab_angle":  ph.AngleABDeg,
					"ac_angle":  ph.AngleACDeg,
					"deviation": dev,
				},
			})
		}
	}

	n := d.cfg.UnderfreqSamples
	if d.freq.len() > n {
		recent := d.freq.last(n)
		under := true
		lowest := recent[0]
		for _, f := range recent {
			if f >= d.cfg.UnderfreqLimit {
				under = false
				break
			}
			lowest = math.Min(lowest, f)
		}
		if under {
			span := times[len(times)-1] - times[len(times)-n]
			out = d.emitLocked(out, domain.Insight{
				Timestamp: ts,
				EventType: domain.InsightFrequencyUndershoot,
				Severity:  d.grades.Frequency(lowest, d.cfg.Fundamental),
				Message:   fmt.Sprintf("f < %g Hz for %d samples (%.2fs)", d.cfg.UnderfreqLimit, n, span),
				Metrics:   map[string]float64{"freq_min": lowest},
			})
		}
	}

	if d.faultOn {
		elapsed := ts - d.faultStart
		if elapsed > d.cfg.RecoveryLimit.Seconds() {
			out = d.emitLocked(out, domain.Insight{
				Timestamp: ts,
				EventType: domain.InsightRecoveryDelay,
				Severity:  domain.SeverityWarning,
				Message:   fmt.Sprintf("Recovery > %.2fs", elapsed),
				Metrics:   map[string]float64{"elapsed": elapsed},
			})
		}
	}
	return out
}

// emitLocked applies the per-type cooldown and appends to the log.
func (d *Detector) emitLocked(out []domain.Insight, in domain.Insight) []domain.Insight {
	if last, ok := d.lastEmit[in.EventType]; ok && in.Timestamp-last < d.cfg.Debounce.Seconds() {
		return out
	}
	d.lastEmit[in.EventType] = in.Timestamp
	if d.newID != nil {
		in.ID = d.newID()
	}
	d.insights = append(d.insights, in)
	return append(out, in)
}

// Insights returns a copy of the insight log in emission order.
func (d *Detector) Insights() []domain.Insight {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Insight(nil), d.insights...)
}

// Summary counts insights by event type.
func (d *Detector) Summary() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int)
	for _, in := range d.insights {
		out[in.EventType]++
	}
	return out
}

// ByType returns the insights of one event type.
func (d *Detector) ByType(eventType string) []domain.Insight {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Insight
	for _, in := range d.insights {
		if in.EventType == eventType {
			out = append(out, in)
		}
	}
	return out
}

func (d *Detector) BySeverity(s domain.Severity) []domain.Insight {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Insight
	for _, in := range d.insights {
		if in.Severity == s {
			out = append(out, in)
		}
	}
	return out
}

// Recent returns up to n newest insights, oldest first.
func (d *Detector) Recent(n int) []domain.Insight {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := max(0, len(d.insights)-n)
	return append([]domain.Insight(nil), d.insights[start:]...)
}

func (d *Detector) CriticalCount() int {
	return len(d.BySeverity(domain.SeverityCritical))
}

// Export writes the current insight log through w.
func (d *Detector) Export(w LogWriter) error {
	if w == nil {
		return fmt.Errorf("export: nil writer")
	}
	return w.WriteInsights(d.Insights())
}

// Clear drops all buffered samples, cooldowns, fault tracking and insights,
// and rewrites the log as empty.
func (d *Detector) Clear() error {
	d.mu.Lock()
	d.ts.reset()
	d.freq.reset()
	d.va.reset()
	d.vb.reset()
	d.vc.reset()
	d.lastEmit = make(map[string]float64)
	d.faultOn = false
	d.faultStart = 0
	d.insights = nil
	d.mu.Unlock()

	if d.log != nil {
		return d.log.WriteInsights([]domain.Insight{})
	}
	return nil
}
