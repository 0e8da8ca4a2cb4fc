// Package watchdog tracks telemetry stream health: staleness, resumption and
// frame-rate changes.
package watchdog

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ghalamif/GridBench/internal/ports"
)

type Status string

const (
	StatusNoData  Status = "no_data"
	StatusHealthy Status = "healthy"
	StatusStale   Status = "stale"
)

type Config struct {
	Timeout       time.Duration `yaml:"timeout"`
	CheckInterval time.Duration `yaml:"check_interval"`
	RateWindow    time.Duration `yaml:"rate_window"`
	RateChange    float64       `yaml:"rate_change"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 500 * time.Millisecond
	}
	if c.RateWindow <= 0 {
		c.RateWindow = 2 * time.Second
	}
	if c.RateChange <= 0 {
		c.RateChange = 0.2
	}
}

func (c Config) Validate() error {
	if c.CheckInterval > c.Timeout {
		return errors.New("watchdog.check_interval must not exceed watchdog.timeout")
	}
	return nil
}

type Stats struct {
	Status       Status        `json:"status"`
	FrameCount   uint64        `json:"frame_count"`
	RateHz       float64       `json:"rate_hz"`
	LastFrameAge time.Duration `json:"last_frame_age"`
}

type Option func(*Watchdog)

// OnStale is called once when the stream goes stale, with the frame age.
func OnStale(fn func(age time.Duration)) Option {
	return func(w *Watchdog) { w.onStale = fn }
}

// OnResume is called when a frame arrives after a stale period.
func OnResume(fn func()) Option {
	return func(w *Watchdog) { w.onResume = fn }
}

// OnRateChange is called when the measured rate moves by more than the
// configured fraction.
func OnRateChange(fn func(prev, next float64)) Option {
	return func(w *Watchdog) { w.onRate = fn }
}

// WithObservability mirrors rate and staleness into gauges.
func WithObservability(obs ports.Observability) Option {
	return func(w *Watchdog) { w.obs = obs }
}

type Watchdog struct {
	cfg Config

	onStale  func(time.Duration)
	onResume func()
	onRate   func(prev, next float64)
	obs      ports.Observability

	mu         sync.Mutex
	last       time.Time
	stale      bool
	frames     uint64
	rateStart  time.Time
	rateCount  int
	reportedHz float64
}

func New(cfg Config, opts ...Option) *Watchdog {
	cfg.ApplyDefaults()
	w := &Watchdog{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Observe records a frame arrival at now.
func (w *Watchdog) Observe(now time.Time) {
	w.mu.Lock()
	resumed := w.stale
	w.stale = false
	w.last = now
	w.frames++

	var (
		rateReady  bool
		prev, rate float64
	)
	if w.rateStart.IsZero() {
		w.rateStart = now
		w.rateCount = 1
	} else {
		w.rateCount++
		if elapsed := now.Sub(w.rateStart); elapsed >= w.cfg.RateWindow {
			rate = float64(w.rateCount) / elapsed.Seconds()
			prev = w.reportedHz
			rateReady = true
			w.reportedHz = rate
			w.rateStart = now
			w.rateCount = 0
		}
	}
	w.mu.Unlock()

	if resumed {
		log.Printf("watchdog: telemetry resumed")
		w.setGauge(ports.MetricTelemetryStale, 0)
		if w.onResume != nil {
			w.onResume()
		}
	}
	if rateReady {
		w.setGauge(ports.MetricFrameRate, rate)
		if prev > 0 && math.Abs(rate-prev)/prev > w.cfg.RateChange {
			log.Printf("watchdog: frame rate changed %.1f -> %.1f Hz", prev, rate)
			if w.onRate != nil {
				w.onRate(prev, rate)
			}
		}
	}
}

// Check flags the stream stale once no frame has arrived for Timeout. It
// reports true only on the transition.
func (w *Watchdog) Check(now time.Time) bool {
	w.mu.Lock()
	if w.last.IsZero() || w.stale {
		w.mu.Unlock()
		return false
	}
	age := now.Sub(w.last)
	if age <= w.cfg.Timeout {
		w.mu.Unlock()
		return false
	}
	w.stale = true
	w.mu.Unlock()

	log.Printf("watchdog: telemetry stale (%s since last frame)", age.Round(time.Millisecond))
	w.setGauge(ports.MetricTelemetryStale, 1)
	if w.onStale != nil {
		w.onStale(age)
	}
	return true
}

// Run calls Check every CheckInterval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.Check(now)
		}
	}
}

// Reset forgets all history, e.g. after a source reconnect.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = time.Time{}
	w.stale = false
	w.frames = 0
	w.rateStart = time.Time{}
	w.rateCount = 0
}

func (w *Watchdog) Stats(now time.Time) Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last.IsZero() {
		return Stats{Status: StatusNoData}
	}
	st := Stats{
		Status:       StatusHealthy,
		FrameCount:   w.frames,
		RateHz:       w.reportedHz,
		LastFrameAge: now.Sub(w.last),
	}
	if w.stale {
		st.Status = StatusStale
	}
	return st
}

func (w *Watchdog) setGauge(name string, v float64) {
	if w.obs != nil {
		w.obs.SetGauge(name, v)
	}
}
