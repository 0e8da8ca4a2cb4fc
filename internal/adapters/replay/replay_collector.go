package replay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
	"github.com/ghalamif/GridBench/internal/session"
)

const (
	ModeRealtime = "realtime"
	ModeFast     = "fast"
)

// Config selects a recorded session and how fast to play it back.
type Config struct {
	Path         string        `yaml:"path"`
	Mode         string        `yaml:"mode"`
	Speed        float64       `yaml:"speed"`
	FastInterval time.Duration `yaml:"fast_interval"`
	Loop         bool          `yaml:"loop"`
}

func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeRealtime
	}
	if c.Speed <= 0 {
		c.Speed = 1
	}
	if c.FastInterval <= 0 {
		c.FastInterval = 10 * time.Millisecond
	}
}

func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("replay.path is required")
	}
	if c.Mode != ModeRealtime && c.Mode != ModeFast {
		return fmt.Errorf("replay.mode must be %q or %q", ModeRealtime, ModeFast)
	}
	return nil
}

// Collector plays a session file back as a live frame stream. In realtime
// mode frames are spaced by their recorded timestamps divided by Speed; in
// fast mode they go out every FastInterval.
type Collector struct {
	cfg    Config
	sess   *domain.Session
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewCollector(cfg Config) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := session.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	rep := session.Check(s)
	for _, w := range rep.Warnings {
		log.Printf("replay: %s: %s", cfg.Path, w)
	}
	if rep.FixedInterval {
		cfg.Mode = ModeFast
	}
	log.Printf("replay: loaded %d frames, %d events from %s", len(s.Frames), len(s.Events), cfg.Path)
	return &Collector{cfg: cfg, sess: s, done: make(chan struct{})}, nil
}

// Session exposes the loaded capture, e.g. for validating it after playback.
func (c *Collector) Session() *domain.Session { return c.sess }

// Done is closed once the last frame has been sent (never, with Loop set).
func (c *Collector) Done() <-chan struct{} { return c.done }

func (c *Collector) Start(out chan<- *domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("replay collector already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.play(ctx, out); err != nil {
				return
			}
			if !c.cfg.Loop {
				close(c.done)
				log.Printf("replay: finished %s", c.cfg.Path)
				return
			}
		}
	}()
	return nil
}

func (c *Collector) play(ctx context.Context, out chan<- *domain.Frame) error {
	frames := c.sess.Frames
	t0 := frames[0].TS()
	start := time.Now()
	for i, f := range frames {
		var wait time.Duration
		if c.cfg.Mode == ModeRealtime {
			due := time.Duration((f.TS() - t0) / c.cfg.Speed * float64(time.Second))
			wait = due - time.Since(start)
		} else if i > 0 {
			wait = c.cfg.FastInterval
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- f:
		}
	}
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
	return nil
}

var _ ports.Collector = (*Collector)(nil)
