package demo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

var ErrUnknownCommand = errors.New("demo: unknown command")

// Collector paces a Generator with a wall-clock ticker.
type Collector struct {
	gen    *Generator
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewCollector(cfg Config) *Collector {
	return &Collector{gen: NewGenerator(cfg)}
}

func (c *Collector) Start(out chan<- *domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("demo collector already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	interval := time.Duration(c.gen.dt * float64(time.Second))
	log.Printf("demo: streaming synthetic frames every %s", interval)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- c.gen.Step():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
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

func (c *Collector) Command(ctx context.Context, cmd domain.Command) error {
	if err := c.gen.Command(ctx, cmd); err != nil {
		return err
	}
	log.Printf("demo: applied %s", cmd.Type)
	return nil
}

var (
	_ ports.Collector = (*Collector)(nil)
	_ ports.Commander = (*Collector)(nil)
)
