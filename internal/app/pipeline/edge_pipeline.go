package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

var (
	// ErrWALFull is returned by Admit when the WAL is at capacity and
	// on_wal_full is not "block".
	ErrWALFull = errors.New("gridbench: wal full")
	// ErrQueueFull is returned by Admit when the queue rejected the frame.
	ErrQueueFull = errors.New("gridbench: queue full")
)

// FrameObserver is told about every frame the collector delivers, before it
// reaches the WAL. The runtime hooks the telemetry watchdog in here.
type FrameObserver func(f *domain.Frame, at time.Time)

// evictor is implemented by queues that can make room for newer frames.
type evictor interface {
	EvictOldest() (ports.QueuedFrame, bool)
}

// RunEdgePipeline starts col and moves its frames into the WAL and then the
// queue until ctx is done. It returns once the collector is running.
func RunEdgePipeline(ctx context.Context, col ports.Collector, wal ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability, observe FrameObserver) error {
	ch := make(chan *domain.Frame, max(pol.MaxQueueLen, 1))

	if err := col.Start(ch); err != nil {
		return err
	}

	go func() {
		for {
			var f *domain.Frame
			select {
			case <-ctx.Done():
				return
			case f = <-ch:
			}
			if f == nil {
				continue
			}
			if observe != nil {
				observe(f, time.Now())
			}
			switch err := Admit(ctx, wal, q, f, pol, obs); {
			case err == nil, errors.Is(err, ErrWALFull):
			case errors.Is(err, ErrQueueFull):
				obs.IncCounter(ports.MetricQueueDropped, 1)
			default:
				obs.LogCritical("wal_append_failed", err, ports.Field{Key: "ts", Value: f.TS()})
			}
		}
	}()

	return nil
}

// Admit makes f durable in the WAL and hands it to the queue, applying the
// full-WAL and full-queue policies.
func Admit(ctx context.Context, wal ports.WAL, q ports.FrameQueue, f *domain.Frame, pol ports.Policy, obs ports.Observability) error {
	if !waitForWALCapacity(ctx, wal, pol, obs) {
		return ErrWALFull
	}

	id, err := wal.Append(f)
	if err != nil {
		return fmt.Errorf("wal append: %w", err)
	}

	ok := enqueueWithPolicy(ctx, q, id, f, pol, obs)
	obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
	if !ok {
		return ErrQueueFull
	}
	return nil
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

// sleepCtx reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func waitForWALCapacity(ctx context.Context, wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}

	for {
		stats := wal.Stats()
		obs.SetGauge(ports.MetricWALSize, float64(stats.SizeBytes))
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			if !sleepCtx(ctx, idleSleep(pol)) {
				return false
			}
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

// enqueueWithPolicy applies on_queue_full: "block" waits for room, "reject"
// discards the new frame and "drop" evicts the oldest queued frame instead.
func enqueueWithPolicy(ctx context.Context, q ports.FrameQueue, id ports.WALEntryID, f *domain.Frame, pol ports.Policy, obs ports.Observability) bool {
	for {
		if ok := q.Enqueue(id, f); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !sleepCtx(ctx, idleSleep(pol)) {
				return false
			}
		case "drop":
			ev, ok := q.(evictor)
			if !ok {
				obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
				return false
			}
			if old, evicted := ev.EvictOldest(); evicted {
				obs.IncCounter(ports.MetricQueueDropped, 1)
				obs.LogError("queue_full_evict", fmt.Errorf("evicted frame id=%d", old.ID))
			}
		case "reject":
			obs.LogError("queue_full_reject", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
