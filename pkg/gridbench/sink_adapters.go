package gridbench

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("gridbench: channel sink closed")

// FrameBatchSink is invoked with ordered batches of canonical frames. The
// frames are copies; the callback may keep or modify them.
type FrameBatchSink func([]*Frame) error

// InsightHandler is invoked with the insights raised by one ingest batch.
type InsightHandler func([]Insight) error

// NewCallbackSink adapts a FrameBatchSink into a full Sink implementation so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn FrameBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewCallbackInsightSink adapts an InsightHandler into an InsightSink.
func NewCallbackInsightSink(name string, fn InsightHandler) InsightSink {
	if name == "" {
		name = "insight-callback"
	}
	return &callbackInsightSink{name: name, fn: fn}
}

// NewChannelSink exposes frame batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []*Frame, func()) {
	if name == "" {
		name = "channel"
	}
	s := &channelSink{name: name, out: newBatchChannel[*Frame](buffer)}
	return s, s.out.ch, s.out.close
}

// NewChannelInsightSink is NewChannelSink for insights.
func NewChannelInsightSink(name string, buffer int) (InsightSink, <-chan []Insight, func()) {
	if name == "" {
		name = "insight-channel"
	}
	s := &channelInsightSink{name: name, out: newBatchChannel[Insight](buffer)}
	return s, s.out.ch, s.out.close
}

type callbackSink struct {
	name string
	fn   FrameBatchSink
}

func (s *callbackSink) WriteBatch(frames []*Frame) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(frames) == 0 {
		return nil
	}
	return s.fn(cloneFrames(frames))
}

func (s *callbackSink) Name() string { return s.name }

type callbackInsightSink struct {
	name string
	fn   InsightHandler
}

func (s *callbackInsightSink) Publish(insights []Insight) error {
	if s.fn == nil {
		return fmt.Errorf("callback insight sink %q: nil handler", s.name)
	}
	if len(insights) == 0 {
		return nil
	}
	return s.fn(append([]Insight(nil), insights...))
}

func (s *callbackInsightSink) Name() string { return s.name }

type channelSink struct {
	name string
	out  *batchChannel[*Frame]
}

func (s *channelSink) WriteBatch(frames []*Frame) error {
	if len(frames) == 0 {
		return s.out.check()
	}
	return s.out.send(cloneFrames(frames))
}

func (s *channelSink) Name() string { return s.name }

type channelInsightSink struct {
	name string
	out  *batchChannel[Insight]
}

func (s *channelInsightSink) Publish(insights []Insight) error {
	if len(insights) == 0 {
		return s.out.check()
	}
	return s.out.send(append([]Insight(nil), insights...))
}

func (s *channelInsightSink) Name() string { return s.name }

type batchChannel[T any] struct {
	mu     sync.RWMutex
	ch     chan []T
	closed chan struct{}
	once   sync.Once
}

func newBatchChannel[T any](buffer int) *batchChannel[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &batchChannel[T]{
		ch:     make(chan []T, buffer),
		closed: make(chan struct{}),
	}
}

func (b *batchChannel[T]) check() error {
	select {
	case <-b.closed:
		return ErrChannelSinkClosed
	default:
		return nil
	}
}

func (b *batchChannel[T]) send(batch []T) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(); err != nil {
		return err
	}
	select {
	case <-b.closed:
		return ErrChannelSinkClosed
	case b.ch <- batch:
		return nil
	}
}

// close releases blocked senders before closing ch, so a send never lands
// on a closed channel.
func (b *batchChannel[T]) close() {
	b.once.Do(func() {
		close(b.closed)
		b.mu.Lock()
		close(b.ch)
		b.mu.Unlock()
	})
}

func cloneFrames(frames []*Frame) []*Frame {
	out := make([]*Frame, len(frames))
	for i, f := range frames {
		out[i] = f.Clone()
	}
	return out
}
