package queue

import (
	"sync"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// MemQueue is a bounded FIFO of frames backed by a ring buffer.
type MemQueue struct {
	mu    sync.Mutex
	buf   []ports.QueuedFrame
	head  int
	count int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemQueue{buf: make([]ports.QueuedFrame, capacity)}
}

// Enqueue reports false when the queue is full.
func (q *MemQueue) Enqueue(id ports.WALEntryID, f *domain.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ports.QueuedFrame{ID: id, Frame: f}
	q.count++
	return true
}

// EvictOldest removes the head entry so a newer frame can take its place.
func (q *MemQueue) EvictOldest() (ports.QueuedFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return ports.QueuedFrame{}, false
	}
	return q.popLocked(), true
}

func (q *MemQueue) popLocked() ports.QueuedFrame {
	qf := q.buf[q.head]
	q.buf[q.head] = ports.QueuedFrame{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return qf
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	if max <= 0 || max > q.count {
		max = q.count
	}
	out := make([]ports.QueuedFrame, max)
	for i := range out {
		out[i] = q.popLocked()
	}
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

var _ ports.FrameQueue = (*MemQueue)(nil)
