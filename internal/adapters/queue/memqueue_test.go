package queue

import (
	"testing"

	"github.com/ghalamif/GridBench/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	f1 := domain.NewFrame(0.1, nil)
	f2 := domain.NewFrame(0.2, nil)

	if !q.Enqueue(1, f1) || !q.Enqueue(2, f2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Frame.TS() != 0.1 {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(5) != nil {
		t.Fatalf("expected nil batch from empty queue")
	}
}

func TestMemQueueCapacityAndWrap(t *testing.T) {
	q := NewMemQueue(2)
	f := domain.NewFrame(1, nil)

	if !q.Enqueue(1, f) || !q.Enqueue(2, f) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, f) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, f) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}

	batch := q.DequeueBatch(0)
	if len(batch) != 2 || batch[0].ID != 2 || batch[1].ID != 4 {
		t.Fatalf("expected ids [2 4] across wrap, got %+v", batch)
	}
}

func TestMemQueueEvictOldest(t *testing.T) {
	q := NewMemQueue(2)
	f := domain.NewFrame(1, nil)
	if _, ok := q.EvictOldest(); ok {
		t.Fatalf("evict on empty queue should report false")
	}
	q.Enqueue(1, f)
	q.Enqueue(2, f)

	old, ok := q.EvictOldest()
	if !ok || old.ID != 1 {
		t.Fatalf("expected to evict id 1, got %+v ok=%v", old, ok)
	}
	if !q.Enqueue(3, f) || q.Len() != 2 {
		t.Fatalf("expected room after eviction, len=%d", q.Len())
	}
}
