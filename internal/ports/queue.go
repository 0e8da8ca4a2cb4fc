package ports

import "github.com/ghalamif/GridBench/internal/domain"

type QueuedFrame struct {
	ID    WALEntryID
	Frame *domain.Frame
}

// FrameQueue hands frames to the single ingest consumer in arrival order.
type FrameQueue interface {
	Enqueue(id WALEntryID, f *domain.Frame) bool
	DequeueBatch(max int) []QueuedFrame
	Len() int
}
