package ports

import "github.com/ghalamif/GridBench/internal/domain"

type Sink interface {
	WriteBatch(frames []*domain.Frame) error
	Name() string
}

// InsightSink mirrors emitted insights to an external system.
type InsightSink interface {
	Publish(insights []domain.Insight) error
	Name() string
}
