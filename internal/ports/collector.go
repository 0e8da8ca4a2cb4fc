package ports

import (
	"context"

	"github.com/ghalamif/GridBench/internal/domain"
)

// Collector streams frames from a bench source (OPC UA, OPAL-RT, demo, replay).
type Collector interface {
	Start(out chan<- *domain.Frame) error
	Stop() error
}

// Commander accepts fault injection and control commands. Sources that can
// be driven by a scenario implement it alongside Collector.
type Commander interface {
	Command(ctx context.Context, cmd domain.Command) error
}
