package ports

import "github.com/ghalamif/GridBench/internal/domain"

// Transformer maps raw source channels onto canonical frame channels.
type Transformer interface {
	Transform(*domain.Frame) (*domain.Frame, error)
	Version() uint16
}
