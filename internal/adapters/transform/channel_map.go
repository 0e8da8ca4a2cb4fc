package transform

import (
	"fmt"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// Mapping renames one raw simulator channel and scales its value.
type Mapping struct {
	Key   string  `yaml:"key"`
	Scale float64 `yaml:"scale"`
}

// ChannelMap turns raw source keys (UserFloat1, ...) into canonical frame
// channels. ts is never remapped and unmapped keys pass through unchanged.
type ChannelMap struct {
	table   map[string]Mapping
	version uint16
}

func NewChannelMap(table map[string]Mapping, version uint16) (*ChannelMap, error) {
	targets := make(map[string]string, len(table))
	clean := make(map[string]Mapping, len(table))
	for raw, m := range table {
		if raw == domain.KeyTS || m.Key == domain.KeyTS {
			return nil, fmt.Errorf("channel map: %q cannot be remapped", domain.KeyTS)
		}
		if m.Key == "" {
			return nil, fmt.Errorf("channel map: %q has no target key", raw)
		}
		if prev, ok := targets[m.Key]; ok {
			return nil, fmt.Errorf("channel map: %q and %q both map to %q", prev, raw, m.Key)
		}
		targets[m.Key] = raw
		if m.Scale == 0 {
			m.Scale = 1
		}
		clean[raw] = m
	}
	if version == 0 {
		version = 1
	}
	return &ChannelMap{table: clean, version: version}, nil
}

func (c *ChannelMap) Transform(f *domain.Frame) (*domain.Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("channel map: nil frame")
	}
	if len(c.table) == 0 {
		return f, nil
	}
	out := &domain.Frame{
		Values:    make(map[string]float64, len(f.Values)),
		FaultType: f.FaultType,
		Source:    f.Source,
	}
	for k, v := range f.Values {
		if m, ok := c.table[k]; ok {
			out.Values[m.Key] = v * m.Scale
			continue
		}
		if _, shadowed := out.Values[k]; shadowed {
			continue
		}
		out.Values[k] = v
	}
	return out, nil
}

func (c *ChannelMap) Version() uint16 { return c.version }

// Identity is the transformer used when no channel map is configured.
type Identity struct{}

func (Identity) Transform(f *domain.Frame) (*domain.Frame, error) { return f, nil }
func (Identity) Version() uint16                                  { return 1 }

var (
	_ ports.Transformer = (*ChannelMap)(nil)
	_ ports.Transformer = Identity{}
)
