package opcua

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/GridBench/internal/domain"
)

func testCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(Config{
		Endpoint: "opc.tcp://bench:4840",
		Nodes: []NodeConfig{
			{NodeID: "ns=2;s=Va", Channel: domain.KeyVA},
			{NodeID: "ns=2;s=Freq", Channel: domain.KeyFrequency, Scale: 0.01},
		},
		Commands: map[string]string{domain.CommandSag: "ns=2;s=SagDepth"},
	})
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	c.handleMap = map[uint32]NodeConfig{1: c.cfg.Nodes[0], 2: c.cfg.Nodes[1]}
	c.epoch = time.Unix(1000, 0)
	return c
}

func item(handle uint32, v any, ts time.Time) *ua.MonitoredItemNotification {
	return &ua.MonitoredItemNotification{
		ClientHandle: handle,
		Value: &ua.DataValue{
			Value:           ua.MustVariant(v),
			ServerTimestamp: ts,
		},
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{Endpoint: "opc.tcp://x", Nodes: []NodeConfig{{NodeID: "ns=2;s=A"}}}
	cfg.ApplyDefaults()
	if cfg.Nodes[0].Channel != "ns=2;s=A" || cfg.Nodes[0].Scale != 1 {
		t.Fatalf("unexpected node defaults %+v", cfg.Nodes[0])
	}
	if cfg.Source != "opcua" || cfg.PublishInterval <= 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	dup := Config{Endpoint: "opc.tcp://x", Nodes: []NodeConfig{
		{NodeID: "a", Channel: "freq"}, {NodeID: "b", Channel: "freq"},
	}}
	if err := dup.Validate(); err == nil {
		t.Fatalf("expected duplicate channel error")
	}
	if err := (&Config{Nodes: cfg.Nodes}).Validate(); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
}

func TestMergeKeepsLatestValues(t *testing.T) {
	c := testCollector(t)

	f1 := c.merge(&ua.DataChangeNotification{MonitoredItems: []*ua.MonitoredItemNotification{
		item(1, float64(120), time.Unix(1001, 0)),
		item(2, int32(6000), time.Unix(1001, 0)),
	}})
	if f1 == nil {
		t.Fatalf("expected frame")
	}
	if f1.TS() != 1 || f1.ValueOr(domain.KeyVA, 0) != 120 || f1.ValueOr(domain.KeyFrequency, 0) != 60 {
		t.Fatalf("unexpected first frame %+v", f1.Values)
	}
	if f1.Source != "opcua" {
		t.Fatalf("unexpected source %q", f1.Source)
	}

	f2 := c.merge(&ua.DataChangeNotification{MonitoredItems: []*ua.MonitoredItemNotification{
		item(1, float32(-50), time.Unix(1002, 500_000_000)),
	}})
	if f2.TS() != 2.5 || f2.ValueOr(domain.KeyVA, 0) != -50 || f2.ValueOr(domain.KeyFrequency, 0) != 60 {
		t.Fatalf("expected merged snapshot, got %+v", f2.Values)
	}
	// earlier frames are not mutated by later merges
	if f1.ValueOr(domain.KeyVA, 0) != 120 {
		t.Fatalf("first frame mutated: %+v", f1.Values)
	}
}

func TestMergeIgnoresUnknownAndUnsupported(t *testing.T) {
	c := testCollector(t)
	f := c.merge(&ua.DataChangeNotification{MonitoredItems: []*ua.MonitoredItemNotification{
		item(9, float64(1), time.Unix(1001, 0)),
		item(1, "text", time.Unix(1001, 0)),
	}})
	if f != nil {
		t.Fatalf("expected no frame, got %+v", f.Values)
	}
}

func TestCommandRequiresConnection(t *testing.T) {
	c := testCollector(t)
	err := c.Command(context.Background(), domain.Command{Type: domain.CommandSag, Value: 0.3})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.Command(context.Background(), domain.Command{Type: domain.CommandDrift}); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

func TestNormalizeSecurityMode(t *testing.T) {
	cases := map[string]string{"sign": "Sign", "SignAndEncrypt": "SignAndEncrypt", "": "None", "weird": "None"}
	for in, want := range cases {
		if got := normalizeSecurityMode(in); got != want {
			t.Fatalf("mode %q: expected %q got %q", in, want, got)
		}
	}
}
