package transform

import (
	"testing"

	"github.com/ghalamif/GridBench/internal/domain"
)

func TestChannelMapRenamesAndScales(t *testing.T) {
	cm, err := NewChannelMap(map[string]Mapping{
		"UserFloat1": {Key: domain.KeyVA, Scale: 100},
		"UserFloat7": {Key: domain.KeyFrequency},
	}, 3)
	if err != nil {
		t.Fatalf("new channel map: %v", err)
	}

	in := domain.NewFrame(1.5, map[string]float64{"UserFloat1": 1.2, "UserFloat7": 59.9, "debug": 7})
	in.FaultType = "sag"
	out, err := cm.Transform(in)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if v, _ := out.Value(domain.KeyVA); v != 120 {
		t.Fatalf("expected scaled v_an 120, got %v", v)
	}
	if v, _ := out.Value(domain.KeyFrequency); v != 59.9 {
		t.Fatalf("expected freq 59.9 with default scale, got %v", v)
	}
	if out.TS() != 1.5 || out.ValueOr("debug", 0) != 7 || out.FaultType != "sag" {
		t.Fatalf("ts, passthrough or fault lost: %+v", out)
	}
	if out.Has("UserFloat1") {
		t.Fatalf("raw key should be replaced")
	}
	if in.Has(domain.KeyVA) {
		t.Fatalf("input frame mutated")
	}
	if cm.Version() != 3 {
		t.Fatalf("expected version 3, got %d", cm.Version())
	}
}

func TestChannelMapMappedKeyWinsOverPassthrough(t *testing.T) {
	cm, _ := NewChannelMap(map[string]Mapping{"raw": {Key: "freq"}}, 0)
	for i := 0; i < 20; i++ {
		out, _ := cm.Transform(domain.NewFrame(0, map[string]float64{"raw": 59, "freq": 1}))
		if out.ValueOr("freq", 0) != 59 {
			t.Fatalf("mapped value should win, got %v", out.ValueOr("freq", 0))
		}
	}
}

func TestChannelMapRejectsBadTables(t *testing.T) {
	bad := []map[string]Mapping{
		{"ts": {Key: "time"}},
		{"x": {Key: "ts"}},
		{"x": {}},
		{"x": {Key: "freq"}, "y": {Key: "freq"}},
	}
	for i, table := range bad {
		if _, err := NewChannelMap(table, 1); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestIdentity(t *testing.T) {
	f := domain.NewFrame(2, nil)
	out, err := Identity{}.Transform(f)
	if err != nil || out != f {
		t.Fatalf("identity should return input unchanged")
	}
}
