package gridbench

import (
	"context"
	"testing"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := testConfig(t)

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	col := &stubCollector{}
	cmd := &stubCommander{}
	sink := &stubSink{}
	insights := NewCallbackInsightSink("insights", func([]Insight) error { return nil })

	rt, err := flow.
		StreamIN(
			StreamInCollector(col),
			StreamInCommander(cmd),
			StreamInObservability(&stubObservability{}),
		).
		StreamOUT(
			StreamOutSink(sink),
			StreamOutInsightSink(insights),
			StreamOutTransformer(&stubTransformer{}),
			StreamOutObservability(&stubObservability{}),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if rt.collector != col {
		t.Fatalf("expected custom collector to be wired")
	}
	if rt.commander != cmd {
		t.Fatalf("expected custom commander to be wired")
	}
	if rt.sinks[0] != sink {
		t.Fatalf("expected custom sink to be wired")
	}
	if len(rt.insightSinks) != 1 || rt.insightSinks[0] != insights {
		t.Fatalf("expected custom insight sink to be wired, got %v", rt.insightSinks)
	}
}

func TestFlowRunUsesStreamOutOptions(t *testing.T) {
	cfg := testConfig(t)

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithoutMetricsServer()))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// Stop immediately; the stub source never produces frames.
	cancel()
	if err := flow.StreamIN(
		StreamInCollector(&stubCollector{}),
		StreamInObservability(&stubObservability{}),
	).Run(ctx,
		StreamOutCallback("discard", func([]*Frame) error { return nil }),
		StreamOutInsights("discard", func([]Insight) error { return nil }),
	); err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}

func TestNilFlow(t *testing.T) {
	var f *Flow
	if f.Config() != nil || f.StreamIN() != nil || f.Options() != nil {
		t.Fatalf("nil flow should stay nil")
	}
	if _, err := f.StreamOUT(); err == nil {
		t.Fatalf("expected error from nil flow")
	}
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
