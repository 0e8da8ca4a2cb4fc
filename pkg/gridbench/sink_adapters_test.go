package gridbench

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []*Frame
	sink := NewCallbackSink("cb", func(batch []*Frame) error {
		received = append(received, batch...)
		return nil
	})

	input := NewFrame(0.02, map[string]float64{"va": 120.5})
	input.Source = "demo"

	if err := sink.WriteBatch([]*Frame{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	got := received[0]
	if got == input {
		t.Fatalf("expected the callback to get a copy")
	}
	if got.TS() != 0.02 || got.Source != "demo" || got.ValueOr("va", 0) != 120.5 {
		t.Fatalf("mismatched frame payload: %+v", got)
	}

	got.Set("va", 0)
	if input.ValueOr("va", 0) != 120.5 {
		t.Fatalf("callback mutation leaked into the pipeline frame")
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if sink.Name() != "callback" {
		t.Fatalf("unexpected default name %q", sink.Name())
	}
	if err := sink.WriteBatch([]*Frame{NewFrame(0, nil)}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewCallbackInsightSink(t *testing.T) {
	var got []Insight
	s := NewCallbackInsightSink("", func(batch []Insight) error {
		got = append(got, batch...)
		return nil
	})
	if err := s.Publish(nil); err != nil {
		t.Fatalf("empty publish: %v", err)
	}
	if err := s.Publish([]Insight{{EventType: "Phase Imbalance", Severity: "critical"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(got) != 1 || got[0].EventType != "Phase Imbalance" {
		t.Fatalf("unexpected insights %+v", got)
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := NewFrame(1.5, map[string]float64{"frequency": 59.9})
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]*Frame{input})
	}()

	var batch []*Frame
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].ValueOr("frequency", 0) != 59.9 {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]*Frame{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelSinkCloseReleasesBlockedWriter(t *testing.T) {
	sink, _, closeFn := NewChannelInsightSink("", 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.Publish([]Insight{{EventType: "Harmonic Bloom"}})
	}()

	time.Sleep(20 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked writer was not released")
	}
}
