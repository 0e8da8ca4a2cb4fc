package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghalamif/GridBench/internal/adapters/queue"
	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

type stubTransformer struct {
	failTS float64
}

func (s stubTransformer) Transform(f *domain.Frame) (*domain.Frame, error) {
	if f.TS() == s.failTS {
		return nil, errors.New("unmappable frame")
	}
	return f.Clone(), nil
}

func (stubTransformer) Version() uint16 { return 1 }

// everyOther raises one insight for every second frame it sees.
type everyOther struct{ n int }

func (d *everyOther) Update(f *domain.Frame) []domain.Insight {
	d.n++
	if d.n%2 != 0 {
		return nil
	}
	return []domain.Insight{{Timestamp: f.TS(), EventType: domain.InsightPhaseImbalance, Severity: domain.SeverityWarning}}
}

type recordingSink struct {
	err    error
	frames []*domain.Frame
}

func (s *recordingSink) WriteBatch(frames []*domain.Frame) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frames...)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

type recordingInsightSink struct {
	insights []domain.Insight
}

func (s *recordingInsightSink) Publish(in []domain.Insight) error {
	s.insights = append(s.insights, in...)
	return nil
}

func (s *recordingInsightSink) Name() string { return "recording-insights" }

func fillWAL(t *testing.T, wal *memWAL, q *queue.MemQueue, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		f := domain.NewFrame(float64(i)/10, map[string]float64{"va": float64(i)})
		id, err := wal.Append(f)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		q.Enqueue(id, f)
	}
}

func TestProcessBatchCommitsAfterSinks(t *testing.T) {
	wal := &memWAL{}
	q := queue.NewMemQueue(16)
	fillWAL(t, wal, q, 4)

	sink := &recordingSink{}
	ins := &recordingInsightSink{}
	obs := newMockObs()
	in := Ingest{
		WAL:          wal,
		Queue:        q,
		Transformer:  stubTransformer{},
		Detector:     &everyOther{},
		Sinks:        []ports.Sink{sink},
		InsightSinks: []ports.InsightSink{ins},
		Policy:       ports.Policy{MaxBatchSize: 10},
		Obs:          obs,
	}

	in.processBatch(q.DequeueBatch(10))

	if len(sink.frames) != 4 {
		t.Fatalf("expected 4 frames written, got %d", len(sink.frames))
	}
	if len(ins.insights) != 2 {
		t.Fatalf("expected 2 insights published, got %d", len(ins.insights))
	}
	if wal.committed != 4 {
		t.Fatalf("expected commit up to 4, got %d", wal.committed)
	}
	if got := obs.counter(ports.MetricFramesIngested); got != 4 {
		t.Fatalf("frames ingested = %v", got)
	}
	if got := obs.counter(ports.MetricInsightsEmitted); got != 2 {
		t.Fatalf("insights emitted = %v", got)
	}
}

func TestProcessBatchSinkFailureKeepsWAL(t *testing.T) {
	wal := &memWAL{}
	q := queue.NewMemQueue(16)
	fillWAL(t, wal, q, 3)

	obs := newMockObs()
	in := Ingest{
		WAL:         wal,
		Queue:       q,
		Transformer: stubTransformer{},
		Sinks:       []ports.Sink{&recordingSink{err: errors.New("db down")}},
		Obs:         obs,
	}

	in.processBatch(q.DequeueBatch(10))

	if wal.committed != 0 {
		t.Fatalf("expected no commit after sink failure, got %d", wal.committed)
	}
	if len(obs.errors) != 1 {
		t.Fatalf("expected one logged error, got %d", len(obs.errors))
	}
}

func TestProcessBatchTransformFailureGoesToDLQ(t *testing.T) {
	wal := &memWAL{}
	q := queue.NewMemQueue(16)
	fillWAL(t, wal, q, 3)

	sink := &recordingSink{}
	obs := newMockObs()
	in := Ingest{
		WAL:         wal,
		Queue:       q,
		Transformer: stubTransformer{failTS: 0.3},
		Sinks:       []ports.Sink{sink},
		Obs:         obs,
	}

	in.processBatch(q.DequeueBatch(10))

	if len(obs.dlq) != 1 || obs.dlq[0] != 3 {
		t.Fatalf("expected id 3 in DLQ, got %v", obs.dlq)
	}
	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 frames written, got %d", len(sink.frames))
	}
	// the DLQ entry is still covered by the commit
	if wal.committed != 3 {
		t.Fatalf("expected commit up to 3, got %d", wal.committed)
	}
}

func TestProcessBatchCompactsPastHalfLimit(t *testing.T) {
	wal := &memWAL{}
	q := queue.NewMemQueue(16)
	fillWAL(t, wal, q, 6)

	in := Ingest{
		WAL:         wal,
		Queue:       q,
		Transformer: stubTransformer{},
		Policy:      ports.Policy{MaxWALSizeBytes: 1000},
		Obs:         newMockObs(),
	}

	in.processBatch(q.DequeueBatch(10))

	if wal.compacts != 1 {
		t.Fatalf("expected one compaction, got %d", wal.compacts)
	}
	if wal.Stats().SizeBytes != 0 {
		t.Fatalf("expected empty WAL after compaction, got %d", wal.Stats().SizeBytes)
	}
}

func TestRunIngestPipelineStopsOnCancel(t *testing.T) {
	wal := &memWAL{}
	q := queue.NewMemQueue(16)
	fillWAL(t, wal, q, 2)

	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunIngestPipeline(ctx, Ingest{
			WAL:         wal,
			Queue:       q,
			Transformer: stubTransformer{},
			Sinks:       []ports.Sink{sink},
			Policy:      ports.Policy{MaxBatchSize: 1, IdleSleep: time.Millisecond},
			Obs:         newMockObs(),
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for wal.Stats().OldestUncommitted != 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunIngestPipeline: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline did not stop")
	}
	if wal.Stats().OldestUncommitted != 3 {
		t.Fatalf("expected both frames committed, stats=%+v", wal.Stats())
	}
}
