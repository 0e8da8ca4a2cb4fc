package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// FrameDetector consumes canonical frames and returns the insights they raise.
type FrameDetector interface {
	Update(f *domain.Frame) []domain.Insight
}

// Ingest wires the consumer side: queue -> transform -> detector -> sinks.
type Ingest struct {
	WAL          ports.WAL
	Queue        ports.FrameQueue
	Transformer  ports.Transformer
	Detector     FrameDetector
	Sinks        []ports.Sink
	InsightSinks []ports.InsightSink
	Policy       ports.Policy
	Obs          ports.Observability
}

// RunIngestPipeline drains the queue until ctx is done. A batch is committed
// to the WAL only after every sink accepted it; failed batches replay on the
// next start.
func RunIngestPipeline(ctx context.Context, in Ingest) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		batch := in.Queue.DequeueBatch(max(in.Policy.MaxBatchSize, 1))
		in.Obs.SetGauge(ports.MetricQueueLength, float64(in.Queue.Len()))
		if len(batch) == 0 {
			if !sleepCtx(ctx, idleSleep(in.Policy)) {
				return nil
			}
			continue
		}

		in.processBatch(batch)
	}
}

func (in Ingest) processBatch(batch []ports.QueuedFrame) {
	var (
		out   = make([]*domain.Frame, 0, len(batch))
		found []domain.Insight
		maxID ports.WALEntryID
	)

	for _, item := range batch {
		if item.ID > maxID {
			maxID = item.ID
		}
		f, err := in.Transformer.Transform(item.Frame)
		if err != nil {
			in.Obs.RecordDLQ(item.ID, item.Frame, err)
			continue
		}
		out = append(out, f)

		if in.Detector != nil {
			start := time.Now()
			found = append(found, in.Detector.Update(f)...)
			in.Obs.ObserveLatency(ports.MetricDetectorLatency, time.Since(start).Seconds())
		}
	}

	if len(found) > 0 {
		in.Obs.IncCounter(ports.MetricInsightsEmitted, float64(len(found)))
		for _, s := range in.InsightSinks {
			if err := s.Publish(found); err != nil {
				// insights are not replayed; the detector has already advanced
				in.Obs.LogError("insight_publish_failed", err, ports.Field{Key: "sink", Value: s.Name()})
			}
		}
	}

	if len(out) > 0 {
		start := time.Now()
		for _, s := range in.Sinks {
			if err := s.WriteBatch(out); err != nil {
				in.Obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: s.Name()})
				// keep WAL; replays later
				return
			}
		}
		in.Obs.ObserveLatency(ports.MetricSinkLatency, time.Since(start).Seconds())
		in.Obs.IncCounter(ports.MetricFramesIngested, float64(len(out)))
	}

	if err := in.WAL.Commit(maxID); err != nil {
		in.Obs.LogError("wal_commit_failed", err)
		return
	}
	in.compact()
}

func (in Ingest) compact() {
	limit := in.Policy.MaxWALSizeBytes
	if limit <= 0 {
		return
	}
	if in.WAL.Stats().SizeBytes < limit/2 {
		return
	}
	if err := in.WAL.TruncateCommitted(); err != nil {
		in.Obs.LogError("wal_compact_failed", err)
		return
	}
	size := in.WAL.Stats().SizeBytes
	in.Obs.SetGauge(ports.MetricWALSize, float64(size))
	in.Obs.LogInfo("wal_compacted", ports.Field{Key: "size_bytes", Value: size})
}
