package gridbench

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/GridBench/internal/adapters/observability"
	"github.com/ghalamif/GridBench/internal/adapters/queue"
	"github.com/ghalamif/GridBench/internal/adapters/transform"
	"github.com/ghalamif/GridBench/internal/adapters/wal"
	"github.com/ghalamif/GridBench/internal/app/pipeline"
	"github.com/ghalamif/GridBench/internal/insight"
	"github.com/ghalamif/GridBench/internal/ports"
)

var (
	// ErrQueueFull indicates the in-memory queue rejected the frame according to policy.
	ErrQueueFull = pipeline.ErrQueueFull
	// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
	ErrWALFull = pipeline.ErrWALFull
)

// PublisherConfig configures the WAL-backed publisher used by callers that
// produce frames themselves (custom bench harnesses, test rigs).
type PublisherConfig struct {
	Policy     Policy
	WAL        WALConfig
	Detector   DetectorConfig
	ChannelMap map[string]ChannelMapping
}

// applyDefaults fills in sane thresholds so callers only override what they need.
func (c *PublisherConfig) applyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/gridbench-wal"
	}
	c.Detector.ApplyDefaults()
}

func (c *PublisherConfig) validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	return c.Detector.Validate()
}

// Publisher exposes the WAL → queue → detector pipeline to external producers.
type Publisher struct {
	policy   Policy
	wal      *wal.FileWAL
	queue    ports.FrameQueue
	obs      ports.Observability
	detector *insight.Detector

	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewPublisher wires a WAL + bounded queue + detector so callers can push
// frames while reusing the durability/backpressure policies. onFrames may be
// nil; onInsights receives every insight batch.
func NewPublisher(cfg *PublisherConfig, onFrames FrameBatchSink, onInsights InsightHandler) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if onInsights == nil {
		return nil, fmt.Errorf("insight callback is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var tr ports.Transformer = transform.Identity{}
	if len(cfg.ChannelMap) > 0 {
		cm, err := transform.NewChannelMap(cfg.ChannelMap, 1)
		if err != nil {
			return nil, err
		}
		tr = cm
	}

	walAdapter, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	q := queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	obs := observability.NewPromObs()

	var sinks []ports.Sink
	if onFrames != nil {
		sinks = append(sinks, NewCallbackSink("publisher", onFrames))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pub := &Publisher{
		policy:   cfg.Policy,
		wal:      walAdapter,
		queue:    q,
		obs:      obs,
		detector: insight.NewDetector(cfg.Detector),
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}

	go func() {
		defer close(pub.doneCh)
		_ = pipeline.RunIngestPipeline(ctx, pipeline.Ingest{
			WAL:          walAdapter,
			Queue:        q,
			Transformer:  tr,
			Detector:     pub.detector,
			Sinks:        sinks,
			InsightSinks: []ports.InsightSink{NewCallbackInsightSink("publisher", onInsights)},
			Policy:       cfg.Policy,
			Obs:          obs,
		})
	}()

	if err := replayWALIntoQueue(ctx, walAdapter, q, cfg.Policy, obs); err != nil {
		cancel()
		<-pub.doneCh
		_ = walAdapter.Close()
		return nil, err
	}
	return pub, nil
}

// Publish appends the frame to the WAL and enqueues it according to policy.
func (p *Publisher) Publish(ctx context.Context, f *Frame) error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	return pipeline.Admit(ctx, p.wal, p.queue, f.Clone(), p.policy, p.obs)
}

// Detector exposes the detector for summaries and exports.
func (p *Publisher) Detector() *insight.Detector { return p.detector }

// Close stops the ingest loop, respecting the provided context, and closes
// the WAL. Frames still queued are replayed by the next publisher on the
// same WAL directory.
func (p *Publisher) Close(ctx context.Context) error {
	p.cancel()

	select {
	case <-p.doneCh:
		return p.wal.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}
