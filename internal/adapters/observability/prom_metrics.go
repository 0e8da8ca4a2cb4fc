package observability

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// PromObs logs through the standard logger and keeps bench metrics in
// Prometheus collectors looked up by name.
type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	insights *prometheus.CounterVec
}

// NewPromObs registers the bench collectors on the default registerer.
func NewPromObs() *PromObs {
	return NewPromObsWith(prometheus.DefaultRegisterer)
}

func NewPromObsWith(reg prometheus.Registerer) *PromObs {
	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricFramesIngested,
		Help: "Frames that passed the detector and were written to every sink.",
	})
	emitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricInsightsEmitted,
		Help: "Insights emitted by the anomaly detector.",
	})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricDLQ,
		Help: "Frames sent to DLQ due to transform/sink failures.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricQueueDropped,
		Help: "Frames lost due to queue backpressure policies.",
	})
	walGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricWALSize,
		Help: "Size of WAL on disk.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricQueueLength,
		Help: "Frames buffered between collector and ingest loop.",
	})
	rate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricFrameRate,
		Help: "Observed telemetry frame rate.",
	})
	stale := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricTelemetryStale,
		Help: "1 while no frame arrived within the watchdog timeout.",
	})
	detector := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricDetectorLatency,
		Help:    "Time spent in detector updates per frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	sink := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricSinkLatency,
		Help:    "Latency from dequeued batch to sink commit.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	byType := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbench_insights_by_type_total",
		Help: "Insights by event type and severity.",
	}, []string{"event_type", "severity"})

	ingested, emitted = register(reg, ingested), register(reg, emitted)
	dlq, queueDrops = register(reg, dlq), register(reg, queueDrops)
	walGauge, queueGauge = register(reg, walGauge), register(reg, queueGauge)
	rate, stale = register(reg, rate), register(reg, stale)
	detector, sink = register(reg, detector), register(reg, sink)
	byType = register(reg, byType)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			ports.MetricFramesIngested:  ingested,
			ports.MetricInsightsEmitted: emitted,
			ports.MetricDLQ:             dlq,
			ports.MetricQueueDropped:    queueDrops,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricWALSize:        walGauge,
			ports.MetricQueueLength:    queueGauge,
			ports.MetricFrameRate:      rate,
			ports.MetricTelemetryStale: stale,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricDetectorLatency: detector,
			ports.MetricSinkLatency:     sink,
		},
		insights: byType,
	}
}

// register adds c to reg, or returns the collector a previous PromObs
// registered under the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, f *domain.Frame, err error) {
	p.IncCounter(ports.MetricDLQ, 1)
	if err != nil && f != nil {
		log.Printf("DLQ frame id=%d ts=%.6f source=%s err=%v", id, f.TS(), f.Source, err)
	}
}

// Publish breaks insights down by type and severity. The overall total is
// counted by the ingest pipeline.
func (p *PromObs) Publish(insights []domain.Insight) error {
	for _, in := range insights {
		p.insights.WithLabelValues(in.EventType, string(in.Severity)).Inc()
	}
	return nil
}

func (p *PromObs) Name() string { return "prometheus" }

var (
	_ ports.Observability = (*PromObs)(nil)
	_ ports.InsightSink   = (*PromObs)(nil)
)
