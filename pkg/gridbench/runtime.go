package gridbench

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/GridBench/internal/adapters/demo"
	"github.com/ghalamif/GridBench/internal/adapters/insightlog"
	"github.com/ghalamif/GridBench/internal/adapters/mqtt"
	"github.com/ghalamif/GridBench/internal/adapters/observability"
	"github.com/ghalamif/GridBench/internal/adapters/opalrt"
	"github.com/ghalamif/GridBench/internal/adapters/opcua"
	"github.com/ghalamif/GridBench/internal/adapters/queue"
	"github.com/ghalamif/GridBench/internal/adapters/replay"
	"github.com/ghalamif/GridBench/internal/adapters/sink"
	"github.com/ghalamif/GridBench/internal/adapters/transform"
	"github.com/ghalamif/GridBench/internal/adapters/wal"
	"github.com/ghalamif/GridBench/internal/app/config"
	"github.com/ghalamif/GridBench/internal/app/pipeline"
	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/insight"
	"github.com/ghalamif/GridBench/internal/ports"
	"github.com/ghalamif/GridBench/internal/scenario"
	"github.com/ghalamif/GridBench/internal/session"
	"github.com/ghalamif/GridBench/internal/watchdog"
)

// RuntimeOption customizes the dependencies used by BenchRuntime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	commander     Commander
	sinks         []Sink
	insightSinks  []InsightSink
	transformer   Transformer
	wal           WAL
	queue         FrameQueue
	observability Observability
	listeners     []func(Insight)
	noMetrics     bool
}

// WithCollector replaces the source selected by source.kind.
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithCommander routes injected faults somewhere other than the collector.
func WithCommander(cmd Commander) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.commander = cmd
	}
}

// WithSink adds a frame sink. Any WithSink disables the default Timescale
// frame sink; the session recorder is always attached.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithInsightSink adds an insight sink next to the configured ones.
func WithInsightSink(s InsightSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.insightSinks = append(o.insightSinks, s)
		}
	}
}

// WithInsightListener registers fn to be called for every emitted insight.
func WithInsightListener(fn func(Insight)) RuntimeOption {
	return func(o *runtimeOverrides) {
		if fn != nil {
			o.listeners = append(o.listeners, fn)
		}
	}
}

// WithTransformer overrides the channel map built from config.
func WithTransformer(t Transformer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transformer = t
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithFrameQueue injects a custom queue implementation.
func WithFrameQueue(q FrameQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithoutMetricsServer skips the /metrics HTTP listener, e.g. for one-shot CLI runs.
func WithoutMetricsServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noMetrics = true
	}
}

// ScenarioReport is the outcome of RunScenario.
type ScenarioReport struct {
	SessionPath string
	Validation  ScenarioResult
	Compliance  []ComplianceResult
}

// BenchRuntime wires up the source → WAL → queue → detector → sinks pipeline
// and exposes lifecycle hooks for embedding GridBench inside any Go service.
type BenchRuntime struct {
	cfg          *Config
	policy       ports.Policy
	obs          ports.Observability
	wal          ports.WAL
	queue        ports.FrameQueue
	collector    ports.Collector
	commander    ports.Commander
	transformer  ports.Transformer
	detector     *insight.Detector
	sinks        []ports.Sink
	insightSinks []ports.InsightSink
	recorder     *session.Recorder
	watchdog     *watchdog.Watchdog
	runner       *scenario.Runner
	db           *sql.DB
	mqtt         *mqtt.InsightPublisher
	noMetrics    bool

	mu           sync.Mutex
	started      bool
	cancel       context.CancelFunc
	metricsSrv   *http.Server
	gaugeStopCh  chan struct{}
	ingestDone   chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewBenchRuntime bootstraps the default adapters for cfg: the source picked
// by source.kind, file WAL, in-memory queue, channel map, insight detector,
// Timescale and MQTT outputs when configured, and Prometheus observability.
// RuntimeOption values override any of them.
func NewBenchRuntime(cfg *Config, opts ...RuntimeOption) (*BenchRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	var (
		walAdapter ports.WAL
		err        error
	)
	if overrides.wal != nil {
		walAdapter = overrides.wal
	} else {
		walAdapter, err = wal.NewFileWAL(cfg.WAL.Dir)
		if err != nil {
			return nil, err
		}
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	col := overrides.collector
	if col == nil {
		col, err = newSource(cfg.Source)
		if err != nil {
			return nil, err
		}
	}

	cmd := overrides.commander
	if cmd == nil {
		cmd, _ = col.(ports.Commander)
	}

	tr := overrides.transformer
	if tr == nil {
		if len(cfg.ChannelMap) > 0 {
			if tr, err = transform.NewChannelMap(cfg.ChannelMap, 1); err != nil {
				return nil, err
			}
		} else {
			tr = transform.Identity{}
		}
	}

	rt := &BenchRuntime{
		cfg:         cfg,
		policy:      cfg.Policy,
		obs:         obs,
		wal:         walAdapter,
		queue:       q,
		collector:   col,
		commander:   cmd,
		transformer: tr,
		recorder:    session.NewRecorder(cfg.Recorder),
		noMetrics:   overrides.noMetrics,
	}

	if err := rt.wireOutputs(&overrides); err != nil {
		rt.closeOutputs()
		return nil, err
	}

	detOpts := []insight.Option{
		insight.WithErrorHandler(func(err error) { obs.LogError("insight_log_failed", err) }),
		insight.WithIDSource(uuid.NewString),
	}
	if cfg.Detector.LogPath != "" {
		detOpts = append(detOpts, insight.WithLogWriter(insightlog.NewFileLog(cfg.Detector.LogPath)))
	}
	for _, fn := range overrides.listeners {
		detOpts = append(detOpts, insight.WithListener(fn))
	}
	rt.detector = insight.NewDetector(cfg.Detector, detOpts...)

	rt.watchdog = watchdog.New(cfg.Watchdog,
		watchdog.WithObservability(obs),
		watchdog.OnStale(func(age time.Duration) {
			obs.LogError("telemetry_stale", fmt.Errorf("no frames for %s", age.Round(time.Millisecond)))
		}),
		watchdog.OnResume(func() { obs.LogInfo("telemetry_resumed") }),
		watchdog.OnRateChange(func(prev, next float64) {
			obs.LogInfo("frame_rate_changed",
				ports.Field{Key: "from_hz", Value: fmt.Sprintf("%.1f", prev)},
				ports.Field{Key: "to_hz", Value: fmt.Sprintf("%.1f", next)})
		}),
	)

	rt.runner = scenario.NewRunner(cmd, scenario.WithEventSink(rt.recorder.LogEvent))
	return rt, nil
}

// wireOutputs opens the database and broker connections and assembles the
// frame and insight sink lists.
func (e *BenchRuntime) wireOutputs(o *runtimeOverrides) error {
	if len(o.sinks) > 0 {
		e.sinks = append(e.sinks, o.sinks...)
	} else if e.cfg.Timescale.Enabled() {
		db, err := sql.Open("postgres", e.cfg.Timescale.ConnString)
		if err != nil {
			return err
		}
		e.db = db
		e.sinks = append(e.sinks, sink.NewTimescaleSink(db, e.cfg.Timescale.Table))
	}
	e.sinks = append(e.sinks, e.recorder)

	if is, ok := e.obs.(ports.InsightSink); ok {
		e.insightSinks = append(e.insightSinks, is)
	}
	if e.db != nil {
		e.insightSinks = append(e.insightSinks, sink.NewInsightStore(e.db, e.cfg.Timescale.InsightTable))
	}
	if e.cfg.MQTTEnabled() {
		pub, err := mqtt.NewInsightPublisher(e.cfg.MQTT)
		if err != nil {
			return err
		}
		e.mqtt = pub
		e.insightSinks = append(e.insightSinks, pub)
	}
	e.insightSinks = append(e.insightSinks, o.insightSinks...)
	return nil
}

func newSource(src SourceConfig) (ports.Collector, error) {
	switch src.Kind {
	case config.SourceDemo, "":
		return demo.NewCollector(src.Demo), nil
	case config.SourceOPCUA:
		return opcua.NewCollector(src.OPCUA)
	case config.SourceOpalRT:
		return opalrt.NewCollector(src.OpalRT), nil
	case config.SourceReplay:
		return replay.NewCollector(src.Replay)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// Detector exposes the live insight detector for queries (Summary, Recent, ...).
func (e *BenchRuntime) Detector() *insight.Detector { return e.detector }

// Recorder exposes the session recorder.
func (e *BenchRuntime) Recorder() *session.Recorder { return e.recorder }

// TelemetryStats reports the watchdog view of the incoming stream.
func (e *BenchRuntime) TelemetryStats() watchdog.Stats { return e.watchdog.Stats(time.Now()) }

// Start begins the edge + ingest pipelines and launches the observability stack.
// It returns immediately; call Run to block on a context instead.
func (e *BenchRuntime) Start() error {
	if e == nil {
		return fmt.Errorf("bench runtime is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("bench runtime already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.ingestDone = make(chan struct{})
	go func() {
		defer close(e.ingestDone)
		_ = pipeline.RunIngestPipeline(ctx, pipeline.Ingest{
			WAL:          e.wal,
			Queue:        e.queue,
			Transformer:  e.transformer,
			Detector:     e.detector,
			Sinks:        e.sinks,
			InsightSinks: e.insightSinks,
			Policy:       e.policy,
			Obs:          e.obs,
		})
	}()

	// frames left uncommitted by the previous run go through the detector
	// before anything new is admitted
	if err := replayWALIntoQueue(ctx, e.wal, e.queue, e.policy, e.obs); err != nil {
		cancel()
		<-e.ingestDone
		return err
	}

	observe := func(_ *domain.Frame, at time.Time) { e.watchdog.Observe(at) }
	if err := pipeline.RunEdgePipeline(ctx, e.collector, e.wal, e.queue, e.policy, e.obs, observe); err != nil {
		cancel()
		<-e.ingestDone
		return err
	}
	e.cancel = cancel
	e.started = true
	go e.watchdog.Run(ctx)

	if e.cfg.Recorder.Enabled {
		e.recorder.Start("")
	}
	if !e.noMetrics {
		e.startMetrics()
	}
	e.obs.LogInfo("runtime_started", ports.Field{Key: "source", Value: e.cfg.Source.Kind})
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled
// or a finite source (session replay) has been fully ingested. It then
// attempts a graceful shutdown.
func (e *BenchRuntime) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}

	var done <-chan struct{}
	if f, ok := e.collector.(interface{ Done() <-chan struct{} }); ok {
		done = f.Done()
	}
	select {
	case <-ctx.Done():
	case <-done:
		e.waitDrained(ctx)
		e.obs.LogInfo("source_finished")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Inject sends a fault command to the source immediately.
func (e *BenchRuntime) Inject(ctx context.Context, cmd Command) error {
	if e.commander == nil {
		return fmt.Errorf("source %q does not accept commands", e.cfg.Source.Kind)
	}
	return e.runner.Inject(ctx, cmd)
}

// RunScenario records a fresh session while sc plays against the source,
// then validates the capture against sc's rules and the compliance set. The
// runtime must be started.
func (e *BenchRuntime) RunScenario(ctx context.Context, sc *Scenario) (*ScenarioReport, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if e.recorder.Recording() {
		if _, err := e.recorder.Stop(); err != nil {
			e.obs.LogError("session_save_failed", err)
		}
	}
	e.recorder.Start(sc.Name)

	runErr := e.runner.Run(ctx, sc)
	e.waitDrained(ctx)

	path, err := e.recorder.Stop()
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}

	sess, err := session.Load(path)
	if err != nil {
		return nil, err
	}
	return &ScenarioReport{
		SessionPath: path,
		Validation:  scenario.Validate(sess, sc.Validation),
		Compliance:  EvaluateCompliance(sess),
	}, nil
}

// waitDrained polls until every admitted frame has been committed.
func (e *BenchRuntime) waitDrained(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for {
		st := e.wal.Stats()
		if e.queue.Len() == 0 && st.OldestUncommitted > st.LatestAppended {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			e.obs.LogError("drain_timeout", fmt.Errorf("queue=%d uncommitted_from=%d", e.queue.Len(), st.OldestUncommitted))
			return
		case <-ticker.C:
		}
	}
}

// Shutdown stops the source and pipelines, saves any open recording and
// closes the metrics server, broker and DB connection. Later calls return the
// first result.
func (e *BenchRuntime) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() { e.shutdownErr = e.shutdown(ctx) })
	return e.shutdownErr
}

func (e *BenchRuntime) shutdown(ctx context.Context) error {
	var errs []error

	if e.collector != nil {
		if err := e.collector.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	e.mu.Lock()
	cancel, done := e.cancel, e.ingestDone
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if e.gaugeStopCh != nil {
		close(e.gaugeStopCh)
		e.gaugeStopCh = nil
	}

	if e.metricsSrv != nil {
		if err := e.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if path, err := e.recorder.Stop(); err != nil {
		errs = append(errs, err)
	} else if path != "" {
		e.obs.LogInfo("session_saved", ports.Field{Key: "path", Value: path})
	}

	errs = append(errs, e.closeOutputs())

	if c, ok := e.wal.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (e *BenchRuntime) closeOutputs() error {
	var errs []error
	if e.mqtt != nil {
		e.mqtt.Close()
		e.mqtt = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
		e.db = nil
	}
	return errors.Join(errs...)
}

func (e *BenchRuntime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if e.watchdog.Stats(time.Now()).Status == watchdog.StatusStale {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("stale"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.metricsSrv = &http.Server{
		Addr:    e.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := e.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	e.gaugeStopCh = make(chan struct{})
	go e.recordResourceGauges(e.gaugeStopCh, time.Second)
}

func (e *BenchRuntime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := e.wal.Stats()
			e.obs.SetGauge(ports.MetricWALSize, float64(stats.SizeBytes))
			e.obs.SetGauge(ports.MetricQueueLength, float64(e.queue.Len()))
		}
	}
}

// replayWALIntoQueue re-enqueues uncommitted entries, waiting for the running
// ingest loop to make room whatever the queue policy says.
func replayWALIntoQueue(ctx context.Context, walAdapter ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) error {
	stats := walAdapter.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	// Iterate holds the WAL lock, and the ingest loop needs it to commit
	// while we wait for queue room.
	var pending []ports.QueuedFrame
	err := walAdapter.Iterate(start, func(id ports.WALEntryID, f *domain.Frame) error {
		pending = append(pending, ports.QueuedFrame{ID: id, Frame: f})
		return nil
	})
	if err != nil {
		return err
	}

	var replayed int
	for _, item := range pending {
		for !q.Enqueue(item.ID, item.Frame) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}
		replayed++
	}
	if replayed > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "frames", Value: replayed},
			ports.Field{Key: "from_id", Value: start})
	}
	return nil
}
