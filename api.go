package gridbench

import (
	"context"

	base "github.com/ghalamif/GridBench/pkg/gridbench"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull         = base.ErrQueueFull
	ErrWALFull           = base.ErrWALFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/GridBench directly.
type (
	Config           = base.Config
	Policy           = base.Policy
	SourceConfig     = base.SourceConfig
	DemoConfig       = base.DemoConfig
	OPCUAConfig      = base.OPCUAConfig
	OPCUANodeConfig  = base.OPCUANodeConfig
	OpalRTConfig     = base.OpalRTConfig
	ReplayConfig     = base.ReplayConfig
	ChannelMapping   = base.ChannelMapping
	DetectorConfig   = base.DetectorConfig
	TimescaleConfig  = base.TimescaleConfig
	MQTTConfig       = base.MQTTConfig
	MetricsConfig    = base.MetricsConfig
	WALConfig        = base.WALConfig
	WatchdogConfig   = base.WatchdogConfig
	RecorderConfig   = base.RecorderConfig
	Flow             = base.Flow
	FlowOption       = base.FlowOption
	StreamInOption   = base.StreamInOption
	StreamOutOption  = base.StreamOutOption
	BenchRuntime     = base.BenchRuntime
	RuntimeOption    = base.RuntimeOption
	ScenarioReport   = base.ScenarioReport
	Frame            = base.Frame
	Insight          = base.Insight
	Severity         = base.Severity
	Command          = base.Command
	Session          = base.Session
	Event            = base.Event
	Scenario         = base.Scenario
	ScenarioResult   = base.ScenarioResult
	ValidationRules  = base.ValidationRules
	ComplianceResult = base.ComplianceResult
	SessionReport    = base.SessionReport
	Comparison       = base.Comparison
	FrameBatchSink   = base.FrameBatchSink
	InsightHandler   = base.InsightHandler
	Collector        = base.Collector
	Commander        = base.Commander
	Sink             = base.Sink
	InsightSink      = base.InsightSink
	Transformer      = base.Transformer
	FrameQueue       = base.FrameQueue
	WAL              = base.WAL
	Observability    = base.Observability
	Field            = base.Field
	QueuedFrame      = base.QueuedFrame
	WALEntryID       = base.WALEntryID
	WALStats         = base.WALStats
	Publisher        = base.Publisher
	PublisherConfig  = base.PublisherConfig
)

// Source kinds.
const (
	SourceDemo   = base.SourceDemo
	SourceOPCUA  = base.SourceOPCUA
	SourceOpalRT = base.SourceOpalRT
	SourceReplay = base.SourceReplay
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func NewFrame(ts float64, values map[string]float64) *Frame {
	return base.NewFrame(ts, values)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInCommander(cmd Commander) StreamInOption {
	return base.StreamInCommander(cmd)
}

func StreamInQueue(q FrameQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInWAL(w WAL) StreamInOption {
	return base.StreamInWAL(w)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutInsightSink(s InsightSink) StreamOutOption {
	return base.StreamOutInsightSink(s)
}

func StreamOutTransformer(tr Transformer) StreamOutOption {
	return base.StreamOutTransformer(tr)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn FrameBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutInsights(name string, fn InsightHandler) StreamOutOption {
	return base.StreamOutInsights(name, fn)
}

// Bench runtime and options.
func NewBenchRuntime(cfg *Config, opts ...RuntimeOption) (*BenchRuntime, error) {
	return base.NewBenchRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithCommander(cmd Commander) RuntimeOption {
	return base.WithCommander(cmd)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithInsightSink(s InsightSink) RuntimeOption {
	return base.WithInsightSink(s)
}

func WithInsightListener(fn func(Insight)) RuntimeOption {
	return base.WithInsightListener(fn)
}

func WithTransformer(tr Transformer) RuntimeOption {
	return base.WithTransformer(tr)
}

func WithWAL(w WAL) RuntimeOption {
	return base.WithWAL(w)
}

func WithFrameQueue(q FrameQueue) RuntimeOption {
	return base.WithFrameQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithoutMetricsServer() RuntimeOption {
	return base.WithoutMetricsServer()
}

// Sink adapters.
func NewCallbackSink(name string, fn FrameBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewCallbackInsightSink(name string, fn InsightHandler) InsightSink {
	return base.NewCallbackInsightSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []*Frame, func()) {
	return base.NewChannelSink(name, buffer)
}

func NewChannelInsightSink(name string, buffer int) (InsightSink, <-chan []Insight, func()) {
	return base.NewChannelInsightSink(name, buffer)
}

// Publisher for caller-produced frames.
func NewPublisher(cfg *PublisherConfig, onFrames FrameBatchSink, onInsights InsightHandler) (*Publisher, error) {
	return base.NewPublisher(cfg, onFrames, onInsights)
}

// Offline session tools.
func LoadSession(path string) (*Session, error) {
	return base.LoadSession(path)
}

func SaveSession(path string, s *Session) error {
	return base.SaveSession(path, s)
}

func CheckSession(s *Session) SessionReport {
	return base.CheckSession(s)
}

func ValidateSession(s *Session, rules ValidationRules) ScenarioResult {
	return base.ValidateSession(s, rules)
}

func EvaluateCompliance(s *Session) []ComplianceResult {
	return base.EvaluateCompliance(s)
}

func CompliancePassed(results []ComplianceResult) bool {
	return base.CompliancePassed(results)
}

func CompareSessions(ref, test *Session, key string) Comparison {
	return base.CompareSessions(ref, test, key)
}

func LoadScenario(path string) (*Scenario, error) {
	return base.LoadScenario(path)
}

// RunScenario is a shortcut for rt.RunScenario.
func RunScenario(ctx context.Context, rt *BenchRuntime, sc *Scenario) (*ScenarioReport, error) {
	return rt.RunScenario(ctx, sc)
}
