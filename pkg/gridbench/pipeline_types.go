package gridbench

import (
	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
	"github.com/ghalamif/GridBench/internal/scenario"
)

// Frame is one multi-channel telemetry sample keyed by channel name.
type Frame = domain.Frame

// Insight is an anomaly raised by the detector.
type Insight = domain.Insight

// Severity grades an insight.
type Severity = domain.Severity

// Command is a fault injection or control request for the bench source.
type Command = domain.Command

// Session is a recorded run.
type Session = domain.Session

// Event is a session timeline marker.
type Event = domain.Event

// Scenario is a timed fault plan with validation rules.
type Scenario = scenario.Scenario

// ScenarioResult is the validator outcome for a scenario run.
type ScenarioResult = scenario.Result

// QueuedFrame represents an item buffered inside the bounded queue.
type QueuedFrame = ports.QueuedFrame

// Collector streams frames from a bench source into the pipeline.
type Collector = ports.Collector

// Commander accepts fault injection commands.
type Commander = ports.Commander

// FrameQueue is the bounded, in-memory queue that decouples the collector and the detector.
type FrameQueue = ports.FrameQueue

// Transformer maps raw source channels onto canonical ones before detection.
type Transformer = ports.Transformer

// Sink consumes batches of canonical frames.
type Sink = ports.Sink

// InsightSink receives insights as the detector emits them.
type InsightSink = ports.InsightSink

// Observability emits metrics/logs about throughput, latency, and DLQ conditions.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID

// NewFrame builds a frame at ts (seconds) from channel values.
func NewFrame(ts float64, values map[string]float64) *Frame {
	return domain.NewFrame(ts, values)
}

// LoadScenario reads a JSON or YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return scenario.Load(path)
}
