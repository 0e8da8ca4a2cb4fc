package gridbench

import (
	"github.com/ghalamif/GridBench/internal/adapters/demo"
	"github.com/ghalamif/GridBench/internal/adapters/mqtt"
	"github.com/ghalamif/GridBench/internal/adapters/opalrt"
	"github.com/ghalamif/GridBench/internal/adapters/opcua"
	"github.com/ghalamif/GridBench/internal/adapters/replay"
	"github.com/ghalamif/GridBench/internal/adapters/transform"
	"github.com/ghalamif/GridBench/internal/app/config"
	"github.com/ghalamif/GridBench/internal/insight"
	"github.com/ghalamif/GridBench/internal/ports"
	"github.com/ghalamif/GridBench/internal/session"
	"github.com/ghalamif/GridBench/internal/watchdog"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// SourceConfig selects the bench source by kind.
	SourceConfig = config.SourceConfig
	// DemoConfig tunes the synthetic inverter.
	DemoConfig = demo.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a monitored node onto a frame channel.
	OPCUANodeConfig = opcua.NodeConfig
	// OpalRTConfig points at the OPAL-RT TCP bridge.
	OpalRTConfig = opalrt.Config
	// ReplayConfig replays a recorded session file.
	ReplayConfig = replay.Config
	// ChannelMapping renames and scales one raw channel.
	ChannelMapping = transform.Mapping
	// DetectorConfig holds the insight thresholds.
	DetectorConfig = insight.Config
	// TimescaleConfig configures the frame sink and insight store.
	TimescaleConfig = config.TimescaleConfig
	// MQTTConfig configures the insight publisher.
	MQTTConfig = mqtt.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
	// WatchdogConfig configures telemetry health tracking.
	WatchdogConfig = watchdog.Config
	// RecorderConfig configures session capture.
	RecorderConfig = session.RecorderConfig
)

// Source kinds accepted in SourceConfig.Kind.
const (
	SourceDemo   = config.SourceDemo
	SourceOPCUA  = config.SourceOPCUA
	SourceOpalRT = config.SourceOpalRT
	SourceReplay = config.SourceReplay
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a ready-to-run demo configuration.
func DefaultConfig() *Config {
	return config.Default()
}
