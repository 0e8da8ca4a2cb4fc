package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ghalamif/GridBench/internal/adapters/demo"
	"github.com/ghalamif/GridBench/internal/adapters/mqtt"
	"github.com/ghalamif/GridBench/internal/adapters/opalrt"
	"github.com/ghalamif/GridBench/internal/adapters/opcua"
	"github.com/ghalamif/GridBench/internal/adapters/replay"
	"github.com/ghalamif/GridBench/internal/adapters/transform"
	"github.com/ghalamif/GridBench/internal/insight"
	"github.com/ghalamif/GridBench/internal/ports"
	"github.com/ghalamif/GridBench/internal/session"
	"github.com/ghalamif/GridBench/internal/watchdog"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceDemo   = "demo"
	SourceOPCUA  = "opcua"
	SourceOpalRT = "opalrt"
	SourceReplay = "replay"
)

type Config struct {
	Policy     ports.Policy                 `yaml:"policy"`
	Source     SourceConfig                 `yaml:"source"`
	ChannelMap map[string]transform.Mapping `yaml:"channel_map"`
	Detector   insight.Config               `yaml:"detector"`
	Timescale  TimescaleConfig              `yaml:"timescale"`
	MQTT       mqtt.Config                  `yaml:"mqtt"`
	Metrics    MetricsConfig                `yaml:"metrics"`
	WAL        WALConfig                    `yaml:"wal"`
	Watchdog   watchdog.Config              `yaml:"watchdog"`
	Recorder   session.RecorderConfig       `yaml:"recorder"`
}

// SourceConfig picks the frame source; only the block matching Kind is used.
type SourceConfig struct {
	Kind   string        `yaml:"kind"`
	Demo   demo.Config   `yaml:"demo"`
	OPCUA  opcua.Config  `yaml:"opcua"`
	OpalRT opalrt.Config `yaml:"opalrt"`
	Replay replay.Config `yaml:"replay"`
}

// TimescaleConfig is optional; an empty conn string disables the database sinks.
type TimescaleConfig struct {
	ConnString   string `yaml:"conn_string"`
	Table        string `yaml:"table"`
	InsightTable string `yaml:"insight_table"`
}

func (t TimescaleConfig) Enabled() bool { return t.ConnString != "" }

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the demo-source configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// MQTTEnabled reports whether insights should be mirrored to a broker.
func (c *Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }

func (c *Config) applyDefaults() {
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
	if c.Source.Kind == "" {
		c.Source.Kind = SourceDemo
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "frames"
	}
	if c.Timescale.InsightTable == "" {
		c.Timescale.InsightTable = "insights"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}

	c.Source.Demo.ApplyDefaults()
	c.Source.OpalRT.ApplyDefaults()
	c.Source.Replay.ApplyDefaults()
	if c.Source.Kind == SourceOPCUA {
		c.Source.OPCUA.ApplyDefaults()
	}
	c.Detector.ApplyDefaults()
	c.Watchdog.ApplyDefaults()
	c.Recorder.ApplyDefaults()
	if c.MQTTEnabled() {
		c.MQTT.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	switch c.Policy.OnQueueFull {
	case "reject", "block", "drop":
	default:
		return fmt.Errorf("policy.on_queue_full must be reject, block or drop, got %q", c.Policy.OnQueueFull)
	}
	switch c.Policy.OnWALFull {
	case "block", "drop":
	default:
		return fmt.Errorf("policy.on_wal_full must be block or drop, got %q", c.Policy.OnWALFull)
	}
	if c.Policy.MaxQueueLen < 0 || c.Policy.MaxBatchSize < 0 {
		return fmt.Errorf("policy limits must be positive")
	}

	switch c.Source.Kind {
	case SourceDemo:
	case SourceOPCUA:
		if err := c.Source.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	case SourceOpalRT:
		if c.Source.OpalRT.Addr == "" {
			return fmt.Errorf("source.opalrt.addr is required")
		}
	case SourceReplay:
		if err := c.Source.Replay.Validate(); err != nil {
			return fmt.Errorf("replay config: %w", err)
		}
	default:
		return fmt.Errorf("source.kind must be demo, opcua, opalrt or replay, got %q", c.Source.Kind)
	}

	if _, err := transform.NewChannelMap(c.ChannelMap, 1); err != nil {
		return err
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}
	if err := c.Watchdog.Validate(); err != nil {
		return err
	}
	if err := c.Recorder.Validate(); err != nil {
		return err
	}
	if c.MQTTEnabled() {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	return nil
}
