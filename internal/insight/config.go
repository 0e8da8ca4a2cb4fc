package insight

import (
	"errors"
	"time"
)

// Config holds the detector thresholds. Zero values take the defaults.
type Config struct {
	BufferSize       int           `yaml:"buffer_size"`
	MinSamples       int           `yaml:"min_samples"`
	Debounce         time.Duration `yaml:"debounce"`
	Fundamental      float64       `yaml:"fundamental_hz"`
	THDLimit         float64       `yaml:"thd_limit_pct"`
	PhaseAngleLimit  float64       `yaml:"phase_angle_limit_deg"`
	UnderfreqLimit   float64       `yaml:"underfreq_limit_hz"`
	UnderfreqSamples int           `yaml:"underfreq_samples"`
	RecoveryLimit    time.Duration `yaml:"recovery_limit"`
	LogPath          string        `yaml:"log_path"`
}

func (c *Config) ApplyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 200
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 40
	}
	if c.Debounce <= 0 {
		c.Debounce = 600 * time.Millisecond
	}
	if c.Fundamental <= 0 {
		c.Fundamental = 60
	}
	if c.THDLimit <= 0 {
		c.THDLimit = 10
	}
	if c.PhaseAngleLimit <= 0 {
		c.PhaseAngleLimit = 140
	}
	if c.UnderfreqLimit <= 0 {
		c.UnderfreqLimit = 58.5
	}
	if c.UnderfreqSamples <= 0 {
		c.UnderfreqSamples = 6
	}
	if c.RecoveryLimit <= 0 {
		c.RecoveryLimit = 500 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	if c.MinSamples > c.BufferSize {
		return errors.New("min_samples must not exceed buffer_size")
	}
	if c.UnderfreqSamples >= c.BufferSize {
		return errors.New("underfreq_samples must be smaller than buffer_size")
	}
	if c.PhaseAngleLimit >= 180 {
		return errors.New("phase_angle_limit_deg must be below 180")
	}
	return nil
}
