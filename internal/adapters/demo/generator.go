package demo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

const (
	phaseShift = 2 * math.Pi / 3
	currentRMS = 5.0
	currentLag = 0.1
)

// Config shapes the synthetic grid-forming inverter.
type Config struct {
	Rate        float64 `yaml:"rate_hz"`
	VoltageRMS  float64 `yaml:"voltage_rms"`
	Frequency   float64 `yaml:"frequency_hz"`
	Noise       float64 `yaml:"noise"`
	Seed        uint64  `yaml:"seed"`
	AutoProfile bool    `yaml:"auto_profile"`
}

func (c *Config) ApplyDefaults() {
	if c.Rate <= 0 {
		c.Rate = 50
	}
	if c.VoltageRMS <= 0 {
		c.VoltageRMS = 120
	}
	if c.Frequency <= 0 {
		c.Frequency = 60
	}
	// negative disables noise
	if c.Noise == 0 {
		c.Noise = 0.3
	} else if c.Noise < 0 {
		c.Noise = 0
	}
}

type waveform struct {
	until     float64
	freq      float64
	amplitude float64
	noise     float64
}

// Generator produces one frame per Step with a fixed sample interval and
// applies injected faults to the signal it generates.
type Generator struct {
	mu  sync.Mutex
	cfg Config
	dt  float64

	t     float64
	theta float64
	vn    distuv.Normal
	in    distuv.Normal

	fault      string
	faultStart float64
	faultEnd   float64
	sagScale   float64
	freqOffset float64
	phaseJump  float64
	unbalance  [3]float64
	override   *waveform
}

func NewGenerator(cfg Config) *Generator {
	cfg.ApplyDefaults()
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Generator{
		cfg:       cfg,
		dt:        1 / cfg.Rate,
		vn:        distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		in:        distuv.Normal{Mu: 0, Sigma: 0.02, Src: src},
		unbalance: [3]float64{1, 1, 1},
	}
}

// Step advances the clock by one sample interval and returns the new frame.
func (g *Generator) Step() *domain.Frame {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.t
	freq := g.cfg.Frequency + 0.1*math.Sin(ts*0.5)
	vScale := 1.0

	if g.fault != "" && ts >= g.faultEnd {
		g.fault = ""
		g.freqOffset = 0
	}
	switch g.fault {
	case domain.CommandSag:
		vScale = g.sagScale
	case domain.CommandDrift:
		span := math.Max(g.faultEnd-g.faultStart, 0.1)
		freq += g.freqOffset * math.Min(1, (ts-g.faultStart)/span)
	case "":
		if g.cfg.AutoProfile {
			if ts >= 4 && ts <= 6 {
				freq += 2
			}
			if ts >= 7 && ts <= 8 {
				vScale = 0.6
			}
		}
	}

	noise := g.cfg.Noise
	vPeak := g.cfg.VoltageRMS * math.Sqrt2 * vScale
	if g.override != nil {
		if ts > g.override.until {
			g.override = nil
		} else {
			freq = g.override.freq
			vPeak = g.override.amplitude
			noise = g.override.noise
		}
	}

	theta := g.theta + g.phaseJump
	iPeak := currentRMS * math.Sqrt2
	values := map[string]float64{
		domain.KeyFrequency: freq,
	}
	vKeys := [3]string{domain.KeyVA, domain.KeyVB, domain.KeyVC}
	iKeys := [3]string{domain.KeyIA, domain.KeyIB, domain.KeyIC}
	var p float64
	for k := 0; k < 3; k++ {
		ph := theta - float64(k)*phaseShift
		v := vPeak * g.unbalance[k] * math.Sin(ph)
		v += vPeak * 0.03 * math.Sin(5*ph)
		v += vPeak * 0.02 * math.Sin(7*ph)
		if noise > 0 {
			v += noise * g.vn.Rand()
		}
		i := iPeak * math.Sin(ph-currentLag)
		if g.cfg.Noise > 0 {
			i += g.in.Rand()
		}
		values[vKeys[k]] = v
		values[iKeys[k]] = i
		p += v * i
	}
	values[domain.KeyPower] = p / 1000

	f := domain.NewFrame(ts, values)
	f.Source = "demo"
	if g.fault != "" {
		f.FaultType = g.fault
	}

	g.theta = math.Mod(g.theta+2*math.Pi*freq*g.dt, 2*math.Pi)
	g.t += g.dt
	return f
}

func param(cmd domain.Command, key string, def float64) float64 {
	if v, ok := cmd.Params[key]; ok {
		return v
	}
	return def
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Command applies a fault to the generated signal.
func (g *Generator) Command(_ context.Context, cmd domain.Command) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch cmd.Type {
	case domain.CommandSag:
		g.startFault(cmd.Type, orDefault(cmd.Duration, 0.5))
		g.sagScale = orDefault(cmd.Value, 0.5)
	case domain.CommandDrift:
		g.startFault(cmd.Type, orDefault(cmd.Duration, 2))
		g.freqOffset = orDefault(cmd.Value, 2)
	case domain.CommandPhaseJump:
		g.phaseJump = orDefault(cmd.Value, 15) * math.Pi / 180
	case domain.CommandUnbalance:
		g.unbalance = [3]float64{param(cmd, "a", 1), param(cmd, "b", 0.9), param(cmd, "c", 1.1)}
	case domain.CommandInjectWaveform:
		g.override = &waveform{
			until:     g.t + orDefault(cmd.Duration, 1),
			freq:      param(cmd, "freq", 60),
			amplitude: param(cmd, "amplitude", 170),
			noise:     param(cmd, "noise", 0),
		}
	case domain.CommandClearFault:
		g.fault = ""
		g.freqOffset = 0
		g.phaseJump = 0
		g.unbalance = [3]float64{1, 1, 1}
		g.override = nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

func (g *Generator) startFault(kind string, duration float64) {
	g.fault = kind
	g.faultStart = g.t
	g.faultEnd = g.t + duration
}

var _ ports.Commander = (*Generator)(nil)
