package analysis

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	phasorFilterOrder = 4
	minBandwidthHz    = 5.0
	bandwidthFraction = 0.15

	balancedSpacingDeg  = 120.0
	balanceToleranceDeg = 15.0
)

// Phasor is the RMS magnitude, angle and instantaneous frequency of one channel.
type Phasor struct {
	Magnitude float64 `json:"magnitude"`
	AngleDeg  float64 `json:"angle_deg"`
	AngleRad  float64 `json:"angle_rad"`
	FreqHz    float64 `json:"instantaneous_freq"`
}

// ThreePhasePhasors holds per-phase phasors and relative angles of B and C to A.
type ThreePhasePhasors struct {
	A          Phasor  `json:"a"`
	B          Phasor  `json:"b"`
	C          Phasor  `json:"c"`
	AngleABDeg float64 `json:"ab_angle"`
	AngleACDeg float64 `json:"ac_angle"`
	Balanced   bool    `json:"balanced"`
}

// ExtractPhasor band-passes samples around the fundamental (zero phase,
// order-4 Butterworth, bandwidth max(5 Hz, 15 % of f0)), takes the analytic
// signal and reports magnitude = mean envelope / √2, the angle at the middle
// sample in [0, 2π) and the median instantaneous frequency.
//
// ok is false for fewer than 16 samples or an unresolvable sample rate. When
// the band is degenerate for the sample rate, or the record is too short to
// pad, the unfiltered samples are used.
func ExtractPhasor(samples []float64, opts SpectrumOptions) (Phasor, bool) {
	n := len(samples)
	if n < minSpectralSamples {
		return Phasor{}, false
	}
	fs, ok := opts.sampleRate()
	if !ok {
		return Phasor{}, false
	}

	sig := bandpassAround(samples, opts.fundamental(), fs)
	analytic := Analytic(sig)

	env := make([]float64, n)
	for i, z := range analytic {
		env[i] = cmplx.Abs(z)
	}
	phase := unwrap(phaseOf(analytic))

	dt := 1 / fs
	inst := make([]float64, n-1)
	for i := 1; i < n; i++ {
		inst[i-1] = (phase[i] - phase[i-1]) / (2 * math.Pi * dt)
	}

	angle := math.Mod(phase[n/2], 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}

	return Phasor{
		Magnitude: stat.Mean(env, nil) / math.Sqrt2,
		AngleDeg:  angle * 180 / math.Pi,
		AngleRad:  angle,
		FreqHz:    median(inst),
	}, true
}

// bandpassAround filters x around f0, falling back to a copy of x.
func bandpassAround(x []float64, f0, fs float64) []float64 {
	nyq := fs / 2
	bw := math.Max(minBandwidthHz, bandwidthFraction*f0)
	low := math.Max(1, f0-bw) / nyq
	high := math.Min(nyq-1, f0+bw) / nyq

	raw := func() []float64 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	if low >= high || high >= 1 || low <= 0 {
		return raw()
	}
	sos, ok := ButterworthBandpass(phasorFilterOrder, low, high)
	if !ok {
		return raw()
	}
	y, ok := sos.FiltFilt(x)
	if !ok {
		return raw()
	}
	return y
}

// ExtractThreePhase extracts phasors for a, b and c and reports the angles of
// B and C relative to A wrapped into (-180, 180]. The set is balanced when
// both relative angles are within 15° of ±120°. ok is false when any phase
// fails extraction.
func ExtractThreePhase(a, b, c []float64, opts SpectrumOptions) (ThreePhasePhasors, bool) {
	pa, ok := ExtractPhasor(a, opts)
	if !ok {
		return ThreePhasePhasors{}, false
	}
	pb, ok := ExtractPhasor(b, opts)
	if !ok {
		return ThreePhasePhasors{}, false
	}
	pc, ok := ExtractPhasor(c, opts)
	if !ok {
		return ThreePhasePhasors{}, false
	}

	ab := relativeAngle(pa.AngleDeg, pb.AngleDeg)
	ac := relativeAngle(pa.AngleDeg, pc.AngleDeg)
	balanced := math.Abs(math.Abs(ab)-balancedSpacingDeg) < balanceToleranceDeg &&
		math.Abs(math.Abs(ac)-balancedSpacingDeg) < balanceToleranceDeg

	return ThreePhasePhasors{
		A: pa, B: pb, C: pc,
		AngleABDeg: ab,
		AngleACDeg: ac,
		Balanced:   balanced,
	}, true
}

// relativeAngle is (to - from) mod 360, shifted into (-180, 180].
func relativeAngle(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d < 0 {
		d += 360
	}
	if d > 180 {
		d -= 360
	}
	return d
}

// median averages the two middle values for even lengths; 0 when empty.
func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}
