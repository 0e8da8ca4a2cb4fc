package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultFundamental is the nominal grid frequency in Hz.
	DefaultFundamental = 60.0
	// DefaultHarmonics is the highest harmonic order included in THD.
	DefaultHarmonics = 10

	minSpectralSamples = 16
	peakSearchBins     = 2
	fundamentalFloor   = 1e-10
)

// SpectrumOptions configures THD and phasor extraction. SampleRate wins over
// Time when both are set; zero Fundamental and Harmonics take the defaults.
type SpectrumOptions struct {
	Fundamental float64
	SampleRate  float64
	Time        []float64
	Harmonics   int
}

func (o SpectrumOptions) fundamental() float64 {
	if o.Fundamental > 0 {
		return o.Fundamental
	}
	return DefaultFundamental
}

func (o SpectrumOptions) harmonics() int {
	if o.Harmonics > 0 {
		return o.Harmonics
	}
	return DefaultHarmonics
}

// sampleRate resolves fs from the explicit rate or the mean spacing of Time.
func (o SpectrumOptions) sampleRate() (float64, bool) {
	if o.SampleRate > 0 {
		return o.SampleRate, true
	}
	dt, ok := meanStep(o.Time)
	if !ok {
		return 0, false
	}
	return 1 / dt, true
}

// meanStep is mean(diff(t)), which telescopes to the end-to-end span.
func meanStep(t []float64) (float64, bool) {
	if len(t) < 2 {
		return 0, false
	}
	dt := (t[len(t)-1] - t[0]) / float64(len(t)-1)
	if !(dt > 0) || math.IsInf(dt, 0) {
		return 0, false
	}
	return dt, true
}

// RMS is sqrt(mean(x^2)); 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}

// Hann returns the symmetric Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// windowedMagnitude returns |rFFT(x*hann)| for the non-negative bins.
func windowedMagnitude(samples []float64) []float64 {
	n := len(samples)
	w := Hann(n)
	seq := make([]float64, n)
	floats.MulTo(seq, samples, w)

	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)
	mag := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag[i] = math.Hypot(real(c), imag(c))
	}
	return mag
}

// FFT returns the single-sided, Hann-windowed amplitude spectrum. The
// frequency axis uses dt = mean(diff(time)); magnitudes are scaled by 2/n.
// Both slices are empty when fewer than two samples are given or the
// sampling interval is not positive.
func FFT(time, samples []float64) (freqs, mags []float64) {
	n := len(samples)
	if n < 2 || len(time) != n {
		return []float64{}, []float64{}
	}
	dt, ok := meanStep(time)
	if !ok {
		return []float64{}, []float64{}
	}

	mags = windowedMagnitude(samples)
	floats.Scale(1/(float64(n)*0.5), mags)

	freqs = make([]float64, len(mags))
	for i := range freqs {
		freqs[i] = float64(i) / (float64(n) * dt)
	}
	return freqs, mags
}

// THD returns total harmonic distortion as a percentage of the fundamental.
// It returns 0 for fewer than 16 samples, an unresolvable sample rate, or a
// fundamental magnitude below 1e-10.
func THD(samples []float64, opts SpectrumOptions) float64 {
	n := len(samples)
	if n < minSpectralSamples {
		return 0
	}
	fs, ok := opts.sampleRate()
	if !ok {
		return 0
	}

	mag := windowedMagnitude(samples)
	resolution := fs / float64(n)

	f0 := opts.fundamental()
	h1 := peakNear(mag, f0, resolution)
	if h1 < fundamentalFloor {
		return 0
	}

	var sumSq float64
	for k := 2; k <= opts.harmonics(); k++ {
		hf := float64(k) * f0
		if hf >= fs/2 {
			break
		}
		hk := peakNear(mag, hf, resolution)
		sumSq += hk * hk
	}
	return math.Sqrt(sumSq) / h1 * 100
}

// peakNear is the maximum magnitude within ±2 bins of the bin nearest target.
func peakNear(mag []float64, target, resolution float64) float64 {
	bin := int(math.RoundToEven(target / resolution))
	lo := max(0, bin-peakSearchBins)
	hi := min(len(mag)-1, bin+peakSearchBins)
	if lo > hi {
		return 0
	}
	return floats.Max(mag[lo : hi+1])
}
