package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analytic returns the analytic signal x + j*H{x} computed in the frequency
// domain: negative frequencies zeroed, positive ones doubled.
func Analytic(x []float64) []complex128 {
	n := len(x)
	if n == 0 {
		return nil
	}
	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeffs := fft.Coefficients(nil, seq)

	if n%2 == 0 {
		for i := 1; i < n/2; i++ {
			coeffs[i] *= 2
		}
		for i := n/2 + 1; i < n; i++ {
			coeffs[i] = 0
		}
	} else {
		for i := 1; i < (n+1)/2; i++ {
			coeffs[i] *= 2
		}
		for i := (n + 1) / 2; i < n; i++ {
			coeffs[i] = 0
		}
	}

	out := fft.Sequence(nil, coeffs)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// unwrap removes 2π jumps between consecutive phase samples.
func unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	var correction float64
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		dd := math.Mod(d+math.Pi, 2*math.Pi)
		if dd < 0 {
			dd += 2 * math.Pi
		}
		dd -= math.Pi
		if dd == -math.Pi && d > 0 {
			dd = math.Pi
		}
		if math.Abs(d) >= math.Pi {
			correction += dd - d
		}
		out[i] = phase[i] + correction
	}
	return out
}

func phaseOf(z []complex128) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = cmplx.Phase(v)
	}
	return out
}
