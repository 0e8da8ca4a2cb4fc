package analysis

import (
	"math"
	"math/cmplx"
)

// Biquad is one second-order section in transposed direct form II with a0
// normalised to 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// SOS is a cascade of second-order sections.
type SOS []Biquad

// ButterworthBandpass designs a digital Butterworth band-pass of the given
// prototype order. low and high are normalised to Nyquist and must satisfy
// 0 < low < high < 1. The cascade has 2*order poles and unit gain at the
// band centre.
func ButterworthBandpass(order int, low, high float64) (SOS, bool) {
	if order < 1 || !(low > 0) || !(high < 1) || low >= high {
		return nil, false
	}

	// Pre-warp the band edges for the bilinear transform at fs = 2.
	const fs2 = 4.0
	wl := fs2 * math.Tan(math.Pi*low/2)
	wh := fs2 * math.Tan(math.Pi*high/2)
	bw := wh - wl
	w0 := math.Sqrt(wl * wh)

	sections := make(SOS, 0, order)
	for k := 0; k < order; k++ {
		// Analog low-pass prototype pole in the upper half plane or on the real axis.
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		p := cmplx.Exp(complex(0, theta))

		// Low-pass to band-pass splits each prototype pole into two.
		plp := p * complex(bw/2, 0)
		disc := cmplx.Sqrt(plp*plp - complex(w0*w0, 0))
		for _, pa := range []complex128{plp + disc, plp - disc} {
			if imag(pa) < 0 {
				continue
			}
			pd := (complex(fs2, 0) + pa) / (complex(fs2, 0) - pa)
			sections = append(sections, Biquad{
				B0: 1, B1: 0, B2: -1,
				A1: -2 * real(pd),
				A2: real(pd)*real(pd) + imag(pd)*imag(pd),
			})
		}
	}
	if len(sections) != order {
		return nil, false
	}

	// Normalise each section to unit magnitude at the digital band centre.
	wc := 2 * math.Atan(w0/fs2)
	for i := range sections {
		s := &sections[i]
		g := cmplx.Abs(s.response(wc))
		if g == 0 || math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, false
		}
		s.B0 /= g
		s.B1 /= g
		s.B2 /= g
	}
	return sections, true
}

// response evaluates the section at omega radians per sample.
func (b Biquad) response(omega float64) complex128 {
	z1 := cmplx.Exp(complex(0, -omega))
	z2 := z1 * z1
	num := complex(b.B0, 0) + complex(b.B1, 0)*z1 + complex(b.B2, 0)*z2
	den := 1 + complex(b.A1, 0)*z1 + complex(b.A2, 0)*z2
	return num / den
}

// Magnitude is |H(e^jω)| of the cascade at omega radians per sample.
func (s SOS) Magnitude(omega float64) float64 {
	h := complex(1, 0)
	for _, bq := range s {
		h *= bq.response(omega)
	}
	return cmplx.Abs(h)
}

// PadLen is the edge extension used by FiltFilt.
func (s SOS) PadLen() int {
	zeroB2, zeroA2 := 0, 0
	for _, bq := range s {
		if bq.B2 == 0 {
			zeroB2++
		}
		if bq.A2 == 0 {
			zeroA2++
		}
	}
	return 3 * (2*len(s) + 1 - min(zeroB2, zeroA2))
}

// steadyState returns the per-section initial state for a unit step input.
func (s SOS) steadyState() [][2]float64 {
	zi := make([][2]float64, len(s))
	scale := 1.0
	for i, bq := range s {
		// Solve (I - A^T) z = b[1:] - a[1:]*b0 for the 2x2 companion system.
		r0 := bq.B1 - bq.A1*bq.B0
		r1 := bq.B2 - bq.A2*bq.B0
		det := (1 + bq.A1) + bq.A2
		var z0, z1 float64
		if det != 0 {
			z0 = (r0 + r1) / det
			z1 = r1 - bq.A2*z0
		}
		zi[i] = [2]float64{scale * z0, scale * z1}
		den := 1 + bq.A1 + bq.A2
		if den != 0 {
			scale *= (bq.B0 + bq.B1 + bq.B2) / den
		} else {
			scale = 0
		}
	}
	return zi
}

// filter runs the cascade over x in place starting from state zi*x0.
func (s SOS) filter(x []float64, zi [][2]float64, x0 float64) {
	for i, bq := range s {
		z0 := zi[i][0] * x0
		z1 := zi[i][1] * x0
		for n, in := range x {
			out := bq.B0*in + z0
			z0 = bq.B1*in - bq.A1*out + z1
			z1 = bq.B2*in - bq.A2*out
			x[n] = out
		}
	}
}

// FiltFilt applies the cascade forward and backward for zero phase, using
// odd reflection at both edges and steady-state initial conditions. It
// returns false when x is not longer than the pad length.
func (s SOS) FiltFilt(x []float64) ([]float64, bool) {
	pad := s.PadLen()
	n := len(x)
	if len(s) == 0 || n <= pad {
		return nil, false
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := s.steadyState()
	s.filter(ext, zi, ext[0])
	reverse(ext)
	s.filter(ext, zi, ext[0])
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out, true
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
