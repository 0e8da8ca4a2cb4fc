package insight

// ring is a fixed-capacity FIFO of float64 that overwrites the oldest value.
type ring struct {
	buf  []float64
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.buf[(r.head+r.size)%len(r.buf)] = v
	if r.size < len(r.buf) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) len() int { return r.size }

// values returns the buffered samples oldest first.
func (r *ring) values() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// last returns up to n newest samples, oldest first.
func (r *ring) last(n int) []float64 {
	if n > r.size {
		n = r.size
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.buf[(r.head+r.size-n+i)%len(r.buf)]
	}
	return out
}

func (r *ring) reset() {
	r.head = 0
	r.size = 0
}
