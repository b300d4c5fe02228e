package history

// Ring is a fixed-length FIFO of float64 values backed by an index-rotated array.
// Its length never changes: every Shift drops the oldest value.
type Ring struct {
	data []float64
	head int // index of the oldest value
}

// NewRing creates a ring of the given length filled with zeros.
func NewRing(length int) *Ring {
	if length <= 0 {
		length = 1
	}
	return &Ring{data: make([]float64, length)}
}

// Len returns the number of values held, which is always the ring length.
func (r *Ring) Len() int {
	return len(r.data)
}

// Shift drops the oldest value and appends a copy of the newest.
func (r *Ring) Shift() {
	last := r.Last()
	r.data[r.head] = last
	r.head = (r.head + 1) % len(r.data)
}

// Push drops the oldest value and appends v.
func (r *Ring) Push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
}

// Last returns the newest value.
func (r *Ring) Last() float64 {
	return r.data[r.index(len(r.data)-1)]
}

// SetLast overwrites the newest value.
func (r *Ring) SetLast(v float64) {
	r.data[r.index(len(r.data)-1)] = v
}

// At returns the i-th value counting from the oldest.
func (r *Ring) At(i int) float64 {
	return r.data[r.index(i)]
}

// Values copies the ring, oldest first, into dst.
// dst is reused if it has sufficient capacity, otherwise a new slice is allocated.
func (r *Ring) Values(dst []float64) []float64 {
	if cap(dst) >= len(r.data) {
		dst = dst[:len(r.data)]
	} else {
		dst = make([]float64, len(r.data))
	}
	n := copy(dst, r.data[r.head:])
	copy(dst[n:], r.data[:r.head])
	return dst
}

func (r *Ring) index(i int) int {
	return (r.head + i) % len(r.data)
}
