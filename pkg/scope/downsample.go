package scope

import "github.com/chewxy/math32"

// Downsample decimates src to at most maxPoints values, converting to float32
// for drawing. It reuses dst when it has enough capacity.
func Downsample(dst []float32, src []float64, maxPoints int) []float32 {
	n := len(src)
	if maxPoints > 0 && n > maxPoints {
		n = maxPoints
	}
	if cap(dst) >= n {
		dst = dst[:0]
	} else {
		dst = make([]float32, 0, n)
	}

	if n == len(src) {
		for _, v := range src {
			dst = append(dst, float32(v))
		}
		return dst
	}

	if n == 1 {
		return append(dst, float32(src[len(src)-1]))
	}

	step := float64(len(src)-1) / float64(n-1)
	for i := range n {
		dst = append(dst, float32(src[int(float64(i)*step+0.5)]))
	}
	return dst
}

// bounds returns the finite min and max of values, or ok=false when there are none.
func bounds(values []float32) (lo, hi float32, ok bool) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, v := range values {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			continue
		}
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}
	return lo, hi, lo <= hi
}

// autoScale returns a y range covering values with a 10% margin.
// A flat series gets a range of at least minSpan around its value.
func autoScale(values []float32, minSpan float32) (lo, hi float32) {
	lo, hi, ok := bounds(values)
	if !ok {
		return 0, 1
	}
	span := hi - lo
	if span < minSpan {
		mid := (lo + hi) / 2
		lo, hi = mid-minSpan/2, mid+minSpan/2
		span = minSpan
	}
	margin := span * 0.1
	return lo - margin, hi + margin
}

// gridStep picks a 1, 2 or 5 times power of ten step giving at most maxLines divisions.
func gridStep(span float32, maxLines int) float32 {
	if span <= 0 || maxLines <= 0 {
		return 1
	}
	raw := span / float32(maxLines)
	mag := math32.Pow(10, math32.Floor(math32.Log10(raw)))
	for _, m := range []float32{1, 2, 5, 10} {
		if step := m * mag; step >= raw {
			return step
		}
	}
	return 10 * mag
}
