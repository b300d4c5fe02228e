package history

import "github.com/itohio/gohvps/pkg/protocol"

// DefaultLength is the number of ticks kept for charting.
const DefaultLength = 300

// History holds the sliding windows charted by the control panel: target, input
// and output voltage plus a tick-index time axis. All series always have the same
// length. History is not safe for concurrent use; it is owned by the polling loop.
type History struct {
	Target *Ring
	Input  *Ring
	Output *Ring
	Time   *Ring
}

// New creates a history of the given length. Voltages start at zero and the
// time axis at 0..length-1.
func New(length int) *History {
	if length <= 0 {
		length = DefaultLength
	}
	h := &History{
		Target: NewRing(length),
		Input:  NewRing(length),
		Output: NewRing(length),
		Time:   NewRing(length),
	}
	for i := range length {
		h.Time.Push(float64(i))
	}
	return h
}

// Len returns the length of every series.
func (h *History) Len() int {
	return h.Time.Len()
}

// Tick advances every series by one slot. Voltage series repeat their newest
// value until Record overwrites it; the time axis advances by one.
func (h *History) Tick() {
	h.Target.Shift()
	h.Input.Shift()
	h.Output.Shift()
	h.Time.Push(h.Time.Last() + 1)
}

// Record stores a decoded sample in the newest slot.
func (h *History) Record(s protocol.Sample) {
	h.Target.SetLast(s.Target)
	h.Input.SetLast(s.Input)
	h.Output.SetLast(s.Output)
}

// Series is an ordered copy of the history, oldest first.
type Series struct {
	Time   []float64
	Target []float64
	Input  []float64
	Output []float64
}

// Snapshot copies the history into dst, reusing its slices when possible.
func (h *History) Snapshot(dst Series) Series {
	dst.Time = h.Time.Values(dst.Time)
	dst.Target = h.Target.Values(dst.Target)
	dst.Input = h.Input.Values(dst.Input)
	dst.Output = h.Output.Values(dst.Output)
	return dst
}
