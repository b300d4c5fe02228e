package protocol

// DefaultChannels is the number of output relays on the HVPS board.
const DefaultChannels = 8

// ChannelState is the state of one output channel as reported by the board.
type ChannelState int

const (
	Unknown      ChannelState = -1
	Shorted      ChannelState = 0
	Switching    ChannelState = 1
	SwitchingAlt ChannelState = 2
	HighZ        ChannelState = 3
)

// ParseChannelState maps one character of the telemetry channel field to a state.
func ParseChannelState(c byte) ChannelState {
	switch c {
	case '0':
		return Shorted
	case '1':
		return Switching
	case '2':
		return SwitchingAlt
	case '3':
		return HighZ
	default:
		return Unknown
	}
}

// Next returns the state a toggle command requests for a channel currently in s.
// Shorted goes to Switching, both switching states go to HighZ, and everything
// else (HighZ, Unknown) goes back to Shorted.
func (s ChannelState) Next() ChannelState {
	switch s {
	case Shorted:
		return Switching
	case Switching, SwitchingAlt:
		return HighZ
	default:
		return Shorted
	}
}

// IsSwitching reports whether the channel is in either switching state.
func (s ChannelState) IsSwitching() bool {
	return s == Switching || s == SwitchingAlt
}

// Valid reports whether s is one of the four states the board reports.
func (s ChannelState) Valid() bool {
	return s >= Shorted && s <= HighZ
}

// Digit returns the wire character for s, or '?' for Unknown.
func (s ChannelState) Digit() byte {
	if !s.Valid() {
		return '?'
	}
	return byte('0' + s)
}

func (s ChannelState) String() string {
	switch s {
	case Shorted:
		return "0V shorted"
	case Switching:
		return "Switching"
	case SwitchingAlt:
		return "Switching (alt)"
	case HighZ:
		return "High Z"
	default:
		return "Unknown"
	}
}
