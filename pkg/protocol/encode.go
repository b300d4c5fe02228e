package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// BroadcastChannel is the reserved channel index addressing all channels at once.
const BroadcastChannel = 99

// Command holds the exact bytes of one command line sent to the board.
type Command []byte

func (c Command) String() string {
	return strings.TrimRight(string(c), "\n")
}

// Direction selects a voltage step.
type Direction int

const (
	Up Direction = iota
	Down
)

// Limits bounds the setpoints accepted by the board.
type Limits struct {
	VoltageMin   int
	VoltageMax   int
	FrequencyMin int
	FrequencyMax int
}

// DefaultLimits returns the setpoint ranges of the HVPS board.
func DefaultLimits() Limits {
	return Limits{
		VoltageMin:   0,
		VoltageMax:   400,
		FrequencyMin: 1,
		FrequencyMax: 1000,
	}
}

// Encoder formats operator intents into command lines.
type Encoder struct {
	channels int
	limits   Limits
}

// NewEncoder creates an encoder for a board with the given channel count and limits.
// A non-positive channel count selects DefaultChannels.
func NewEncoder(channels int, limits Limits) Encoder {
	if channels <= 0 {
		channels = DefaultChannels
	}
	return Encoder{channels: channels, limits: limits}
}

// Limits returns the setpoint ranges the encoder validates against.
func (e Encoder) Limits() Limits {
	return e.limits
}

// Channels returns the channel count the encoder validates against.
func (e Encoder) Channels() int {
	return e.channels
}

// VoltageStep asks the board to raise or lower the target voltage by one step.
func (e Encoder) VoltageStep(dir Direction) Command {
	if dir == Down {
		return Command("V-\n")
	}
	return Command("V+\n")
}

// VoltageAbsolute sets the target voltage.
func (e Encoder) VoltageAbsolute(volts int) (Command, error) {
	if volts < e.limits.VoltageMin || volts > e.limits.VoltageMax {
		return nil, &RangeError{Field: "voltage", Value: volts, Min: e.limits.VoltageMin, Max: e.limits.VoltageMax}
	}
	return Command("V" + strconv.Itoa(volts) + "\n"), nil
}

// FrequencyAbsolute sets the switching frequency.
func (e Encoder) FrequencyAbsolute(hz int) (Command, error) {
	if hz < e.limits.FrequencyMin || hz > e.limits.FrequencyMax {
		return nil, &RangeError{Field: "frequency", Value: hz, Min: e.limits.FrequencyMin, Max: e.limits.FrequencyMax}
	}
	return Command("F" + strconv.Itoa(hz) + "\n"), nil
}

// ChannelSet requests a specific state for one channel.
// Only Shorted, Switching and HighZ are ever sent.
func (e Encoder) ChannelSet(channel int, state ChannelState) (Command, error) {
	if channel < 0 || channel >= e.channels {
		return nil, &RangeError{Field: "channel", Value: channel, Min: 0, Max: e.channels - 1}
	}
	switch state {
	case Shorted, Switching, HighZ:
	default:
		return nil, fmt.Errorf("channel %d: state %d cannot be commanded", channel, int(state))
	}
	return Command(fmt.Sprintf("C%02d%d\n", channel, int(state))), nil
}

// ChannelToggle moves a channel to the next state of the Shorted, Switching, HighZ cycle.
func (e Encoder) ChannelToggle(channel int, current ChannelState) (Command, error) {
	return e.ChannelSet(channel, current.Next())
}

// ChannelBulk switches all channels on (activate) or shorts them all.
func (e Encoder) ChannelBulk(activate bool) Command {
	state := 0
	if activate {
		state = 1
	}
	return Command(fmt.Sprintf("C%d%d\n", BroadcastChannel, state))
}

// ParseInt parses operator free-text entry for field.
func ParseInt(field, text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &ParseError{Field: field, Text: text}
	}
	return v, nil
}

// ParseVoltage parses operator text and encodes an absolute voltage command.
func (e Encoder) ParseVoltage(text string) (Command, error) {
	v, err := ParseInt("voltage", text)
	if err != nil {
		return nil, err
	}
	return e.VoltageAbsolute(v)
}

// ParseFrequency parses operator text and encodes an absolute frequency command.
func (e Encoder) ParseFrequency(text string) (Command, error) {
	hz, err := ParseInt("frequency", text)
	if err != nil {
		return nil, err
	}
	return e.FrequencyAbsolute(hz)
}
