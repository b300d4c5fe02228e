package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Marker is the token that identifies a telemetry line.
	Marker = "raw"
	// Separator splits telemetry fields.
	Separator = ";"

	minFields = 6
)

// Sample is one decoded telemetry record.
type Sample struct {
	Target        float64 // DCDC output target voltage (V)
	Input         float64 // DCDC input measured voltage (V)
	Output        float64 // DCDC output measured voltage (V)
	Frequency     float64 // Switching frequency (Hz)
	ChannelStates string  // One character per channel, as received
}

// Channel returns the state of channel i, or Unknown if the record does not cover it.
func (s Sample) Channel(i int) ChannelState {
	if i < 0 || i >= len(s.ChannelStates) {
		return Unknown
	}
	return ParseChannelState(s.ChannelStates[i])
}

// Decoder expands decoded channel fields for a board with a fixed number of channels.
type Decoder struct {
	channels int
}

// NewDecoder creates a decoder for a board with the given channel count.
// A non-positive count selects DefaultChannels.
func NewDecoder(channels int) Decoder {
	if channels <= 0 {
		channels = DefaultChannels
	}
	return Decoder{channels: channels}
}

// Channels returns the channel count the decoder was built for.
func (d Decoder) Channels() int {
	return d.channels
}

// States expands the channel field of s into exactly Channels() states.
// Missing or unrecognized characters become Unknown; extra characters are ignored.
func (d Decoder) States(s Sample) []ChannelState {
	return d.AppendStates(make([]ChannelState, 0, d.channels), s)
}

// AppendStates is like States but appends to dst.
func (d Decoder) AppendStates(dst []ChannelState, s Sample) []ChannelState {
	for i := range d.channels {
		dst = append(dst, s.Channel(i))
	}
	return dst
}

// Decode parses one line received from the board.
// Format: raw;target;input;output;frequency;states
// Example: raw;120;11.9;118.5;500;01230123
//
// Lines without the marker, or with too few fields, yield ErrNotTelemetry.
// Non-numeric voltage or frequency fields yield ErrMalformedNumber.
func Decode(line string) (Sample, error) {
	if !strings.Contains(line, Marker) {
		return Sample{}, ErrNotTelemetry
	}

	parts := strings.Split(line, Separator)
	if len(parts) < minFields {
		return Sample{}, fmt.Errorf("%w: expected %d fields, got %d", ErrNotTelemetry, minFields, len(parts))
	}

	var values [4]float64
	for i, name := range [...]string{"target voltage", "input voltage", "output voltage", "frequency"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %s: %v", ErrMalformedNumber, name, err)
		}
		values[i] = v
	}

	return Sample{
		Target:        values[0],
		Input:         values[1],
		Output:        values[2],
		Frequency:     values[3],
		ChannelStates: strings.TrimRight(parts[5], "\r\n"),
	}, nil
}

// Encode formats s as a telemetry line, including the trailing newline.
// The mocked board uses it to produce what the real firmware sends.
func (s Sample) Encode() string {
	return fmt.Sprintf("%s;%s;%s;%s;%s;%s\n", Marker,
		strconv.FormatFloat(s.Target, 'f', -1, 64),
		strconv.FormatFloat(s.Input, 'f', -1, 64),
		strconv.FormatFloat(s.Output, 'f', -1, 64),
		strconv.FormatFloat(s.Frequency, 'f', -1, 64),
		s.ChannelStates)
}
