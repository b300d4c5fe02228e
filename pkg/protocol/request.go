package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// AutosendCommand enables periodic telemetry on the board.
var AutosendCommand = Command("d\n")

// RequestKind identifies a command line as seen by the board.
type RequestKind int

const (
	RequestVoltageUp RequestKind = iota
	RequestVoltageDown
	RequestVoltage
	RequestFrequency
	RequestChannel
	RequestAutosend
)

// Request is a parsed command line, the board's view of a Command.
type Request struct {
	Kind    RequestKind
	Value   int          // Volts or Hz for RequestVoltage and RequestFrequency
	Channel int          // Channel index, or BroadcastChannel
	State   ChannelState // Requested state for RequestChannel
}

// ParseCommand parses one command line received by the board.
// It accepts everything Encoder produces plus the autosend handshake.
func ParseCommand(line string) (Request, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Request{}, fmt.Errorf("empty command")
	}

	switch line[0] {
	case 'd':
		if line != "d" {
			return Request{}, fmt.Errorf("invalid command %q", line)
		}
		return Request{Kind: RequestAutosend}, nil
	case 'V':
		switch line[1:] {
		case "+":
			return Request{Kind: RequestVoltageUp}, nil
		case "-":
			return Request{Kind: RequestVoltageDown}, nil
		}
		v, err := strconv.Atoi(line[1:])
		if err != nil {
			return Request{}, fmt.Errorf("invalid voltage command %q: %w", line, err)
		}
		return Request{Kind: RequestVoltage, Value: v}, nil
	case 'F':
		hz, err := strconv.Atoi(line[1:])
		if err != nil {
			return Request{}, fmt.Errorf("invalid frequency command %q: %w", line, err)
		}
		return Request{Kind: RequestFrequency, Value: hz}, nil
	case 'C':
		if len(line) != 4 {
			return Request{}, fmt.Errorf("invalid channel command %q", line)
		}
		ch, err := strconv.Atoi(line[1:3])
		if err != nil {
			return Request{}, fmt.Errorf("invalid channel command %q: %w", line, err)
		}
		state := ParseChannelState(line[3])
		if !state.Valid() {
			return Request{}, fmt.Errorf("invalid channel state in %q", line)
		}
		return Request{Kind: RequestChannel, Channel: ch, State: state}, nil
	default:
		return Request{}, fmt.Errorf("unknown command %q", line)
	}
}
