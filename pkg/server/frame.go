package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itohio/gohvps/pkg/monitor"
	"github.com/itohio/gohvps/pkg/protocol"
)

// Frame is the JSON structure sent to WebSocket clients.
type Frame struct {
	Telemetry *Telemetry `json:"telemetry,omitempty"`
	Reply     *Reply     `json:"reply,omitempty"`
	Stamp     int64      `json:"stamp"` // Unix ms
}

// Telemetry is the latest board state.
type Telemetry struct {
	Valid     bool          `json:"valid"` // false until the first sample arrives
	Target    float64       `json:"target"`
	Input     float64       `json:"input"`
	Output    float64       `json:"output"`
	Frequency float64       `json:"frequency"`
	Channels  []Channel     `json:"channels"`
	Stats     monitor.Stats `json:"stats"`
}

// Channel is the state of one output channel.
type Channel struct {
	State int    `json:"state"`
	Label string `json:"label"`
}

// Command is a client request. Op selects the action:
//
//	{"op":"voltage_up"} {"op":"voltage_down"}
//	{"op":"voltage","value":"120"} {"op":"frequency","value":"500"}
//	{"op":"toggle","channel":3} {"op":"all_on"} {"op":"all_off"}
type Command struct {
	ID      int    `json:"id,omitempty"`
	Op      string `json:"op"`
	Value   string `json:"value,omitempty"`
	Channel int    `json:"channel,omitempty"`
}

// Reply answers one Command.
type Reply struct {
	ID    int    `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func telemetryFrame(snap monitor.Snapshot) Frame {
	t := &Telemetry{
		Valid:     snap.HasSample,
		Target:    snap.Last.Target,
		Input:     snap.Last.Input,
		Output:    snap.Last.Output,
		Frequency: snap.Frequency,
		Channels:  make([]Channel, len(snap.Channels)),
		Stats:     snap.Stats,
	}
	for i, st := range snap.Channels {
		t.Channels[i] = Channel{State: int(st), Label: st.String()}
	}
	return Frame{Telemetry: t, Stamp: time.Now().UnixMilli()}
}

func (s *Server) handleCommand(ctx context.Context, msg []byte) Frame {
	var cmd Command
	reply := &Reply{}
	frame := Frame{Reply: reply, Stamp: time.Now().UnixMilli()}

	if err := json.Unmarshal(msg, &cmd); err != nil {
		reply.Error = fmt.Sprintf("bad command: %v", err)
		return frame
	}
	reply.ID = cmd.ID

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	switch cmd.Op {
	case "voltage_up":
		err = s.ctrl.VoltageStep(ctx, protocol.Up)
	case "voltage_down":
		err = s.ctrl.VoltageStep(ctx, protocol.Down)
	case "voltage":
		err = s.ctrl.SetVoltage(ctx, cmd.Value)
	case "frequency":
		err = s.ctrl.SetFrequency(ctx, cmd.Value)
	case "toggle":
		err = s.ctrl.ToggleChannel(ctx, cmd.Channel)
	case "all_on":
		err = s.ctrl.SetAllChannels(ctx, true)
	case "all_off":
		err = s.ctrl.SetAllChannels(ctx, false)
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}

	if err != nil {
		reply.Error = err.Error()
		return frame
	}
	reply.OK = true
	return frame
}
