package monitor

import (
	"context"

	"github.com/itohio/gohvps/pkg/protocol"
)

// Send hands build to the loop goroutine, which runs it against the current
// state and writes the resulting command. It returns the build or write error.
func (m *Monitor) Send(ctx context.Context, build BuildFunc) error {
	req := request{build: build, done: make(chan error, 1)}

	select {
	case m.requests <- req:
	case <-m.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) sendCommand(ctx context.Context, cmd protocol.Command) error {
	return m.Send(ctx, func(View) (protocol.Command, error) { return cmd, nil })
}

// VoltageStep raises or lowers the target voltage by one board step.
func (m *Monitor) VoltageStep(ctx context.Context, dir protocol.Direction) error {
	return m.sendCommand(ctx, m.encoder.VoltageStep(dir))
}

// SetVoltage parses operator text and sets the target voltage.
// Parse and range errors are returned without sending anything.
func (m *Monitor) SetVoltage(ctx context.Context, text string) error {
	cmd, err := m.encoder.ParseVoltage(text)
	if err != nil {
		return err
	}
	return m.sendCommand(ctx, cmd)
}

// SetFrequency parses operator text and sets the switching frequency.
func (m *Monitor) SetFrequency(ctx context.Context, text string) error {
	cmd, err := m.encoder.ParseFrequency(text)
	if err != nil {
		return err
	}
	return m.sendCommand(ctx, cmd)
}

// ToggleChannel moves channel ch to the next state based on its last reported state.
func (m *Monitor) ToggleChannel(ctx context.Context, ch int) error {
	return m.Send(ctx, func(v View) (protocol.Command, error) {
		return v.Encoder.ChannelToggle(ch, v.State(ch))
	})
}

// SetAllChannels switches every channel on or shorts them all.
func (m *Monitor) SetAllChannels(ctx context.Context, activate bool) error {
	return m.sendCommand(ctx, m.encoder.ChannelBulk(activate))
}
