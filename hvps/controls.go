package main

import (
	"context"
	"fmt"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohvps/pkg/monitor"
	"github.com/itohio/gohvps/pkg/protocol"
)

// createVoltageControls creates the step buttons and the absolute setpoint entry.
func createVoltageControls(state *appState) fyne.CanvasObject {
	limits := state.cfg.Limits()

	increaseBtn := widget.NewButton("Increase voltage", func() {
		state.send("increase voltage", func(ctx context.Context, m *monitor.Monitor) error {
			return m.VoltageStep(ctx, protocol.Up)
		})
	})
	decreaseBtn := widget.NewButton("Decrease voltage", func() {
		state.send("decrease voltage", func(ctx context.Context, m *monitor.Monitor) error {
			return m.VoltageStep(ctx, protocol.Down)
		})
	})

	entry := widget.NewEntry()
	entry.SetPlaceHolder(fmt.Sprintf("%d..%d V", limits.VoltageMin, limits.VoltageMax))
	setVoltage := func(text string) {
		state.send("set voltage", func(ctx context.Context, m *monitor.Monitor) error {
			return m.SetVoltage(ctx, text)
		})
	}
	entry.OnSubmitted = setVoltage
	setBtn := widget.NewButton("Set voltage", func() { setVoltage(entry.Text) })

	state.controls = append(state.controls, increaseBtn, decreaseBtn, entry, setBtn)

	return container.NewVBox(
		increaseBtn,
		decreaseBtn,
		container.NewBorder(nil, nil, nil, setBtn, entry),
	)
}

// createFrequencyControls creates the frequency readout and setpoint entry.
func createFrequencyControls(state *appState) fyne.CanvasObject {
	limits := state.cfg.Limits()

	state.freqLabel = widget.NewLabel("Current frequency")

	entry := widget.NewEntry()
	entry.SetPlaceHolder(fmt.Sprintf("%d..%d Hz", limits.FrequencyMin, limits.FrequencyMax))
	setFrequency := func(text string) {
		state.send("set frequency", func(ctx context.Context, m *monitor.Monitor) error {
			return m.SetFrequency(ctx, text)
		})
	}
	entry.OnSubmitted = setFrequency
	setBtn := widget.NewButton("Set frequency", func() { setFrequency(entry.Text) })

	state.controls = append(state.controls, entry, setBtn)

	return container.NewVBox(state.freqLabel, entry, setBtn)
}

// createChannelControls creates the bulk buttons and one toggle button per channel.
func createChannelControls(state *appState) fyne.CanvasObject {
	activateBtn := widget.NewButton("Activate", func() {
		state.send("activate all channels", func(ctx context.Context, m *monitor.Monitor) error {
			return m.SetAllChannels(ctx, true)
		})
	})
	deactivateBtn := widget.NewButton("Deactivate", func() {
		state.send("deactivate all channels", func(ctx context.Context, m *monitor.Monitor) error {
			return m.SetAllChannels(ctx, false)
		})
	})
	state.controls = append(state.controls, activateBtn, deactivateBtn)

	form := widget.NewForm(
		widget.NewFormItem("All channels switching", activateBtn),
		widget.NewFormItem("All channels shorted", deactivateBtn),
	)

	state.channelBtns = make([]*widget.Button, state.cfg.Board.Channels)
	for ch := range state.channelBtns {
		btn := widget.NewButton(protocol.Unknown.String(), func() {
			handleChannelToggle(state, ch)
		})
		updateChannelButton(btn, protocol.Unknown)
		state.channelBtns[ch] = btn
		state.controls = append(state.controls, btn)
		form.Append(fmt.Sprintf("Channel %d", ch), btn)
	}

	return form
}

// handleChannelToggle advances channel ch to its next state.
func handleChannelToggle(state *appState, ch int) {
	log.Printf("[main] clicked on channel %d", ch)
	state.send(fmt.Sprintf("channel %d", ch), func(ctx context.Context, m *monitor.Monitor) error {
		return m.ToggleChannel(ctx, ch)
	})
}

// channelImportance maps a channel state to the button color.
func channelImportance(st protocol.ChannelState) widget.Importance {
	switch st {
	case protocol.Shorted:
		return widget.WarningImportance
	case protocol.Switching, protocol.SwitchingAlt:
		return widget.SuccessImportance
	case protocol.HighZ:
		return widget.DangerImportance
	default:
		return widget.LowImportance
	}
}

// updateChannelButton shows st on btn. It returns false if nothing changed.
func updateChannelButton(btn *widget.Button, st protocol.ChannelState) bool {
	label := st.String()
	importance := channelImportance(st)
	if btn.Text == label && btn.Importance == importance {
		return false
	}
	btn.Text = label
	btn.Importance = importance
	btn.Refresh()
	return true
}
