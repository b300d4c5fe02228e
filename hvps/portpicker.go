package main

import (
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohvps/pkg/hvps"
)

var connectionHints = []string{
	"If using USB: select the port described as Silicon Labs CP210x...",
	"If using Bluetooth: pair the board in the system Bluetooth settings first.",
	"LED DS2 must be blinking before connection; LED DS3 turns on once connected.",
	"If unable to connect, try another port or power-cycle the board.",
}

// portOptions builds picker entries for ports and maps each entry back to its port name.
// The configured port is listed even when it was not detected.
func portOptions(ports []hvps.Port, current string) (options []string, names map[string]string, selected string) {
	names = make(map[string]string, len(ports)+1)
	for _, p := range ports {
		display := p.String()
		options = append(options, display)
		names[display] = p.Name
		if p.Name == current {
			selected = display
		}
	}
	if selected == "" && current != "" {
		options = append(options, current)
		names[current] = current
		selected = current
	}
	return options, names, selected
}

// showPortPicker asks for the serial port. Cancelling quits the application.
func showPortPicker(state *appState, onSelected func(port string)) {
	ports, err := hvps.Ports()
	if err != nil {
		log.Printf("[main] %v", err)
	}
	options, names, selected := portOptions(ports, state.cfg.Serial.Port)

	portSelect := widget.NewSelect(options, nil)
	if selected != "" {
		portSelect.SetSelected(selected)
	}

	hints := container.NewVBox()
	for _, h := range connectionHints {
		hints.Add(widget.NewLabel(h))
	}

	content := container.NewVBox(
		widget.NewLabel("Please select the serial port"),
		widget.NewForm(widget.NewFormItem("Port name", portSelect)),
		widget.NewSeparator(),
		hints,
	)

	d := dialog.NewCustomConfirm("Select port", "Connect", "Quit", content, func(ok bool) {
		if !ok || portSelect.Selected == "" {
			log.Printf("[main] canceled")
			state.app.Quit()
			return
		}

		port := names[portSelect.Selected]
		if port == "" {
			port = portSelect.Selected
		}
		log.Printf("[main] user selected port %s", port)

		state.cfg.Serial.Port = port
		if err := state.cfg.Save(state.configPath); err != nil {
			log.Printf("[main] failed to save config: %v", err)
		}
		onSelected(port)
	}, state.window)
	d.Resize(fyne.NewSize(520, 360))
	d.Show()
}
