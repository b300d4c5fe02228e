package main

import (
	"fmt"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"github.com/itohio/gohvps/pkg/monitor"
)

// updateInterval throttles chart redraws to about 60 FPS.
const updateInterval = 16 * time.Millisecond

// onSnapshot runs on the polling goroutine after every tick. It records new
// samples and schedules a UI update with fyne.Do when one is due.
func onSnapshot(state *appState, snap monitor.Snapshot) {
	if !snap.Updated {
		return
	}

	if err := state.recorder.Record(snap.Last); err != nil {
		log.Printf("[recorder] %v", err)
	}

	state.updateMu.Lock()
	now := time.Now()
	due := now.Sub(state.lastUpdateTime) >= updateInterval
	if due {
		state.lastUpdateTime = now
	}
	state.updateMu.Unlock()
	if !due {
		return
	}

	fyne.Do(func() {
		applySnapshot(state, snap)
	})
}

// applySnapshot updates charts, the frequency label and channel buttons.
// Must run on the UI goroutine.
func applySnapshot(state *appState, snap monitor.Snapshot) {
	state.targetScope.UpdateData(snap.Series.Time, snap.Series.Target)
	state.inputScope.UpdateData(snap.Series.Time, snap.Series.Input)
	state.outputScope.UpdateData(snap.Series.Time, snap.Series.Output)

	state.freqLabel.SetText(fmt.Sprintf("Current frequency: %g Hz", snap.Frequency))

	for i, btn := range state.channelBtns {
		if i < len(snap.Channels) {
			updateChannelButton(btn, snap.Channels[i])
		}
	}
}
