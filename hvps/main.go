package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/hvps"
	"github.com/itohio/gohvps/pkg/monitor"
	"github.com/itohio/gohvps/pkg/recorder"
	"github.com/itohio/gohvps/pkg/scope"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port (e.g., COM3 or /dev/ttyUSB0); skips the port picker")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated board instead of a serial port")
		recordFlag = flag.Bool("record", false, "Record telemetry to CSV (overrides config)")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *recordFlag {
		cfg.Recorder.Enabled = true
	}

	application := app.NewWithID("com.itohio.gohvps")

	window := application.NewWindow("HVPS interface")
	window.Resize(fyne.NewSize(1200, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		app:        application,
		window:     window,
		useMock:    *mockFlag,
		recorder:   recorder.New(cfg.Recorder),
	}

	window.SetContent(createContent(state))
	window.SetOnClosed(state.shutdown)
	window.Show()

	switch {
	case state.useMock:
		handleConnect(state, "mock")
	case *portFlag != "":
		handleConnect(state, *portFlag)
	default:
		showPortPicker(state, func(port string) {
			handleConnect(state, port)
		})
	}

	application.Run()
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	app        fyne.App
	window     fyne.Window
	useMock    bool

	transport *hvps.Serial
	monitor   *monitor.Monitor
	recorder  *recorder.Recorder
	cancel    context.CancelFunc
	loopDone  chan struct{}

	targetScope *scope.ScopeWidget
	inputScope  *scope.ScopeWidget
	outputScope *scope.ScopeWidget
	freqLabel   *widget.Label
	channelBtns []*widget.Button
	controls    []fyne.Disableable // Enabled once connected

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createContent lays out the charts on the left and the controls on the right.
func createContent(state *appState) fyne.CanvasObject {
	state.targetScope = scope.New("DCDC output target voltage", "V", color.RGBA{R: 255, G: 165, B: 0, A: 255})
	state.inputScope = scope.New("DCDC input measured voltage", "V", color.RGBA{R: 100, G: 200, B: 255, A: 255})
	state.outputScope = scope.New("DCDC output measured voltage", "V", color.RGBA{R: 120, G: 255, B: 120, A: 255})

	plots := container.NewGridWithRows(3, state.targetScope, state.inputScope, state.outputScope)

	controls := container.NewHBox(
		createVoltageControls(state),
		widget.NewSeparator(),
		createFrequencyControls(state),
		widget.NewSeparator(),
		createChannelControls(state),
	)

	for _, c := range state.controls {
		c.Disable()
	}

	return container.NewBorder(nil, nil, nil, controls, plots)
}

// handleConnect opens the board on port and starts the polling loop.
// Opening blocks for up to two read timeouts, so it runs off the UI goroutine.
func handleConnect(state *appState, port string) {
	go func() {
		var transport *hvps.Serial
		if state.useMock {
			transport = hvps.NewMockSerial(&state.cfg.Mock, state.cfg.Board.Channels, state.cfg.Limits(),
				state.cfg.Serial.OpenTimeout, state.cfg.Serial.ReadTimeout)
			log.Printf("[main] using mocked board")
		} else {
			transport = hvps.New(port, state.cfg.Serial.BaudRate, state.cfg.Serial.OpenTimeout, state.cfg.Serial.ReadTimeout)
		}

		if err := transport.Connect(); err != nil {
			log.Printf("[main] connect %s: %v", transport.Name(), err)
			fyne.Do(func() {
				d := dialog.NewError(fmt.Errorf("failed to connect to %s: %w\n\nPlease make sure you selected the right port", transport.Name(), err), state.window)
				d.SetOnClosed(func() { os.Exit(1) })
				d.Show()
			})
			return
		}
		log.Printf("[main] connected to %s", transport.Name())

		m := monitor.New(state.cfg, transport)
		m.OnUpdate(func(snap monitor.Snapshot) { onSnapshot(state, snap) })

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		fyne.Do(func() {
			state.transport = transport
			state.monitor = m
			state.cancel = cancel
			state.loopDone = done
			for _, c := range state.controls {
				c.Enable()
			}
		})

		go func() {
			defer close(done)
			if err := m.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[main] polling stopped: %v", err)
			}
		}()
	}()
}

// shutdown stops the polling loop and releases the port.
func (state *appState) shutdown() {
	if state.cancel != nil {
		state.cancel()
		<-state.loopDone
	}
	if state.transport != nil {
		if err := state.transport.Close(); err != nil {
			log.Printf("[main] close: %v", err)
		}
	}
	state.recorder.Close()
}

// send runs a monitor command off the UI goroutine and reports failures in a dialog.
func (state *appState) send(what string, fn func(ctx context.Context, m *monitor.Monitor) error) {
	m := state.monitor
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := fn(ctx, m); err != nil {
			log.Printf("[main] %s: %v", what, err)
			fyne.Do(func() {
				dialog.ShowError(fmt.Errorf("%s: %w", what, err), state.window)
			})
		}
	}()
}
