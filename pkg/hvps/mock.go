package hvps

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/protocol"
)

// mockOutputLimit caps telemetry queued by the mock when nobody reads it.
const mockOutputLimit = 64 * 1024

var errMockClosed = errors.New("mock: port closed")

// Ensure Mock can stand in for a serial port.
var _ port = (*Mock)(nil)

// Mock simulates an HVPS board behind a serial port: it streams telemetry
// once autosend is enabled and applies the commands it receives.
type Mock struct {
	cfg      *config.MockConfig
	channels int
	limits   protocol.Limits

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	notify      chan struct{}
	out         []byte
	in          lineBuffer
	readTimeout time.Duration
	closed      bool

	// Simulation state
	startTime time.Time
	lastStep  time.Time
	autosend  bool
	target    float64
	output    float64
	frequency int
	states    []protocol.ChannelState
}

// NewMock creates a simulated board and starts its telemetry generator.
func NewMock(cfg *config.MockConfig, channels int, limits protocol.Limits) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if channels <= 0 {
		channels = protocol.DefaultChannels
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	m := &Mock{
		cfg:         cfg,
		channels:    channels,
		limits:      limits,
		ctx:         ctx,
		cancel:      cancel,
		notify:      make(chan struct{}, 1),
		readTimeout: DefaultReadTimeout,
		startTime:   now,
		lastStep:    now,
		frequency:   limits.FrequencyMin,
		states:      make([]protocol.ChannelState, channels),
	}

	go m.generateSamples()

	return m
}

// NewMockSerial returns a Serial whose port is a simulated board.
// Connect runs the same handshake as for real hardware.
func NewMockSerial(cfg *config.MockConfig, channels int, limits protocol.Limits, openTimeout, readTimeout time.Duration) *Serial {
	s := New("mock", DefaultBaudRate, openTimeout, readTimeout)
	s.open = func() (port, error) {
		return NewMock(cfg, channels, limits), nil
	}
	return s
}

// Read returns queued telemetry, waiting up to the read timeout for some to arrive.
// It returns 0, nil on timeout like a serial port does.
func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	timeout := m.readTimeout
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, errMockClosed
		}
		if len(m.out) > 0 {
			n := copy(p, m.out)
			m.out = m.out[n:]
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-timer.C:
			return 0, nil
		case <-m.ctx.Done():
			return 0, errMockClosed
		}
	}
}

// Write feeds command lines to the simulated board.
func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errMockClosed
	}

	m.in.Write(p)
	for {
		line, ok := m.in.PopLine()
		if !ok {
			break
		}
		req, err := protocol.ParseCommand(line)
		if err != nil {
			log.Printf("[mock] %v", err)
			continue
		}
		m.apply(req)
	}
	return len(p), nil
}

// ResetInputBuffer drops telemetry not yet read.
func (m *Mock) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = m.out[:0]
	return nil
}

// SetReadTimeout sets how long Read waits for telemetry.
func (m *Mock) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = t
	return nil
}

// Close stops the generator.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.cancel()
	return nil
}

// apply executes one command. Must be called with mu held.
func (m *Mock) apply(req protocol.Request) {
	switch req.Kind {
	case protocol.RequestAutosend:
		m.autosend = true
	case protocol.RequestVoltageUp:
		m.target = m.clampVoltage(m.target + float64(m.cfg.StepVoltage))
	case protocol.RequestVoltageDown:
		m.target = m.clampVoltage(m.target - float64(m.cfg.StepVoltage))
	case protocol.RequestVoltage:
		m.target = m.clampVoltage(float64(req.Value))
	case protocol.RequestFrequency:
		m.frequency = min(max(req.Value, m.limits.FrequencyMin), m.limits.FrequencyMax)
	case protocol.RequestChannel:
		if req.Channel == protocol.BroadcastChannel {
			for i := range m.states {
				m.states[i] = req.State
			}
			return
		}
		if req.Channel >= 0 && req.Channel < len(m.states) {
			m.states[req.Channel] = req.State
		}
	}
}

func (m *Mock) clampVoltage(v float64) float64 {
	return math.Min(math.Max(v, float64(m.limits.VoltageMin)), float64(m.limits.VoltageMax))
}

// generateSamples emits one telemetry line per sample period while autosend is on.
func (m *Mock) generateSamples() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			s := m.step(now)
			if m.autosend && len(m.out) < mockOutputLimit {
				m.out = append(m.out, s.Encode()...)
			}
			m.mu.Unlock()

			select {
			case m.notify <- struct{}{}:
			default:
			}
		}
	}
}

// step advances the simulation to now and returns the resulting sample.
// Must be called with mu held.
func (m *Mock) step(now time.Time) protocol.Sample {
	dt := now.Sub(m.lastStep).Seconds()
	m.lastStep = now
	elapsed := now.Sub(m.startTime).Seconds()

	// Output slews toward target at SlewRate
	maxDelta := m.cfg.SlewRate * dt
	delta := m.target - m.output
	if math.Abs(delta) > maxDelta {
		delta = math.Copysign(maxDelta, delta)
	}
	m.output += delta

	noise := (math.Sin(elapsed*7.0) + math.Cos(elapsed*13.0)) * m.cfg.NoiseLevel * 0.5

	var states strings.Builder
	for _, st := range m.states {
		states.WriteByte(st.Digit())
	}

	return protocol.Sample{
		Target:        m.target,
		Input:         math.Round((m.cfg.InputVoltage+noise*0.1)*100) / 100,
		Output:        math.Round((m.output+noise)*100) / 100,
		Frequency:     float64(m.frequency),
		ChannelStates: states.String(),
	}
}
