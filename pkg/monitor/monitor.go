package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/history"
	"github.com/itohio/gohvps/pkg/hvps"
	"github.com/itohio/gohvps/pkg/protocol"
)

// ErrStopped is returned by Send once Run has returned.
var ErrStopped = errors.New("monitor stopped")

// readErrorLogEvery limits logging of a persistent read failure to one line per N ticks.
const readErrorLogEvery = 250

// Stats counts what the polling loop has seen.
type Stats struct {
	Ticks      uint64 `json:"ticks"`
	Samples    uint64 `json:"samples"`   // Decoded telemetry lines
	Skipped    uint64 `json:"skipped"`   // Lines without the telemetry marker
	Malformed  uint64 `json:"malformed"` // Telemetry lines with non-numeric fields
	ReadErrors uint64 `json:"read_errors"`
	Overruns   uint64 `json:"overruns"` // Input flushes due to unread backlog
	Commands   uint64 `json:"commands"`
}

// Snapshot is the state published after every tick. Its slices are not
// shared with the monitor and may be kept by the receiver.
type Snapshot struct {
	Series    history.Series
	Channels  []protocol.ChannelState
	Frequency float64
	Last      protocol.Sample
	HasSample bool // A sample has been decoded since start
	Updated   bool // This tick decoded a new sample
	Stats     Stats
}

// View is the monitor state visible to a command builder.
// It is only valid for the duration of the build call.
type View struct {
	Encoder  protocol.Encoder
	Channels []protocol.ChannelState
}

// State returns the last reported state of channel ch, or Unknown.
func (v View) State(ch int) protocol.ChannelState {
	if ch < 0 || ch >= len(v.Channels) {
		return protocol.Unknown
	}
	return v.Channels[ch]
}

// BuildFunc produces the command to send from the current state.
type BuildFunc func(View) (protocol.Command, error)

type request struct {
	build BuildFunc
	done  chan error
}

// Monitor is the polling loop: it reads telemetry from the transport every tick,
// maintains the chart history and channel states, and writes operator commands.
// All transport I/O happens on the goroutine running Run, so reads and writes
// never overlap.
type Monitor struct {
	period         time.Duration
	flushThreshold int

	transport hvps.Transport
	decoder   protocol.Decoder
	encoder   protocol.Encoder

	// Owned by the loop goroutine
	history   *history.History
	channels  []protocol.ChannelState
	frequency float64
	last      protocol.Sample
	hasSample bool
	stats     Stats

	requests chan request
	stopped  chan struct{}
	running  atomic.Bool

	latestMu sync.RWMutex
	latest   Snapshot

	callbacks []func(Snapshot)
	cbMu      sync.RWMutex
}

// New creates a monitor reading from transport.
func New(cfg *config.Config, transport hvps.Transport) *Monitor {
	channels := make([]protocol.ChannelState, cfg.Board.Channels)
	for i := range channels {
		channels[i] = protocol.Unknown
	}

	m := &Monitor{
		period:         cfg.Poll.Period,
		flushThreshold: cfg.Poll.FlushThreshold,
		transport:      transport,
		decoder:        protocol.NewDecoder(cfg.Board.Channels),
		encoder:        protocol.NewEncoder(cfg.Board.Channels, cfg.Limits()),
		history:        history.New(cfg.Poll.HistoryLength),
		channels:       channels,
		requests:       make(chan request),
		stopped:        make(chan struct{}),
	}
	m.latest = m.snapshot(false)

	return m
}

// Encoder returns the command encoder used for operator commands.
func (m *Monitor) Encoder() protocol.Encoder {
	return m.encoder
}

// Run ticks every poll period and executes queued commands until ctx is done.
// It must be called once.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("monitor already running")
	}
	defer close(m.stopped)

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		case req := <-m.requests:
			req.done <- m.execute(req.build)
		}
	}
}

// Tick performs one polling step. It never panics; per-line problems are
// counted and the next tick simply tries again. It reports whether a new
// sample was decoded.
// Tick must not be called concurrently with Run.
func (m *Monitor) Tick() (updated bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[monitor] panic in tick: %v", r)
			updated = false
		}
	}()

	m.stats.Ticks++
	m.history.Tick()

	line, err := m.transport.ReadLine()
	switch {
	case err != nil:
		m.stats.ReadErrors++
		if m.stats.ReadErrors%readErrorLogEvery == 1 {
			log.Printf("[monitor] read failed (%d times): %v", m.stats.ReadErrors, err)
		}
	case line != "":
		updated = m.handleLine(line)
	}

	if n := m.transport.Buffered(); n > m.flushThreshold {
		m.stats.Overruns++
		log.Printf("[monitor] %d unread bytes, discarding input", n)
		if err := m.transport.Flush(); err != nil {
			log.Printf("[monitor] flush failed: %v", err)
		}
	}

	m.publish(updated)
	return updated
}

func (m *Monitor) handleLine(line string) bool {
	s, err := protocol.Decode(line)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformedNumber) {
			m.stats.Malformed++
			log.Printf("[monitor] skipping %q: %v", line, err)
		} else {
			m.stats.Skipped++
		}
		return false
	}

	m.stats.Samples++
	m.history.Record(s)
	m.channels = m.decoder.AppendStates(m.channels[:0], s)
	m.frequency = s.Frequency
	m.last = s
	m.hasSample = true
	return true
}

func (m *Monitor) execute(build BuildFunc) error {
	cmd, err := build(View{Encoder: m.encoder, Channels: m.channels})
	if err != nil {
		return err
	}
	if err := m.transport.Write(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	m.stats.Commands++
	log.Printf("[monitor] sent %s", cmd)
	return nil
}

func (m *Monitor) snapshot(updated bool) Snapshot {
	return Snapshot{
		Series:    m.history.Snapshot(history.Series{}),
		Channels:  append([]protocol.ChannelState(nil), m.channels...),
		Frequency: m.frequency,
		Last:      m.last,
		HasSample: m.hasSample,
		Updated:   updated,
		Stats:     m.stats,
	}
}

func (m *Monitor) publish(updated bool) {
	snap := m.snapshot(updated)

	m.latestMu.Lock()
	m.latest = snap
	m.latestMu.Unlock()

	m.cbMu.RLock()
	callbacks := make([]func(Snapshot), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(snap)
		}
	}
}

// Latest returns the snapshot published by the most recent tick.
func (m *Monitor) Latest() Snapshot {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest
}

// OnUpdate registers a callback invoked on the loop goroutine after every tick.
// The callback should return quickly.
func (m *Monitor) OnUpdate(callback func(Snapshot)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}
