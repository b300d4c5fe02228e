package hvps

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/gohvps/pkg/protocol"
)

const (
	// DefaultBaudRate is the baud rate of the HVPS board UART.
	DefaultBaudRate = 115200
	// DefaultOpenTimeout bounds each liveness probe read on open.
	DefaultOpenTimeout = 500 * time.Millisecond
	// DefaultReadTimeout bounds each read made by a poll tick.
	DefaultReadTimeout = 5 * time.Millisecond
)

var (
	// ErrOpen is returned when the serial port cannot be opened.
	ErrOpen = errors.New("cannot open transport")
	// ErrNoDataOnOpen is returned when the board stays silent after the autosend handshake.
	ErrNoDataOnOpen = errors.New("no data received on open")
	// ErrNotConnected is returned by I/O on a closed or never opened transport.
	ErrNotConnected = errors.New("not connected")
)

// port is the subset of serial.Port used by Serial.
type port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Serial is a line-oriented connection to the HVPS board.
type Serial struct {
	name        string
	baudRate    int
	openTimeout time.Duration
	readTimeout time.Duration
	open        func() (port, error)

	mu        sync.Mutex
	conn      port
	pending   lineBuffer
	buf       [256]byte
	connected bool
}

// New creates a Serial for the named port. Zero values select the defaults.
func New(name string, baudRate int, openTimeout, readTimeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if openTimeout == 0 {
		openTimeout = DefaultOpenTimeout
	}
	if readTimeout == 0 {
		readTimeout = DefaultReadTimeout
	}

	s := &Serial{
		name:        name,
		baudRate:    baudRate,
		openTimeout: openTimeout,
		readTimeout: readTimeout,
	}
	s.open = s.openSerial
	return s
}

func (s *Serial) openSerial() (port, error) {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(s.name, mode)
}

// Name returns the port name.
func (s *Serial) Name() string {
	return s.name
}

// Connect opens the port and makes sure the board is talking.
// Stale input is discarded and one line is read; if nothing arrives the
// autosend command is sent and the read is retried once.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := s.open()
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrOpen, s.name, err)
	}

	if err := s.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.connected = true
	log.Printf("[serial] connected to %s", s.name)
	return nil
}

func (s *Serial) handshake(conn port) error {
	if err := conn.SetReadTimeout(s.openTimeout); err != nil {
		return fmt.Errorf("%w %s: set timeout: %v", ErrOpen, s.name, err)
	}
	if err := conn.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w %s: flush: %v", ErrOpen, s.name, err)
	}
	s.pending.Reset()

	line, err := s.probe(conn)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrOpen, s.name, err)
	}
	if line == "" {
		log.Printf("[serial] no data from %s, enabling autosend", s.name)
		if _, err := conn.Write(protocol.AutosendCommand); err != nil {
			return fmt.Errorf("%w %s: autosend: %v", ErrOpen, s.name, err)
		}
		line, err = s.probe(conn)
		if err != nil {
			return fmt.Errorf("%w %s: %v", ErrOpen, s.name, err)
		}
		if line == "" {
			return fmt.Errorf("%w from %s: ensure the board has not been disconnected", ErrNoDataOnOpen, s.name)
		}
	}
	log.Printf("[serial] %s: %s", s.name, line)

	if err := conn.SetReadTimeout(s.readTimeout); err != nil {
		return fmt.Errorf("%w %s: set timeout: %v", ErrOpen, s.name, err)
	}
	return nil
}

// probe reads until one line arrives or the open timeout elapses.
// A partial line received before the deadline still counts as data.
func (s *Serial) probe(conn port) (string, error) {
	deadline := time.Now().Add(s.openTimeout)
	for {
		if line, ok := s.pending.PopLine(); ok && line != "" {
			return line, nil
		}
		if !time.Now().Before(deadline) {
			if s.pending.Len() > 0 {
				line := string(s.pending.data)
				s.pending.Reset()
				return line, nil
			}
			return "", nil
		}
		n, err := conn.Read(s.buf[:])
		if err != nil {
			return "", err
		}
		s.pending.Write(s.buf[:n])
	}
}

// Close closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			log.Printf("[serial] error closing %s: %v", s.name, err)
		}
		s.conn = nil
	}
	s.pending.Reset()
	s.connected = false

	return nil
}

// IsConnected returns whether the port is currently open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ReadLine returns the next complete line. It reads at most once from the port,
// waiting no longer than the read timeout, and returns "" if no line is complete.
func (s *Serial) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	if line, ok := s.pending.PopLine(); ok {
		return line, nil
	}

	n, err := s.conn.Read(s.buf[:])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.name, err)
	}
	s.pending.Write(s.buf[:n])

	line, _ := s.pending.PopLine()
	return line, nil
}

// Write sends p to the board.
func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}

	if _, err := s.conn.Write(p); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	return nil
}

// Buffered returns the number of received bytes not yet returned by ReadLine.
// It counts userspace bytes only; input still queued in the OS driver is not included.
func (s *Serial) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Flush discards buffered input, both in Serial and in the OS driver.
func (s *Serial) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Reset()
	if !s.connected {
		return nil
	}
	if err := s.conn.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush %s: %w", s.name, err)
	}
	return nil
}
