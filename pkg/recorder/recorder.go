package recorder

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/protocol"
)

const defaultMaxRows = 100_000

var csvHeader = []string{
	"timestamp", "target_v", "input_v", "output_v", "frequency_hz", "channels",
}

// Recorder writes decoded telemetry to CSV files, rotating after MaxRows rows.
type Recorder struct {
	mu      sync.Mutex
	dir     string
	maxRows int
	enabled bool
	now     func() time.Time

	file   *os.File
	writer *csv.Writer
	rows   int
	seq    int
	path   string
}

// New creates a recorder. Nothing is written until the first Record.
func New(cfg config.RecorderConfig) *Recorder {
	if cfg.Path == "" {
		cfg.Path = "recordings"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}
	return &Recorder{
		dir:     cfg.Path,
		maxRows: cfg.MaxRows,
		enabled: cfg.Enabled,
		now:     time.Now,
	}
}

// SetEnabled starts or stops recording. Stopping closes the current file.
func (r *Recorder) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on {
		r.closeFile()
	}
}

// IsEnabled returns whether recording is active.
func (r *Recorder) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Path returns the file currently written, or "" when none is open.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Record appends one sample.
func (r *Recorder) Record(s protocol.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return nil
	}

	now := r.now()
	if r.writer == nil || r.rows >= r.maxRows {
		if err := r.rotateFile(now); err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
	}

	if err := r.writer.Write(buildRow(now, s)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	r.rows++
	return nil
}

// Close flushes and closes the current file.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeFile()
}

func (r *Recorder) rotateFile(now time.Time) error {
	r.closeFile()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.dir, err)
	}

	r.seq++
	filename := fmt.Sprintf("hvps_%s_%03d.csv", now.Format("2006-01-02_150405"), r.seq)
	path := filepath.Join(r.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	r.rows = 0
	r.path = path

	if err := r.writer.Write(csvHeader); err != nil {
		return err
	}
	r.writer.Flush()

	log.Printf("[recorder] opened %s", path)
	return nil
}

func (r *Recorder) closeFile() {
	if r.writer != nil {
		r.writer.Flush()
		r.writer = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			log.Printf("[recorder] close %s: %v", r.path, err)
		}
		r.file = nil
	}
	r.path = ""
}

func buildRow(ts time.Time, s protocol.Sample) []string {
	return []string{
		ts.Format(time.RFC3339Nano),
		strconv.FormatFloat(s.Target, 'f', -1, 64),
		strconv.FormatFloat(s.Input, 'f', -1, 64),
		strconv.FormatFloat(s.Output, 'f', -1, 64),
		strconv.FormatFloat(s.Frequency, 'f', -1, 64),
		s.ChannelStates,
	}
}
