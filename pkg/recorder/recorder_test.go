package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func newTestRecorder(t *testing.T, maxRows int) *Recorder {
	t.Helper()
	r := New(config.RecorderConfig{Enabled: true, Path: t.TempDir(), MaxRows: maxRows})
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		ts = ts.Add(30 * time.Millisecond)
		return ts
	}
	t.Cleanup(r.Close)
	return r
}

func TestNew_Defaults(t *testing.T) {
	r := New(config.RecorderConfig{})
	assert.Equal(t, "recordings", r.dir)
	assert.Equal(t, defaultMaxRows, r.maxRows)
	assert.False(t, r.IsEnabled())
}

func TestRecorder_Record(t *testing.T) {
	r := newTestRecorder(t, 10)

	require.NoError(t, r.Record(protocol.Sample{Target: 120, Input: 11.9, Output: 118.5, Frequency: 500, ChannelStates: "01230123"}))
	require.NoError(t, r.Record(protocol.Sample{Target: 0, Input: 12, Output: 0.25, Frequency: 1, ChannelStates: "00000000"}))

	rows := readCSV(t, r.Path())
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2026-03-01T12:00:00.03Z", "120", "11.9", "118.5", "500", "01230123"}, rows[1])
	assert.Equal(t, "0.25", rows[2][3])
}

func TestRecorder_Rotation(t *testing.T) {
	r := newTestRecorder(t, 2)

	for range 5 {
		require.NoError(t, r.Record(protocol.Sample{ChannelStates: "00000000"}))
	}

	files, err := filepath.Glob(filepath.Join(r.dir, "*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	total := 0
	for _, f := range files {
		rows := readCSV(t, f)
		assert.Equal(t, csvHeader, rows[0])
		total += len(rows) - 1
	}
	assert.Equal(t, 5, total)
}

func TestRecorder_Disabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	r := New(config.RecorderConfig{Path: dir})

	require.NoError(t, r.Record(protocol.Sample{}))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, r.Path())
}

func TestRecorder_SetEnabled(t *testing.T) {
	r := newTestRecorder(t, 10)

	require.NoError(t, r.Record(protocol.Sample{}))
	first := r.Path()
	require.NotEmpty(t, first)

	r.SetEnabled(false)
	assert.Empty(t, r.Path())
	require.NoError(t, r.Record(protocol.Sample{}))
	assert.Len(t, readCSV(t, first), 2)

	r.SetEnabled(true)
	require.NoError(t, r.Record(protocol.Sample{}))
	assert.NotEqual(t, first, r.Path())
}
