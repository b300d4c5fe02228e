package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/monitor"
	"github.com/itohio/gohvps/pkg/protocol"
)

// fakeController records calls and validates input with a real encoder.
type fakeController struct {
	mu       sync.Mutex
	latest   monitor.Snapshot
	callback func(monitor.Snapshot)
	calls    []string
	enc      protocol.Encoder
}

func newFakeController() *fakeController {
	return &fakeController{enc: protocol.NewEncoder(8, protocol.DefaultLimits())}
}

func (f *fakeController) Latest() monitor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func (f *fakeController) OnUpdate(cb func(monitor.Snapshot)) { f.callback = cb }

func (f *fakeController) record(c protocol.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c.String())
	return nil
}

func (f *fakeController) VoltageStep(_ context.Context, dir protocol.Direction) error {
	return f.record(f.enc.VoltageStep(dir))
}

func (f *fakeController) SetVoltage(_ context.Context, text string) error {
	c, err := f.enc.ParseVoltage(text)
	if err != nil {
		return err
	}
	return f.record(c)
}

func (f *fakeController) SetFrequency(_ context.Context, text string) error {
	c, err := f.enc.ParseFrequency(text)
	if err != nil {
		return err
	}
	return f.record(c)
}

func (f *fakeController) ToggleChannel(_ context.Context, ch int) error {
	c, err := f.enc.ChannelToggle(ch, protocol.Shorted)
	if err != nil {
		return err
	}
	return f.record(c)
}

func (f *fakeController) SetAllChannels(_ context.Context, on bool) error {
	return f.record(f.enc.ChannelBulk(on))
}

func (f *fakeController) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func sampleSnapshot(updated bool) monitor.Snapshot {
	return monitor.Snapshot{
		Channels:  []protocol.ChannelState{protocol.Shorted, protocol.Switching, protocol.SwitchingAlt, protocol.HighZ},
		Frequency: 500,
		Last:      protocol.Sample{Target: 120, Input: 11.9, Output: 118.5, Frequency: 500, ChannelStates: "0123"},
		HasSample: true,
		Updated:   updated,
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServer_InitialFrameAndBroadcast(t *testing.T) {
	ctrl := newFakeController()
	s := New(config.ServerConfig{}, ctrl)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	initial := readFrame(t, conn)
	require.NotNil(t, initial.Telemetry)
	assert.False(t, initial.Telemetry.Valid)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// Stale ticks are not broadcast
	ctrl.callback(sampleSnapshot(false))
	ctrl.callback(sampleSnapshot(true))

	f := readFrame(t, conn)
	require.NotNil(t, f.Telemetry)
	assert.True(t, f.Telemetry.Valid)
	assert.Equal(t, 118.5, f.Telemetry.Output)
	assert.Equal(t, 500.0, f.Telemetry.Frequency)
	require.Len(t, f.Telemetry.Channels, 4)
	assert.Equal(t, Channel{State: 2, Label: "Switching (alt)"}, f.Telemetry.Channels[2])
}

func TestServer_Commands(t *testing.T) {
	ctrl := newFakeController()
	s := New(config.ServerConfig{}, ctrl)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)

	tests := []struct {
		cmd     Command
		wantOK  bool
		wantErr string
	}{
		{Command{ID: 1, Op: "voltage_up"}, true, ""},
		{Command{ID: 2, Op: "voltage", Value: "120"}, true, ""},
		{Command{ID: 3, Op: "voltage", Value: "401"}, false, "out of range"},
		{Command{ID: 4, Op: "frequency", Value: "abc"}, false, "frequency"},
		{Command{ID: 5, Op: "toggle", Channel: 3}, true, ""},
		{Command{ID: 6, Op: "all_off"}, true, ""},
		{Command{ID: 7, Op: "reboot"}, false, "unknown op"},
	}

	for _, tt := range tests {
		require.NoError(t, conn.WriteJSON(tt.cmd))
		f := readFrame(t, conn)
		require.NotNil(t, f.Reply, "op %s", tt.cmd.Op)
		assert.Equal(t, tt.cmd.ID, f.Reply.ID)
		assert.Equal(t, tt.wantOK, f.Reply.OK, "op %s", tt.cmd.Op)
		if tt.wantErr != "" {
			assert.Contains(t, f.Reply.Error, tt.wantErr)
		}
	}

	assert.Equal(t, []string{"V+", "V120", "C031", "C990"}, ctrl.recorded())
}

func TestServer_BadJSON(t *testing.T) {
	s := New(config.ServerConfig{}, newFakeController())

	f := s.handleCommand(context.Background(), []byte("{"))
	require.NotNil(t, f.Reply)
	assert.False(t, f.Reply.OK)
	assert.Contains(t, f.Reply.Error, "bad command")
}

func TestServer_Status(t *testing.T) {
	ctrl := newFakeController()
	ctrl.latest = sampleSnapshot(true)
	s := New(config.ServerConfig{}, ctrl)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var f Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	require.NotNil(t, f.Telemetry)
	assert.Equal(t, 120.0, f.Telemetry.Target)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
