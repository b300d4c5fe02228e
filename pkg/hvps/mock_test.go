package hvps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/protocol"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		SampleRate:   5 * time.Millisecond,
		SlewRate:     100,
		InputVoltage: 12,
		NoiseLevel:   0,
		StepVoltage:  10,
	}
}

func newTestMock(t *testing.T) *Mock {
	t.Helper()
	m := NewMock(testMockConfig(), protocol.DefaultChannels, protocol.DefaultLimits())
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewMock_NilConfig(t *testing.T) {
	m := NewMock(nil, 0, protocol.DefaultLimits())
	defer m.Close()

	assert.NotNil(t, m.cfg)
	assert.Equal(t, config.Default().Mock.SampleRate, m.cfg.SampleRate)
	assert.Len(t, m.states, protocol.DefaultChannels)
	assert.Equal(t, 1, m.frequency)
	assert.False(t, m.autosend)
}

func TestMock_SilentUntilAutosend(t *testing.T) {
	m := newTestMock(t)
	require.NoError(t, m.SetReadTimeout(30*time.Millisecond))

	buf := make([]byte, 256)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = m.Write(protocol.AutosendCommand)
	require.NoError(t, err)

	n, err = m.Read(buf)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Contains(t, string(buf[:n]), protocol.Marker)
}

func TestMock_ApplyCommands(t *testing.T) {
	m := newTestMock(t)
	e := protocol.NewEncoder(protocol.DefaultChannels, protocol.DefaultLimits())

	write := func(c protocol.Command) {
		_, err := m.Write(c)
		require.NoError(t, err)
	}

	v, err := e.VoltageAbsolute(120)
	require.NoError(t, err)
	write(v)
	write(e.VoltageStep(protocol.Up))
	f, err := e.FrequencyAbsolute(300)
	require.NoError(t, err)
	write(f)
	write(e.ChannelBulk(true))
	c, err := e.ChannelToggle(3, protocol.Switching)
	require.NoError(t, err)
	write(c)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 130.0, m.target)
	assert.Equal(t, 300, m.frequency)
	assert.Equal(t, protocol.HighZ, m.states[3])
	assert.Equal(t, protocol.Switching, m.states[0])
	assert.Equal(t, protocol.Switching, m.states[7])
}

func TestMock_ClampsSetpoints(t *testing.T) {
	m := newTestMock(t)

	_, err := m.Write([]byte("V999\nF0\nV-\nC991\nC990\n"))
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 390.0, m.target)
	assert.Equal(t, 1, m.frequency)
	for _, st := range m.states {
		assert.Equal(t, protocol.Shorted, st)
	}
}

func TestMock_StepSlewsOutput(t *testing.T) {
	m := newTestMock(t)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = 100
	m.output = 0
	m.states[2] = protocol.HighZ

	s := m.step(m.lastStep.Add(100 * time.Millisecond))
	assert.InDelta(t, 10.0, m.output, 1e-9)
	assert.InDelta(t, 10.0, s.Output, 0.01)
	assert.Equal(t, 100.0, s.Target)
	assert.Equal(t, 12.0, s.Input)
	assert.Equal(t, "00300000", s.ChannelStates)

	s = m.step(m.lastStep.Add(2 * time.Second))
	assert.InDelta(t, 100.0, s.Output, 0.01)
}

func TestMockSerial_Handshake(t *testing.T) {
	s := NewMockSerial(testMockConfig(), protocol.DefaultChannels, protocol.DefaultLimits(), 30*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, s.Connect())
	defer s.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		line, err := s.ReadLine()
		require.NoError(t, err)
		if line == "" {
			continue
		}
		sample, err := protocol.Decode(line)
		require.NoError(t, err)
		assert.Equal(t, "00000000", sample.ChannelStates)
		return
	}
	t.Fatal("no telemetry from mock board")
}

// TestMock_GracefulShutdown tests that Read fails once the mock is closed.
func TestMock_GracefulShutdown(t *testing.T) {
	m := NewMock(testMockConfig(), 0, protocol.DefaultLimits())
	require.NoError(t, m.SetReadTimeout(time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := m.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errMockClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Read did not return after Close")
	}

	_, err := m.Write([]byte("V+\n"))
	assert.Error(t, err)
	assert.NoError(t, m.Close())
}
