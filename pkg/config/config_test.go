package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gohvps/pkg/protocol"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.OpenTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.Poll.Period)
	assert.Equal(t, 300, cfg.Poll.HistoryLength)
	assert.Equal(t, 200, cfg.Poll.FlushThreshold)
	assert.Equal(t, 8, cfg.Board.Channels)
	assert.Equal(t, protocol.DefaultLimits(), cfg.Limits())
	assert.False(t, cfg.Recorder.Enabled)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyUSB0"
  baud_rate: 57600
  open_timeout: 1s
  read_timeout: 10ms

poll:
  period: 30ms
  history_length: 500
  flush_threshold: 400

board:
  channels: 4
  voltage_min: 10
  voltage_max: 300
  frequency_min: 5
  frequency_max: 500

recorder:
  enabled: true
  path: "/tmp/hvps"
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Serial.OpenTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 30*time.Millisecond, cfg.Poll.Period)
	assert.Equal(t, 500, cfg.Poll.HistoryLength)
	assert.Equal(t, 400, cfg.Poll.FlushThreshold)
	assert.Equal(t, 4, cfg.Board.Channels)
	assert.Equal(t, protocol.Limits{VoltageMin: 10, VoltageMax: 300, FrequencyMin: 5, FrequencyMax: 500}, cfg.Limits())
	assert.True(t, cfg.Recorder.Enabled)
	assert.Equal(t, "/tmp/hvps", cfg.Recorder.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	name := writeTemp(t, "invalid: yaml: content: [")

	cfg, err := Load(name)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"voltage range", "board:\n  voltage_min: 500\n  voltage_max: 400\n"},
		{"frequency range", "board:\n  frequency_min: 900\n  frequency_max: 100\n"},
		{"negative channels", "board:\n  channels: -1\n"},
		{"broadcast channel", "board:\n  channels: 100\n"},
		{"negative period", "poll:\n  period: -5ms\n"},
		{"negative history", "poll:\n  history_length: -1\n"},
		{"negative flush threshold", "poll:\n  flush_threshold: -10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.yaml))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Board.Channels = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Poll.Period = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_PartialYAML(t *testing.T) {
	name := writeTemp(t, `
serial:
  port: "/dev/ttyUSB0"
poll:
  period: 0s
`)

	cfg, err := Load(name)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)         // default
	assert.Equal(t, 20*time.Millisecond, cfg.Poll.Period) // restored default
	assert.Equal(t, 400, cfg.Board.VoltageMax)            // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyACM1"
	cfg.Poll.FlushThreshold = 512

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())
	require.NoError(t, tmpfile.Close())

	require.NoError(t, cfg.Save(tmpfile.Name()))

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", loaded.Serial.Port)
	assert.Equal(t, 512, loaded.Poll.FlushThreshold)
	assert.Equal(t, 500*time.Millisecond, loaded.Serial.OpenTimeout)
}
