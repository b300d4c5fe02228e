package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/gohvps/pkg/protocol"
)

// Config represents the application configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Poll     PollConfig     `yaml:"poll"`
	Board    BoardConfig    `yaml:"board"`
	Mock     MockConfig     `yaml:"mock"`
	Recorder RecorderConfig `yaml:"recorder"`
	Server   ServerConfig   `yaml:"server"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	OpenTimeout time.Duration `yaml:"open_timeout"` // Read timeout while probing the board on open
	ReadTimeout time.Duration `yaml:"read_timeout"` // Read timeout for each poll tick
}

// PollConfig contains polling loop parameters.
type PollConfig struct {
	Period         time.Duration `yaml:"period"`          // Tick period
	HistoryLength  int           `yaml:"history_length"`  // Samples kept per chart
	FlushThreshold int           `yaml:"flush_threshold"` // Unread bytes above which input is discarded
}

// BoardConfig describes the HVPS board.
type BoardConfig struct {
	Channels     int `yaml:"channels"`
	VoltageMin   int `yaml:"voltage_min"`
	VoltageMax   int `yaml:"voltage_max"`
	FrequencyMin int `yaml:"frequency_min"`
	FrequencyMax int `yaml:"frequency_max"`
}

// MockConfig contains mocked board configuration.
type MockConfig struct {
	SampleRate   time.Duration `yaml:"sample_rate"`   // Telemetry period
	SlewRate     float64       `yaml:"slew_rate"`     // Output voltage slew (V/s)
	InputVoltage float64       `yaml:"input_voltage"` // Simulated DCDC input (V)
	NoiseLevel   float64       `yaml:"noise_level"`   // Noise amplitude (V)
	StepVoltage  int           `yaml:"step_voltage"`  // Target change for V+ / V-
}

// RecorderConfig contains CSV telemetry recording configuration.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxRows int    `yaml:"max_rows"` // Rotate after this many rows
}

// ServerConfig contains the headless WebSocket feed configuration.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	limits := protocol.DefaultLimits()
	return &Config{
		Serial: SerialConfig{
			Port:        "COM3", // Default for Windows, should be "/dev/ttyUSB0" on Linux
			BaudRate:    115200,
			OpenTimeout: 500 * time.Millisecond,
			ReadTimeout: 5 * time.Millisecond,
		},
		Poll: PollConfig{
			Period:         20 * time.Millisecond,
			HistoryLength:  300,
			FlushThreshold: 200,
		},
		Board: BoardConfig{
			Channels:     protocol.DefaultChannels,
			VoltageMin:   limits.VoltageMin,
			VoltageMax:   limits.VoltageMax,
			FrequencyMin: limits.FrequencyMin,
			FrequencyMax: limits.FrequencyMax,
		},
		Mock: MockConfig{
			SampleRate:   30 * time.Millisecond,
			SlewRate:     100,
			InputVoltage: 12,
			NoiseLevel:   0.2,
			StepVoltage:  10,
		},
		Recorder: RecorderConfig{
			Enabled: false,
			Path:    "recordings",
			MaxRows: 100_000,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// Limits returns the board setpoint limits.
func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{
		VoltageMin:   c.Board.VoltageMin,
		VoltageMax:   c.Board.VoltageMax,
		FrequencyMin: c.Board.FrequencyMin,
		FrequencyMax: c.Board.FrequencyMax,
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Board.VoltageMin > c.Board.VoltageMax {
		return fmt.Errorf("board: voltage_min %d > voltage_max %d", c.Board.VoltageMin, c.Board.VoltageMax)
	}
	if c.Board.FrequencyMin > c.Board.FrequencyMax {
		return fmt.Errorf("board: frequency_min %d > frequency_max %d", c.Board.FrequencyMin, c.Board.FrequencyMax)
	}
	if c.Board.Channels < 1 {
		return fmt.Errorf("board: channels must be at least 1, got %d", c.Board.Channels)
	}
	if c.Board.Channels > protocol.BroadcastChannel {
		return fmt.Errorf("board: %d channels collides with broadcast channel %d", c.Board.Channels, protocol.BroadcastChannel)
	}
	if c.Poll.Period <= 0 {
		return fmt.Errorf("poll: period must be positive, got %v", c.Poll.Period)
	}
	if c.Poll.HistoryLength < 0 {
		return fmt.Errorf("poll: negative history_length %d", c.Poll.HistoryLength)
	}
	if c.Poll.FlushThreshold < 0 {
		return fmt.Errorf("poll: negative flush_threshold %d", c.Poll.FlushThreshold)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
// Board limits are left alone since zero is a valid voltage_min.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.OpenTimeout == 0 {
		c.Serial.OpenTimeout = def.Serial.OpenTimeout
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Poll.Period == 0 {
		c.Poll.Period = def.Poll.Period
	}
	if c.Poll.HistoryLength == 0 {
		c.Poll.HistoryLength = def.Poll.HistoryLength
	}
	if c.Poll.FlushThreshold == 0 {
		c.Poll.FlushThreshold = def.Poll.FlushThreshold
	}

	if c.Board.Channels == 0 {
		c.Board.Channels = def.Board.Channels
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.SlewRate == 0 {
		c.Mock.SlewRate = def.Mock.SlewRate
	}
	if c.Mock.StepVoltage == 0 {
		c.Mock.StepVoltage = def.Mock.StepVoltage
	}

	if c.Recorder.Path == "" {
		c.Recorder.Path = def.Recorder.Path
	}
	if c.Recorder.MaxRows == 0 {
		c.Recorder.MaxRows = def.Recorder.MaxRows
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = def.Server.ListenAddr
	}
}
