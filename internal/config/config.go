package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"keyplayer/internal/solenoid"
)

type Config struct {
	Bus       BusConfig       `yaml:"bus"`
	Safety    SafetyConfig    `yaml:"safety"`
	Interlock InterlockConfig `yaml:"interlock"`
	Notes     NotesConfig     `yaml:"notes"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log"`
}

type BusConfig struct {
	Device  string        `yaml:"device"`
	Boards  []int         `yaml:"boards"`
	ClockHz uint32        `yaml:"clock_hz"`
	Timeout time.Duration `yaml:"timeout"`
}

type SafetyConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MaxOnTime       time.Duration `yaml:"max_on_time"`
	MinOffTime      time.Duration `yaml:"min_off_time"`
	MaxDutyCycle    float64       `yaml:"max_duty_cycle"`
	DutyCycleWindow time.Duration `yaml:"duty_cycle_window"`
}

type InterlockConfig struct {
	Enable    bool   `yaml:"enable"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

type NotesConfig struct {
	// BaseNote is the MIDI note driving channel 0.
	BaseNote int `yaml:"base_note"`
	// MIDIChannel restricts input to one MIDI channel (0-15); -1 accepts all.
	MIDIChannel   int           `yaml:"midi_channel"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Debug turns on the driver's per-operation tracing.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used for keys absent from the file.
// Explicit zero durations in the file are kept: they disable the matching
// safety limit.
func Default() Config {
	s := solenoid.DefaultConfig()
	return Config{
		Bus: BusConfig{
			Device:  "/dev/i2c-1",
			Boards:  []int{solenoid.MinAddress},
			ClockHz: s.BusClockHz,
			Timeout: s.BusTimeout,
		},
		Safety: SafetyConfig{
			Enabled:         s.SafetyEnabled,
			MaxOnTime:       s.MaxOnTime,
			MinOffTime:      s.MinOffTime,
			MaxDutyCycle:    s.MaxDutyCycle,
			DutyCycleWindow: s.DutyCycleWindow,
		},
		Interlock: InterlockConfig{Chip: "gpiochip0"},
		Notes: NotesConfig{
			BaseNote:      21,
			MIDIChannel:   -1,
			SweepInterval: 10 * time.Millisecond,
		},
		MQTT: MQTTConfig{Topic: "keyplayer/events"},
		Log:  LogConfig{Level: "info"},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	// Boards is replaced, not merged, when present.
	cfg.Bus.Boards = nil
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Bus.Boards == nil {
		cfg.Bus.Boards = []int{solenoid.MinAddress}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Bus.Device == "" {
		return fmt.Errorf("bus.device is required")
	}
	if len(c.Bus.Boards) == 0 || len(c.Bus.Boards) > solenoid.MaxBoards {
		return fmt.Errorf("bus.boards must list 1-%d addresses", solenoid.MaxBoards)
	}
	seen := map[int]bool{}
	for _, a := range c.Bus.Boards {
		if a < solenoid.MinAddress || a > solenoid.MaxAddress {
			return fmt.Errorf("bus.boards address 0x%02X outside 0x%02X-0x%02X", a, solenoid.MinAddress, solenoid.MaxAddress)
		}
		if seen[a] {
			return fmt.Errorf("bus.boards has duplicate address 0x%02X", a)
		}
		seen[a] = true
	}
	if c.Bus.Timeout < 0 {
		return fmt.Errorf("bus.timeout must be >= 0")
	}

	s := c.Safety
	if s.MaxOnTime < 0 || s.MinOffTime < 0 || s.DutyCycleWindow < 0 {
		return fmt.Errorf("safety durations must be >= 0")
	}
	if s.MaxDutyCycle < 0 || s.MaxDutyCycle > 1 {
		return fmt.Errorf("safety.max_duty_cycle must be between 0 and 1")
	}

	if c.Interlock.Enable && c.Interlock.Line < 0 {
		return fmt.Errorf("interlock.line must be >= 0 when interlock.enable is true")
	}

	n := c.Notes
	if n.BaseNote < 0 || n.BaseNote > 127 {
		return fmt.Errorf("notes.base_note must be between 0 and 127")
	}
	if n.MIDIChannel < -1 || n.MIDIChannel > 15 {
		return fmt.Errorf("notes.midi_channel must be -1 or between 0 and 15")
	}
	if n.SweepInterval <= 0 {
		return fmt.Errorf("notes.sweep_interval must be > 0")
	}
	if s.MaxOnTime > 0 && n.SweepInterval >= s.MaxOnTime {
		return fmt.Errorf("notes.sweep_interval must be shorter than safety.max_on_time")
	}

	if c.MQTT.Enable {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt.enable is true")
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Addresses returns the board addresses in configured order.
func (c Config) Addresses() []uint8 {
	out := make([]uint8, 0, len(c.Bus.Boards))
	for _, a := range c.Bus.Boards {
		out = append(out, uint8(a))
	}
	return out
}

// Solenoid converts the file settings to driver settings.
func (c Config) Solenoid() solenoid.Config {
	return solenoid.Config{
		MaxOnTime:       c.Safety.MaxOnTime,
		MinOffTime:      c.Safety.MinOffTime,
		MaxDutyCycle:    c.Safety.MaxDutyCycle,
		DutyCycleWindow: c.Safety.DutyCycleWindow,
		BusTimeout:      c.Bus.Timeout,
		BusClockHz:      c.Bus.ClockHz,
		SafetyEnabled:   c.Safety.Enabled,
		Debug:           c.Log.Debug,
	}
}
