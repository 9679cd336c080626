package solenoid

import (
	"fmt"
	"time"
)

const (
	// MaxBoards is the number of expanders addressable on one bus.
	MaxBoards = 8
	// ChannelsPerBoard is the number of outputs driven on each expander.
	ChannelsPerBoard = 8
	// MaxChannels is the fixed channel capacity of a Driver.
	MaxChannels = MaxBoards * ChannelsPerBoard

	// MinAddress and MaxAddress bound the expander address straps.
	MinAddress = 0x20
	MaxAddress = 0x27
)

const (
	DefaultMaxOnTime       = 5 * time.Second
	DefaultMinOffTime      = 50 * time.Millisecond
	DefaultMaxDutyCycle    = 0.5
	DefaultDutyCycleWindow = 10 * time.Second
	DefaultBusTimeout      = 100 * time.Millisecond
	DefaultBusClockHz      = 400000

	// fallbackDutyEstimate is the projected on-time used for duty checks when
	// no cooldown is configured.
	fallbackDutyEstimate = 100 * time.Millisecond
)

// Config holds the safety limits and bus parameters of a Driver.
type Config struct {
	// MaxOnTime is the longest a channel may stay energized before the sweep
	// forces it off. Zero disables the timeout.
	MaxOnTime time.Duration
	// MinOffTime is the cooldown a channel must spend off before it may be
	// activated again. Zero disables cooldown enforcement.
	MinOffTime time.Duration
	// MaxDutyCycle is the permitted on fraction (0..1) of DutyCycleWindow.
	// 1 disables duty limiting.
	MaxDutyCycle float64
	// DutyCycleWindow is the length of the periodically reset duty window.
	DutyCycleWindow time.Duration

	// BusTimeout bounds a single bus transaction.
	BusTimeout time.Duration
	BusClockHz uint32

	// SafetyEnabled gates cooldown and duty checks. The MaxOnTime sweep is
	// not affected by it.
	SafetyEnabled bool
	Debug         bool
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MaxOnTime:       DefaultMaxOnTime,
		MinOffTime:      DefaultMinOffTime,
		MaxDutyCycle:    DefaultMaxDutyCycle,
		DutyCycleWindow: DefaultDutyCycleWindow,
		BusTimeout:      DefaultBusTimeout,
		BusClockHz:      DefaultBusClockHz,
		SafetyEnabled:   true,
	}
}

func (c Config) Validate() error {
	if c.MaxDutyCycle < 0 || c.MaxDutyCycle > 1 {
		return fmt.Errorf("max duty cycle %v out of range [0,1]", c.MaxDutyCycle)
	}
	if c.MaxOnTime < 0 || c.MinOffTime < 0 || c.DutyCycleWindow < 0 || c.BusTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// dutyLimited reports whether duty-cycle limiting is active.
func (c Config) dutyLimited() bool {
	return c.MaxDutyCycle < 1 && c.DutyCycleWindow > 0
}

// dutyEstimate is the on-time assumed for an activation when projecting its
// duty cycle. It is a heuristic, not a measurement.
func (c Config) dutyEstimate() time.Duration {
	if c.MinOffTime > 0 {
		return c.MinOffTime
	}
	return fallbackDutyEstimate
}
