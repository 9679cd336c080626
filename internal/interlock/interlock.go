// Package interlock drives the output line that switches the solenoid supply
// rail. The line is requested inactive, so the coils stay unpowered until
// the driver has cleared every expander.
package interlock

import "fmt"

// Config selects the GPIO line.
type Config struct {
	Chip string
	Line int
	// ActiveLow inverts the line for enable inputs that are asserted low.
	ActiveLow bool
}

// line is the part of a GPIO line the interlock needs.
type line interface {
	SetValue(v int) error
	Close() error
}

// Interlock implements solenoid.Interlock over a GPIO output line.
type Interlock struct {
	line    line
	closer  func() error
	enabled bool
}

var openLineFn = openLine

// Open requests the line as an output, initially disabled.
func Open(cfg Config) (*Interlock, error) {
	if cfg.Line < 0 {
		return nil, fmt.Errorf("interlock: invalid line %d", cfg.Line)
	}
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	l, closer, err := openLineFn(cfg)
	if err != nil {
		return nil, err
	}
	return &Interlock{line: l, closer: closer}, nil
}

// SetEnabled drives the supply enable line.
func (il *Interlock) SetEnabled(on bool) error {
	if il == nil || il.line == nil {
		return fmt.Errorf("interlock: not open")
	}
	v := 0
	if on {
		v = 1
	}
	if err := il.line.SetValue(v); err != nil {
		return fmt.Errorf("interlock: set %d: %w", v, err)
	}
	il.enabled = on
	return nil
}

func (il *Interlock) Enabled() bool { return il != nil && il.enabled }

// Close disables the supply and releases the line.
func (il *Interlock) Close() error {
	if il == nil || il.line == nil {
		return nil
	}
	_ = il.line.SetValue(0)
	il.enabled = false
	err := il.line.Close()
	il.line = nil
	if il.closer != nil {
		if cerr := il.closer(); cerr != nil && err == nil {
			err = cerr
		}
		il.closer = nil
	}
	return err
}
