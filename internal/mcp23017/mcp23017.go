package mcp23017

import (
	"fmt"
	"time"

	"keyplayer/internal/i2c"
	"keyplayer/internal/solenoid"
)

// Minimal MCP23017 driver.
//
// Only port A is used, as eight push-pull outputs. Registers are addressed
// with IOCON.BANK=0, the power-on default.

const (
	regIODIRA = 0x00
	regIOCON  = 0x0A
	regGPIOA  = 0x12
	regOLATA  = 0x14

	// IOCON bits: sequential addressing off keeps single-register writes
	// from auto-incrementing into port B.
	ioconSEQOP = 0x20
)

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	WriteReg(reg, value byte) error
}

// Device is one MCP23017 expander.
type Device struct {
	dev  regIO
	addr uint8
}

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mcp23017: dev is nil")
	}
	return newWithIO(dev, uint8(dev.Addr()))
}

func newWithIO(dev regIO, addr uint8) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mcp23017: dev is nil")
	}
	return &Device{dev: dev, addr: addr}, nil
}

func (d *Device) Addr() uint8 { return d.addr }

// ConfigureOutputs makes all of port A outputs. IOCON is verified by reading
// it back, which is also the first transaction to reach the chip.
func (d *Device) ConfigureOutputs() error {
	if err := d.dev.WriteReg(regIOCON, ioconSEQOP); err != nil {
		return fmt.Errorf("mcp23017 0x%02X: iocon write failed: %w", d.addr, err)
	}
	got, err := d.dev.ReadRegU8(regIOCON)
	if err != nil {
		return fmt.Errorf("mcp23017 0x%02X: iocon read failed: %w", d.addr, err)
	}
	if got&ioconSEQOP == 0 {
		return fmt.Errorf("mcp23017 0x%02X: iocon=0x%02X did not latch", d.addr, got)
	}
	if err := d.dev.WriteReg(regIODIRA, 0x00); err != nil {
		return fmt.Errorf("mcp23017 0x%02X: iodir write failed: %w", d.addr, err)
	}
	return nil
}

// WritePin changes one output by read-modify-write of the output latch.
func (d *Device) WritePin(pin uint8, on bool) error {
	if pin > 7 {
		return fmt.Errorf("mcp23017 0x%02X: pin %d out of range", d.addr, pin)
	}
	lat, err := d.dev.ReadRegU8(regOLATA)
	if err != nil {
		return fmt.Errorf("mcp23017 0x%02X: olat read failed: %w", d.addr, err)
	}
	if on {
		lat |= 1 << pin
	} else {
		lat &^= 1 << pin
	}
	if err := d.dev.WriteReg(regGPIOA, lat); err != nil {
		return fmt.Errorf("mcp23017 0x%02X: gpio write failed: %w", d.addr, err)
	}
	return nil
}

// WritePort sets all eight outputs in one transaction.
func (d *Device) WritePort(mask uint8) error {
	if err := d.dev.WriteReg(regGPIOA, mask); err != nil {
		return fmt.Errorf("mcp23017 0x%02X: gpio write failed: %w", d.addr, err)
	}
	return nil
}

// ReadPort returns the pin levels of port A.
func (d *Device) ReadPort() (uint8, error) {
	v, err := d.dev.ReadRegU8(regGPIOA)
	if err != nil {
		return 0, fmt.Errorf("mcp23017 0x%02X: gpio read failed: %w", d.addr, err)
	}
	return v, nil
}

// Bus adapts an i2c.Bus to solenoid.Bus.
type Bus struct {
	bus *i2c.Bus
}

// OpenBus opens the i2c-dev node at path.
func OpenBus(path string) (*Bus, error) {
	b, err := i2c.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mcp23017: open %s: %w", path, err)
	}
	return &Bus{bus: b}, nil
}

func (b *Bus) Open(addr uint8) (solenoid.Expander, error) {
	d, err := New(b.bus.Dev(uint16(addr)))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (b *Bus) Probe(addr uint8) bool { return b.bus.Probe(uint16(addr)) }

func (b *Bus) SetClock(hz uint32) error { return b.bus.SetClock(hz) }

func (b *Bus) SetTimeout(d time.Duration) error { return b.bus.SetTimeout(d) }

func (b *Bus) Close() error { return b.bus.Close() }
