package solenoid

import (
	"fmt"
	"sync"
	"time"
)

// FakeBus is an in-memory Bus for tests and dry runs. Every address in
// Present answers probes and can be opened.
type FakeBus struct {
	mu sync.Mutex

	// Present lists the addresses that respond. Nil means all of 0x20-0x27.
	Present []uint8
	// OpenError, if set, is returned by Open.
	OpenError error

	ClockHz uint32
	Timeout time.Duration
	Closed  bool

	devices map[uint8]*FakeExpander
}

func NewFakeBus() *FakeBus {
	return &FakeBus{devices: make(map[uint8]*FakeExpander)}
}

func (b *FakeBus) present(addr uint8) bool {
	if b.Present == nil {
		return addr >= MinAddress && addr <= MaxAddress
	}
	for _, a := range b.Present {
		if a == addr {
			return true
		}
	}
	return false
}

// Open returns the same FakeExpander for repeated opens of one address.
func (b *FakeBus) Open(addr uint8) (Expander, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenError != nil {
		return nil, b.OpenError
	}
	if !b.present(addr) {
		return nil, fmt.Errorf("no device at 0x%02X", addr)
	}
	if b.devices == nil {
		b.devices = make(map[uint8]*FakeExpander)
	}
	dev, ok := b.devices[addr]
	if !ok {
		dev = &FakeExpander{Addr: addr}
		b.devices[addr] = dev
	}
	return dev, nil
}

// Device returns the expander at addr, creating it if needed, so tests can
// inject faults before Begin.
func (b *FakeBus) Device(addr uint8) *FakeExpander {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.devices == nil {
		b.devices = make(map[uint8]*FakeExpander)
	}
	dev, ok := b.devices[addr]
	if !ok {
		dev = &FakeExpander{Addr: addr}
		b.devices[addr] = dev
	}
	return dev
}

func (b *FakeBus) Probe(addr uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.present(addr)
}

func (b *FakeBus) SetClock(hz uint32) error {
	b.mu.Lock()
	b.ClockHz = hz
	b.mu.Unlock()
	return nil
}

func (b *FakeBus) SetTimeout(d time.Duration) error {
	b.mu.Lock()
	b.Timeout = d
	b.mu.Unlock()
	return nil
}

func (b *FakeBus) Close() error {
	b.mu.Lock()
	b.Closed = true
	b.mu.Unlock()
	return nil
}

// FakeExpander records writes to an emulated output latch.
type FakeExpander struct {
	Addr uint8

	// Latch is the current output register.
	Latch      uint8
	Configured bool

	PinWrites  int
	PortWrites int

	// WriteError, if set, fails every write without touching Latch.
	WriteError error
	ReadError  error
}

func (e *FakeExpander) ConfigureOutputs() error {
	if e.WriteError != nil {
		return e.WriteError
	}
	e.Configured = true
	return nil
}

func (e *FakeExpander) WritePin(pin uint8, on bool) error {
	if e.WriteError != nil {
		return e.WriteError
	}
	if pin >= ChannelsPerBoard {
		return fmt.Errorf("pin %d out of range", pin)
	}
	e.PinWrites++
	if on {
		e.Latch |= 1 << pin
	} else {
		e.Latch &^= 1 << pin
	}
	return nil
}

func (e *FakeExpander) WritePort(mask uint8) error {
	if e.WriteError != nil {
		return e.WriteError
	}
	e.PortWrites++
	e.Latch = mask
	return nil
}

func (e *FakeExpander) ReadPort() (uint8, error) {
	if e.ReadError != nil {
		return 0, e.ReadError
	}
	return e.Latch, nil
}

// FakeInterlock records the supply enable state.
type FakeInterlock struct {
	Enabled bool
	Changes int
	Err     error
}

func (f *FakeInterlock) SetEnabled(on bool) error {
	if f.Err != nil {
		return f.Err
	}
	f.Enabled = on
	f.Changes++
	return nil
}
