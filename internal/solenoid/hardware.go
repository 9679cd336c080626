package solenoid

import "time"

// Expander is one 8-output GPIO expander as seen by the driver. Pin and mask
// bit i both refer to output i of the driven port.
type Expander interface {
	ConfigureOutputs() error
	WritePin(pin uint8, on bool) error
	WritePort(mask uint8) error
	ReadPort() (uint8, error)
}

// Bus opens expanders by address. The driver owns the bus exclusively once
// Begin has been called.
type Bus interface {
	Open(addr uint8) (Expander, error)
	Probe(addr uint8) bool
	SetClock(hz uint32) error
	SetTimeout(d time.Duration) error
	Close() error
}

// Interlock gates the solenoid supply rail. It is asserted once every board
// is known to be all-off and dropped on emergency stop.
type Interlock interface {
	SetEnabled(on bool) error
}
