package solenoid

import (
	"fmt"
	"time"
)

// Stats is a point-in-time view of one channel.
type Stats struct {
	Channel      Channel
	Board        uint8
	Pin          uint8
	On           bool
	OnDuration   time.Duration
	TimeSinceOff time.Duration
	TotalOnTime  time.Duration
	Activations  uint32
	DutyCycle    float64
}

func (d *Driver) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// LastError is the outcome of the most recent operation, nil for success.
func (d *Driver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Driver) BoardCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.count
}

func (d *Driver) ChannelCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.channels()
}

// IsOn is false for channels out of range.
func (d *Driver) IsOn(ch Channel) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(ch) >= d.reg.channels() {
		return false
	}
	return d.states[ch].on
}

// State returns a copy of the channel's bookkeeping.
func (d *Driver) State(ch Channel) (ChannelState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(ch) >= d.reg.channels() {
		return ChannelState{}, false
	}
	return d.states[ch], true
}

func (d *Driver) Stats(ch Channel) (Stats, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(ch) >= d.reg.channels() {
		return Stats{}, false
	}
	now := d.now()
	st := d.states[ch]
	return Stats{
		Channel:      ch,
		Board:        st.board,
		Pin:          st.pin,
		On:           st.on,
		OnDuration:   st.OnDuration(now),
		TimeSinceOff: st.TimeSinceOff(now),
		TotalOnTime:  st.TotalOnTime(now),
		Activations:  st.activations,
		DutyCycle:    st.DutyCycle(d.cfg.DutyCycleWindow, now),
	}, true
}

// BoardMask is the cached output mask of board b, 0 if b is out of range.
func (d *Driver) BoardMask(b uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.mask(b)
}

func (d *Driver) BoardAddress(b uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg.address(b)
}

// ReadBack reads board b's output latch from the device.
func (d *Driver) ReadBack(b uint8) (uint8, error) {
	d.mu.Lock()
	defer d.unlock()
	if !d.initialized {
		return 0, d.report(newError(CodeNotInitialized, Global, nil))
	}
	if !d.reg.valid(b) {
		return 0, d.report(newError(CodeInvalidBoard, Global, nil))
	}
	v, err := d.reg.readPort(b)
	if err != nil {
		return 0, d.report(newError(CodeHardware, Global, fmt.Errorf("board %d: %w", b, err)))
	}
	return v, nil
}

// Scan probes every expander address and returns those that answer.
func (d *Driver) Scan() []uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return nil
	}
	var found []uint8
	for a := uint8(MinAddress); a <= MaxAddress; a++ {
		if d.bus.Probe(a) {
			d.debug(nil, fmt.Sprintf("found device at 0x%02X", a))
			found = append(found, a)
		}
	}
	return found
}

// Close forces every output off and releases the bus.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.unlock()
	var err error
	if d.initialized {
		err = d.emergencyStop()
	}
	d.initialized = false
	if d.bus != nil {
		if cerr := d.bus.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
