package solenoid

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// AllOn switches every channel on individually, so each one passes through
// the safety policy. A hardware failure aborts at once; safety denials are
// counted and the first one is returned after all channels were tried.
func (d *Driver) AllOn() error {
	d.mu.Lock()
	defer d.unlock()
	if !d.initialized {
		return d.report(newError(CodeNotInitialized, Global, nil))
	}

	var first error
	failed := 0
	for i := 0; i < d.reg.channels(); i++ {
		err := d.on(Channel(i))
		if err == nil {
			continue
		}
		if CodeOf(err) == CodeHardware {
			d.debug(logrus.Fields{"channel": i}, "all on: bus error, aborting")
			return err
		}
		failed++
		if first == nil {
			first = err
		}
	}
	if first != nil {
		d.debug(logrus.Fields{"failed": failed}, "all on: channels refused by safety checks")
		d.lastErr = first
		return first
	}
	d.lastErr = nil
	return nil
}

// AllOff writes zero to every board without consulting the safety policy.
func (d *Driver) AllOff() error {
	d.mu.Lock()
	defer d.unlock()
	if !d.initialized {
		return d.report(newError(CodeNotInitialized, Global, nil))
	}
	now := d.now()
	for b := uint8(0); int(b) < d.reg.count; b++ {
		if err := d.reg.writePort(b, 0x00); err != nil {
			return d.report(newError(CodeHardware, Global, fmt.Errorf("board %d: %w", b, err)))
		}
		d.applyMask(b, 0x00, now)
	}
	d.lastErr = nil
	return nil
}

// EmergencyStop drives every board to zero with no precondition checks. The
// write goes out even when the cached mask already reads zero, every board
// is attempted even if an earlier one fails, and the supply interlock is
// dropped. Logical state is forced off regardless of bus errors.
func (d *Driver) EmergencyStop() error {
	d.mu.Lock()
	defer d.unlock()
	return d.emergencyStop()
}

func (d *Driver) emergencyStop() error {
	var first error
	for b := uint8(0); int(b) < d.reg.count; b++ {
		if err := d.reg.forcePort(b, 0x00); err != nil && first == nil {
			first = fmt.Errorf("board %d: %w", b, err)
		}
	}
	now := d.now()
	for i := 0; i < d.reg.channels(); i++ {
		d.states[i].update(false, now)
	}
	d.deadlines = [MaxChannels]time.Time{}
	if d.interlock != nil {
		if err := d.interlock.SetEnabled(false); err != nil && first == nil {
			first = fmt.Errorf("interlock: %w", err)
		}
	}
	d.debug(nil, "emergency stop: all channels off")
	if first != nil {
		return d.report(newError(CodeHardware, Global, first))
	}
	d.lastErr = nil
	return nil
}

// SetAll applies one mask per board, bit i of masks[b] being pin i of board
// b. Extra masks are ignored. A hardware failure aborts; safety denials on
// one board do not stop the others and the last one is returned.
func (d *Driver) SetAll(masks []uint8) error {
	d.mu.Lock()
	defer d.unlock()
	if !d.initialized {
		return d.report(newError(CodeNotInitialized, Global, nil))
	}
	if len(masks) < d.reg.count {
		return d.report(newError(CodeInvalidBoard, Global, fmt.Errorf("%d masks for %d boards", len(masks), d.reg.count)))
	}
	var blocked error
	for b := uint8(0); int(b) < d.reg.count; b++ {
		err := d.setBoard(b, masks[b])
		if err == nil {
			continue
		}
		if CodeOf(err) == CodeHardware {
			return err
		}
		blocked = err
	}
	if blocked != nil {
		d.lastErr = blocked
		return blocked
	}
	d.lastErr = nil
	return nil
}

// SetBoardChannels writes mask to one board in a single transaction.
// Channels that would switch on but fail the safety policy are cleared from
// the mask, so they keep their previous state, while the rest are applied.
// The last denial is returned. Channels already on stay on without being
// re-stamped.
func (d *Driver) SetBoardChannels(b uint8, mask uint8) error {
	d.mu.Lock()
	defer d.unlock()
	if !d.initialized {
		return d.report(newError(CodeNotInitialized, Global, nil))
	}
	return d.setBoard(b, mask)
}

func (d *Driver) setBoard(b uint8, mask uint8) error {
	if !d.reg.valid(b) {
		return d.report(newError(CodeInvalidBoard, Global, fmt.Errorf("board %d of %d", b, d.reg.count)))
	}
	now := d.now()
	cur := d.reg.mask(b)
	var blocked *Error
	for pin := uint8(0); pin < ChannelsPerBoard; pin++ {
		bit := uint8(1) << pin
		if mask&bit == 0 || cur&bit != 0 {
			continue
		}
		ch := Channel(b*ChannelsPerBoard + pin)
		if e := d.pol.canActivate(&d.states[ch], now); e != nil {
			mask &^= bit
			blocked = e
			d.report(e)
			d.debug(logrus.Fields{"channel": ch}, "channel blocked by safety")
		}
	}

	if err := d.reg.writePort(b, mask); err != nil {
		return d.report(newError(CodeHardware, Global, fmt.Errorf("board %d: %w", b, err)))
	}
	d.applyMask(b, mask, now)

	if blocked != nil {
		d.lastErr = blocked
		return blocked
	}
	d.lastErr = nil
	return nil
}

// applyMask brings the logical state of board b in line with mask.
func (d *Driver) applyMask(b, mask uint8, now time.Time) {
	for pin := uint8(0); pin < ChannelsPerBoard; pin++ {
		ch := b*ChannelsPerBoard + pin
		on := mask&(1<<pin) != 0
		d.states[ch].update(on, now)
		if !on {
			d.deadlines[ch] = time.Time{}
		}
	}
}
