// Package solenoid drives banks of solenoids through 8-output I2C GPIO
// expanders while enforcing thermal limits: a maximum continuous on-time, a
// cooldown between activations and a duty-cycle budget per channel.
//
// A Driver is meant to be used from one control loop that calls Update at an
// interval well below Config.MaxOnTime. Calls are serialized internally, so a
// second goroutine (for example a signal handler calling EmergencyStop) is
// safe, but the timeout guarantee still depends on Update being called.
package solenoid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	nowFn   = time.Now
	afterFn = time.After
)

// Driver is the controller for every channel on one bus.
type Driver struct {
	mu sync.Mutex

	bus       Bus
	cfg       Config
	pol       policy
	reg       registry
	states    [MaxChannels]ChannelState
	deadlines [MaxChannels]time.Time

	initialized bool
	lastErr     error

	observer  func(error)
	pending   []*Error
	interlock Interlock
	log       *logrus.Entry

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New returns an uninitialized driver for bus. Begin must succeed before any
// channel can be driven.
func New(bus Bus, cfg Config) *Driver {
	d := &Driver{
		bus:   bus,
		cfg:   cfg,
		log:   logrus.NewEntry(logrus.StandardLogger()),
		now:   nowFn,
		after: afterFn,
	}
	d.pol = policy{cfg: &d.cfg}
	return d
}

// SetLogger replaces the logger used for debug output.
func (d *Driver) SetLogger(log *logrus.Entry) {
	if log == nil {
		return
	}
	d.mu.Lock()
	d.log = log
	d.mu.Unlock()
}

// SetInterlock registers the supply interlock. It must be set before Begin
// to be asserted there.
func (d *Driver) SetInterlock(il Interlock) {
	d.mu.Lock()
	d.interlock = il
	d.mu.Unlock()
}

// SetObserver registers fn to receive every reported error. fn runs
// synchronously on the calling goroutine after the driver is unlocked, so it
// may query the driver, but it should return quickly.
func (d *Driver) SetObserver(fn func(error)) {
	d.mu.Lock()
	d.observer = fn
	d.mu.Unlock()
}

func (d *Driver) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetConfig replaces the configuration. New limits apply to the next check;
// bus parameters are pushed to the bus immediately if it is open.
func (d *Driver) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("solenoid: %w", err)
	}
	d.mu.Lock()
	defer d.unlock()
	d.cfg = cfg
	if d.initialized {
		if err := d.applyBusParams(); err != nil {
			return d.report(newError(CodeHardware, Global, err))
		}
	}
	return nil
}

// Begin validates the board addresses, configures every expander's outputs
// and drives them all low. A rejected address list leaves the driver as it
// was. Once validation passes, boards from a previous Begin are forced off
// first, and any later failure leaves the driver uninitialized with no boards.
func (d *Driver) Begin(addrs ...uint8) error {
	d.mu.Lock()
	defer d.unlock()

	if len(addrs) == 0 || len(addrs) > MaxBoards {
		return d.report(newError(CodeInvalidBoard, Global, fmt.Errorf("%d boards, want 1-%d", len(addrs), MaxBoards)))
	}
	var seen [MaxAddress + 1]bool
	for _, a := range addrs {
		if a < MinAddress || a > MaxAddress {
			return d.report(newError(CodeInvalidBoard, Global, fmt.Errorf("address 0x%02X outside 0x%02X-0x%02X", a, MinAddress, MaxAddress)))
		}
		if seen[a] {
			return d.report(newError(CodeInvalidBoard, Global, fmt.Errorf("address 0x%02X listed twice", a)))
		}
		seen[a] = true
	}

	if d.initialized {
		// Errors are already reported; the new boards are set up regardless.
		_ = d.emergencyStop()
		d.initialized = false
	}
	d.reg.reset()
	d.states = [MaxChannels]ChannelState{}
	d.deadlines = [MaxChannels]time.Time{}

	if d.bus == nil {
		return d.report(newError(CodeHardware, Global, fmt.Errorf("no bus")))
	}
	if err := d.applyBusParams(); err != nil {
		return d.report(newError(CodeHardware, Global, err))
	}

	var reg registry
	for _, a := range addrs {
		d.debug(logrus.Fields{"board": reg.count, "addr": fmt.Sprintf("0x%02X", a)}, "initializing board")
		dev, err := d.bus.Open(a)
		if err != nil {
			return d.report(newError(CodeHardware, Global, fmt.Errorf("open 0x%02X: %w", a, err)))
		}
		if err := dev.ConfigureOutputs(); err != nil {
			return d.report(newError(CodeHardware, Global, fmt.Errorf("configure 0x%02X: %w", a, err)))
		}
		if err := dev.WritePort(0x00); err != nil {
			return d.report(newError(CodeHardware, Global, fmt.Errorf("clear 0x%02X: %w", a, err)))
		}
		reg.add(a, dev)
	}

	if d.interlock != nil {
		if err := d.interlock.SetEnabled(true); err != nil {
			return d.report(newError(CodeHardware, Global, fmt.Errorf("interlock: %w", err)))
		}
	}

	d.reg = reg
	for i := 0; i < d.reg.channels(); i++ {
		st := newChannelState(uint8(i/ChannelsPerBoard), uint8(i%ChannelsPerBoard))
		d.states[st.index] = st
	}
	d.initialized = true
	d.lastErr = nil
	d.debug(logrus.Fields{"boards": d.reg.count}, "driver initialized")
	return nil
}

func (d *Driver) applyBusParams() error {
	if err := d.bus.SetClock(d.cfg.BusClockHz); err != nil {
		return fmt.Errorf("set clock: %w", err)
	}
	if d.cfg.BusTimeout > 0 {
		if err := d.bus.SetTimeout(d.cfg.BusTimeout); err != nil {
			return fmt.Errorf("set timeout: %w", err)
		}
	}
	return nil
}

// On energizes ch if the safety policy allows it. A channel that is already
// on is left untouched.
func (d *Driver) On(ch Channel) error {
	d.mu.Lock()
	defer d.unlock()
	return d.on(ch)
}

// Off de-energizes ch. It is never refused by the safety policy.
func (d *Driver) Off(ch Channel) error {
	d.mu.Lock()
	defer d.unlock()
	return d.off(ch)
}

func (d *Driver) Set(ch Channel, on bool) error {
	if on {
		return d.On(ch)
	}
	return d.Off(ch)
}

func (d *Driver) Toggle(ch Channel) error {
	d.mu.Lock()
	defer d.unlock()
	if e := d.check(ch); e != nil {
		return d.report(e)
	}
	if d.states[ch].on {
		return d.off(ch)
	}
	return d.on(ch)
}

// Pulse energizes ch for duration, clamped to MaxOnTime, and blocks until it
// has been switched off again. The driver is not locked while waiting, so a
// concurrent Update keeps sweeping. Cancelling ctx ends the pulse early.
func (d *Driver) Pulse(ctx context.Context, ch Channel, duration time.Duration) error {
	d.mu.Lock()
	duration = d.clampPulse(duration)
	err := d.on(ch)
	d.unlock()
	if err != nil {
		return err
	}

	select {
	case <-d.after(duration):
	case <-ctx.Done():
	}

	if err := d.Off(ch); err != nil {
		return err
	}
	return ctx.Err()
}

// StartPulse energizes ch and returns at once; the next Update at or after
// the deadline switches it off. Off on the channel cancels the pulse.
func (d *Driver) StartPulse(ch Channel, duration time.Duration) error {
	d.mu.Lock()
	defer d.unlock()
	duration = d.clampPulse(duration)
	if err := d.on(ch); err != nil {
		return err
	}
	d.deadlines[ch] = d.now().Add(duration)
	return nil
}

func (d *Driver) clampPulse(duration time.Duration) time.Duration {
	if d.cfg.MaxOnTime > 0 && duration > d.cfg.MaxOnTime {
		d.debug(logrus.Fields{"requested": duration, "max": d.cfg.MaxOnTime}, "pulse duration clamped")
		return d.cfg.MaxOnTime
	}
	return duration
}

// Update is the periodic safety sweep. Scheduled pulses whose deadline has
// passed are ended, then every channel on for at least MaxOnTime is forced
// off and reported once as a safety timeout. The timeout applies whether or
// not SafetyEnabled is set. It returns the first error reported.
func (d *Driver) Update() error {
	d.mu.Lock()
	defer d.unlock()
	if !d.initialized {
		return nil
	}
	now := d.now()
	var first error
	note := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	n := d.reg.channels()
	for i := 0; i < n; i++ {
		dl := d.deadlines[i]
		if !dl.IsZero() && !now.Before(dl) {
			note(d.off(Channel(i)))
		}
	}

	var buf [MaxChannels]Channel
	for _, ch := range d.pol.expired(d.states[:n], now, buf[:0]) {
		b, pin := Locate(ch)
		d.debug(logrus.Fields{"channel": ch}, "safety timeout")
		if err := d.reg.writePin(b, pin, false); err != nil {
			// State stays on so the next sweep retries the write.
			note(d.report(newError(CodeHardware, ch, err)))
			continue
		}
		d.states[ch].update(false, now)
		d.deadlines[ch] = time.Time{}
		note(d.report(newError(CodeSafetyTimeout, ch, nil)))
	}
	return first
}

func (d *Driver) ResetAllStats() {
	d.mu.Lock()
	defer d.unlock()
	for i := 0; i < d.reg.channels(); i++ {
		d.states[i].ResetStats()
	}
	d.debug(nil, "all channel stats reset")
}

func (d *Driver) on(ch Channel) error {
	if e := d.check(ch); e != nil {
		return d.report(e)
	}
	st := &d.states[ch]
	if st.on {
		d.lastErr = nil
		return nil
	}
	now := d.now()
	if e := d.pol.canActivate(st, now); e != nil {
		return d.report(e)
	}
	b, pin := Locate(ch)
	if err := d.reg.writePin(b, pin, true); err != nil {
		return d.report(newError(CodeHardware, ch, err))
	}
	st.update(true, now)
	d.lastErr = nil
	return nil
}

func (d *Driver) off(ch Channel) error {
	if e := d.check(ch); e != nil {
		return d.report(e)
	}
	d.deadlines[ch] = time.Time{}
	st := &d.states[ch]
	if !st.on {
		d.lastErr = nil
		return nil
	}
	b, pin := Locate(ch)
	if err := d.reg.writePin(b, pin, false); err != nil {
		return d.report(newError(CodeHardware, ch, err))
	}
	st.update(false, d.now())
	d.lastErr = nil
	return nil
}

func (d *Driver) check(ch Channel) *Error {
	if !d.initialized {
		return newError(CodeNotInitialized, ch, nil)
	}
	if int(ch) >= d.reg.channels() {
		return newError(CodeInvalidChannel, ch, nil)
	}
	return nil
}

// report records e as the last error and queues it for the observer.
func (d *Driver) report(e *Error) error {
	d.lastErr = e
	if d.observer != nil {
		d.pending = append(d.pending, e)
	}
	if d.cfg.Debug {
		f := logrus.Fields{"code": e.Code.String()}
		if e.Channel != Global {
			f["channel"] = e.Channel
		}
		if e.Err != nil {
			f[logrus.ErrorKey] = e.Err
		}
		d.log.WithFields(f).Warn("solenoid error")
	}
	return e
}

// unlock releases the driver and then delivers queued reports.
func (d *Driver) unlock() {
	pending := d.pending
	obs := d.observer
	d.pending = nil
	d.mu.Unlock()
	if obs == nil {
		return
	}
	for _, e := range pending {
		obs(e)
	}
}

func (d *Driver) debug(fields logrus.Fields, msg string) {
	if !d.cfg.Debug {
		return
	}
	d.log.WithFields(fields).Debug(msg)
}
