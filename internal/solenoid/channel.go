package solenoid

import (
	"math"
	"time"
)

// Channel is a flat output index across all boards on a bus.
type Channel uint8

// Global marks a report that is not tied to a single channel.
const Global Channel = 255

// Never is returned by TimeSinceOff for a channel that has not been switched
// off yet, meaning no cooldown applies.
const Never = time.Duration(math.MaxInt64)

// ChannelState is the timing bookkeeping of one output. It never touches
// hardware; every method takes the current time explicitly.
type ChannelState struct {
	board uint8
	pin   uint8
	index Channel

	on      bool
	lastOn  time.Time
	lastOff time.Time

	totalOn     time.Duration
	activations uint32

	windowStart time.Time
	windowOn    time.Duration
}

func newChannelState(board, pin uint8) ChannelState {
	return ChannelState{
		board: board,
		pin:   pin,
		index: Channel(board*ChannelsPerBoard + pin),
	}
}

func (c *ChannelState) Board() uint8        { return c.board }
func (c *ChannelState) Pin() uint8          { return c.pin }
func (c *ChannelState) Index() Channel      { return c.index }
func (c *ChannelState) IsOn() bool          { return c.on }
func (c *ChannelState) LastOn() time.Time   { return c.lastOn }
func (c *ChannelState) LastOff() time.Time  { return c.lastOff }
func (c *ChannelState) Activations() uint32 { return c.activations }

// OnDuration is how long the channel has been energized, or 0 when off.
func (c *ChannelState) OnDuration(now time.Time) time.Duration {
	if !c.on {
		return 0
	}
	return since(c.lastOn, now)
}

// TimeSinceOff is the time since the last on→off transition, or Never.
func (c *ChannelState) TimeSinceOff(now time.Time) time.Duration {
	if c.lastOff.IsZero() {
		return Never
	}
	return since(c.lastOff, now)
}

// TotalOnTime is the lifetime on-time, including an activation in progress.
func (c *ChannelState) TotalOnTime(now time.Time) time.Duration {
	return c.totalOn + c.OnDuration(now)
}

// update records a transition to on. Repeating the current state is a no-op,
// so an already-on channel keeps its original lastOn stamp.
func (c *ChannelState) update(on bool, now time.Time) {
	switch {
	case on && !c.on:
		c.on = true
		c.lastOn = now
		c.activations++
		if c.windowStart.IsZero() {
			c.windowStart = now
		}
	case !on && c.on:
		d := since(c.lastOn, now)
		c.totalOn += d
		c.windowOn += d
		c.lastOff = now
		c.lastOn = time.Time{}
		c.on = false
	}
}

// ResetStats clears counters and the duty window. Current on/off state and
// the cooldown reference are kept.
func (c *ChannelState) ResetStats() {
	c.totalOn = 0
	c.activations = 0
	c.windowStart = time.Time{}
	c.windowOn = 0
}

// roll opens the duty window if none is open and restarts it once it has
// run for a full window length. The window is reset, not slid: on-time from
// the expired window is forgotten.
func (c *ChannelState) roll(window time.Duration, now time.Time) {
	if c.windowStart.IsZero() {
		c.windowStart = now
		c.windowOn = 0
		return
	}
	if since(c.windowStart, now) >= window {
		c.windowStart = now
		c.windowOn = 0
	}
}

// windowOnTime is the on-time inside the current window, counting an
// activation in progress only from the later of its start and the window start.
func (c *ChannelState) windowOnTime(now time.Time) time.Duration {
	d := c.windowOn
	if c.on && !c.windowStart.IsZero() {
		from := c.lastOn
		if from.Before(c.windowStart) {
			from = c.windowStart
		}
		d += since(from, now)
	}
	return d
}

// DutyCycle returns the on fraction of the elapsed part of the current
// window, with elapsed time capped at window. It may restart the window.
func (c *ChannelState) DutyCycle(window time.Duration, now time.Time) float64 {
	if window <= 0 {
		return 0
	}
	c.roll(window, now)
	elapsed := since(c.windowStart, now)
	if elapsed == 0 {
		return 0
	}
	if elapsed > window {
		elapsed = window
	}
	return float64(c.windowOnTime(now)) / float64(elapsed)
}

// WindowUsage returns the fraction of the window length already spent on.
// Unlike DutyCycle it does not inflate early in a fresh window, so it is the
// measure the activation gate compares against the limit.
func (c *ChannelState) WindowUsage(window time.Duration, now time.Time) float64 {
	if window <= 0 {
		return 0
	}
	c.roll(window, now)
	return float64(c.windowOnTime(now)) / float64(window)
}

// WouldExceedDutyCycle reports whether staying on for a further estimate
// would push the window's on-time past maxCycle of the window length.
func (c *ChannelState) WouldExceedDutyCycle(window time.Duration, maxCycle float64, estimate time.Duration, now time.Time) bool {
	if window <= 0 || maxCycle >= 1 {
		return false
	}
	used := time.Duration(0)
	if !c.windowStart.IsZero() && since(c.windowStart, now) < window {
		used = c.windowOnTime(now)
	}
	return float64(used+estimate)/float64(window) > maxCycle
}

func since(t, now time.Time) time.Duration {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}
