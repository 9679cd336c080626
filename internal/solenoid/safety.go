package solenoid

import "time"

// policy decides whether a channel may be energized and which energized
// channels have overstayed MaxOnTime.
type policy struct {
	cfg *Config
}

// canActivate applies the cooldown and duty checks, in that order. It is
// consulted only for off→on transitions and only when SafetyEnabled is set;
// switching off is never gated.
func (p policy) canActivate(st *ChannelState, now time.Time) *Error {
	cfg := p.cfg
	if !cfg.SafetyEnabled {
		return nil
	}
	if cfg.MinOffTime > 0 && st.TimeSinceOff(now) < cfg.MinOffTime {
		return newError(CodeSafetyCooldown, st.index, nil)
	}
	if cfg.dutyLimited() {
		if st.WindowUsage(cfg.DutyCycleWindow, now) >= cfg.MaxDutyCycle {
			return newError(CodeDutyCycleExceeded, st.index, nil)
		}
		if st.WouldExceedDutyCycle(cfg.DutyCycleWindow, cfg.MaxDutyCycle, cfg.dutyEstimate(), now) {
			return newError(CodeDutyCycleExceeded, st.index, nil)
		}
	}
	return nil
}

// expired appends to dst every energized channel whose on-time has reached
// MaxOnTime. SafetyEnabled does not apply here.
func (p policy) expired(states []ChannelState, now time.Time, dst []Channel) []Channel {
	if p.cfg.MaxOnTime <= 0 {
		return dst
	}
	for i := range states {
		st := &states[i]
		if st.on && st.OnDuration(now) >= p.cfg.MaxOnTime {
			dst = append(dst, st.index)
		}
	}
	return dst
}
