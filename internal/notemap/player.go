package notemap

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"keyplayer/internal/solenoid"
)

// Event is one playable message at an offset from the start of the file.
type Event struct {
	At  time.Duration
	Msg midi.Message
}

// Load reads a standard MIDI file and returns its playable messages from all
// tracks, ordered by time. Events at the same instant keep file order.
func Load(r io.Reader) ([]Event, error) {
	var out []Event
	rd := smf.ReadTracksFrom(r).Do(func(te smf.TrackEvent) {
		if !te.Message.IsPlayable() {
			return
		}
		out = append(out, Event{
			At:  time.Duration(te.AbsMicroSeconds) * time.Microsecond,
			Msg: midi.Message(te.Message),
		})
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("notemap: read smf: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out, nil
}

// Player schedules events against a Target and keeps its safety sweep
// running while it waits.
type Player struct {
	Mapper Mapper
	// Sweep is how often Update runs between events.
	Sweep time.Duration
	Log   *logrus.Entry
}

// Play loads and plays a MIDI file.
func (p *Player) Play(ctx context.Context, r io.Reader, t Target) error {
	events, err := Load(r)
	if err != nil {
		return err
	}
	return p.Run(ctx, events, t)
}

// Run dispatches events on schedule. All channels are released when it
// returns, whether the schedule finished or ctx was cancelled.
func (p *Player) Run(ctx context.Context, events []Event, t Target) error {
	defer func() {
		if err := t.AllOff(); err != nil {
			p.logf(logrus.WarnLevel, logrus.Fields{"error": err}, "release failed")
		}
	}()

	sweep := p.Sweep
	if sweep <= 0 {
		sweep = 10 * time.Millisecond
	}
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	start := time.Now()
	for i := 0; i < len(events); {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := events[i].At - time.Since(start)
		if wait <= 0 {
			p.dispatch(events[i], t)
			i++
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-ticker.C:
			timer.Stop()
			p.sweep(t)
		case <-timer.C:
		}
	}
	p.sweep(t)
	return nil
}

func (p *Player) dispatch(ev Event, t Target) {
	handled, err := p.Mapper.Handle(ev.Msg, t)
	if !handled {
		return
	}
	if err != nil {
		lvl := logrus.WarnLevel
		if solenoid.CodeOf(err).Safety() {
			lvl = logrus.DebugLevel
		}
		p.logf(lvl, logrus.Fields{"at": ev.At, "msg": ev.Msg.String(), "error": err}, "note not played")
	}
}

func (p *Player) sweep(t Target) {
	if err := t.Update(); err != nil {
		p.logf(logrus.WarnLevel, logrus.Fields{"error": err}, "sweep")
	}
}

func (p *Player) logf(lvl logrus.Level, f logrus.Fields, msg string) {
	if p.Log == nil {
		return
	}
	p.Log.WithFields(f).Log(lvl, msg)
}
