// Package notemap turns MIDI note messages into solenoid activations.
//
// Channel 0 plays Mapper.Base, channel 1 the next semitone, and so on up to
// the number of channels the driver has.
package notemap

import (
	"gitlab.com/gomidi/midi/v2"

	"keyplayer/internal/solenoid"
)

// Target is the part of *solenoid.Driver the mapper and player drive.
type Target interface {
	On(ch solenoid.Channel) error
	Off(ch solenoid.Channel) error
	Update() error
	AllOff() error
}

type Mapper struct {
	Base     uint8
	Channels int
	// MIDIChannel selects one MIDI channel (0-15); -1 accepts every channel.
	MIDIChannel int
}

// Channel returns the solenoid channel for key.
func (m Mapper) Channel(key uint8) (solenoid.Channel, bool) {
	if key < m.Base {
		return 0, false
	}
	n := int(key - m.Base)
	if n >= m.Channels || n >= solenoid.MaxChannels {
		return 0, false
	}
	return solenoid.Channel(n), true
}

// Note returns the key that drives ch.
func (m Mapper) Note(ch solenoid.Channel) (uint8, bool) {
	if int(ch) >= m.Channels {
		return 0, false
	}
	n := int(m.Base) + int(ch)
	if n > 127 {
		return 0, false
	}
	return uint8(n), true
}

func (m Mapper) accepts(ch uint8) bool {
	return m.MIDIChannel < 0 || int(ch) == m.MIDIChannel
}

// Handle applies one message to t. Note-on with velocity 0 counts as
// note-off. Messages that are not notes, arrive on another MIDI channel or
// fall outside the mapped range are ignored and report handled=false.
func (m Mapper) Handle(msg midi.Message, t Target) (handled bool, err error) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !m.accepts(ch) {
			return false, nil
		}
		sc, ok := m.Channel(key)
		if !ok {
			return false, nil
		}
		return true, t.On(sc)
	case msg.GetNoteEnd(&ch, &key):
		if !m.accepts(ch) {
			return false, nil
		}
		sc, ok := m.Channel(key)
		if !ok {
			return false, nil
		}
		return true, t.Off(sc)
	}
	return false, nil
}
