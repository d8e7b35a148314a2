// Package midiout mirrors voice deltas onto a local MIDI output port,
// so the allocator can drive a hardware or software synth directly
// alongside the OSC patch.
package midiout

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
)

const velocity = 100

// Mirror satisfies the runner's Publisher interface. It keeps the last
// note sent per voice so reassignments produce a clean off/on pair.
type Mirror struct {
	send     func(msg midi.Message) error
	log      logging.Logger
	lastNote [model.NumVoices]uint8
	sounding [model.NumVoices]bool
}

// New opens the MIDI out port with the given index.
func New(portIndex int, log logging.Logger) (*Mirror, error) {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	out, err := midi.OutPort(portIndex)
	if err != nil {
		return nil, fmt.Errorf("opening midi out port %v: %w", portIndex, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("connecting midi out port %v: %w", portIndex, err)
	}
	log.Info("midi mirror started", logging.Fields{"port": out.String()})
	return &Mirror{send: send, log: log}, nil
}

// PublishCycle translates the cycle's voice deltas into note on/off
// messages on channel 0.
func (m *Mirror) PublishCycle(res model.CycleResult) {
	for _, c := range res.Changes {
		// sustain-flag-only deltas keep the same sounding note; no
		// retrigger
		if c.Volume > 0 && m.sounding[c.VoiceID] && m.lastNote[c.VoiceID] == c.Note {
			continue
		}
		if m.sounding[c.VoiceID] {
			m.emit(midi.NoteOff(0, m.lastNote[c.VoiceID]))
			m.sounding[c.VoiceID] = false
		}
		if c.Volume > 0 {
			m.emit(midi.NoteOn(0, c.Note, velocity))
			m.lastNote[c.VoiceID] = c.Note
			m.sounding[c.VoiceID] = true
		}
	}
}

// Silence turns off everything the mirror has sounding. Called on
// shutdown.
func (m *Mirror) Silence() {
	for id := range m.sounding {
		if m.sounding[id] {
			m.emit(midi.NoteOff(0, m.lastNote[id]))
			m.sounding[id] = false
		}
	}
}

func (m *Mirror) emit(msg midi.Message) {
	if err := m.send(msg); err != nil {
		m.log.Error(err, "midi send failed")
	}
}
