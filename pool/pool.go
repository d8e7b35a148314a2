// Package pool implements the 48-slot voice allocator: allocation,
// stealing, sustain protection and the two overflow eviction policies.
package pool

import (
	"fmt"
	"sort"

	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pitch"
	"github.com/fibril-audio/fibril/util"
)

// Pool tracks the fixed voice slots. It is not synchronized; the cycle
// runner is the single writer.
type Pool struct {
	voices [model.NumVoices]model.Voice

	// allocation sequence per slot, for insertion-order eviction
	seq     [model.NumVoices]uint64
	counter uint64
}

// New creates the pool with every voice silent.
func New() *Pool {
	p := &Pool{}
	for i := range p.voices {
		p.voices[i].ID = i
	}
	return p
}

// Allocate claims a slot for the note. Free slots are used first; with
// none free it steals the lowest-pitched active non-sustained voice.
// When every voice is sustained there is no candidate and the note is
// dropped with ErrPoolExhausted.
func (p *Pool) Allocate(note uint8) (int, error) {
	for i := range p.voices {
		v := &p.voices[i]
		if !v.Active && !v.Sustained {
			p.commit(i, note)
			return i, nil
		}
	}

	victim := -1
	for i := range p.voices {
		v := &p.voices[i]
		if !v.Active || v.Sustained {
			continue
		}
		if victim == -1 || v.Note < p.voices[victim].Note {
			victim = i
		}
	}
	if victim == -1 {
		return -1, fmt.Errorf("%w: note %v", model.ErrPoolExhausted, note)
	}
	p.commit(victim, note)
	return victim, nil
}

func (p *Pool) commit(i int, note uint8) {
	p.counter++
	p.voices[i].Note = note
	p.voices[i].Active = true
	p.voices[i].Sustained = false
	p.seq[i] = p.counter
}

// Release silences a voice and clears its sustain flag.
func (p *Pool) Release(id int) {
	if id < 0 || id >= model.NumVoices {
		return
	}
	p.voices[id].Active = false
	p.voices[id].Sustained = false
}

// MarkAllActiveAsSustained freezes every sounding voice. Called on the
// sustain-ON transition.
func (p *Pool) MarkAllActiveAsSustained() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].Active {
			p.voices[i].Sustained = true
			n++
		}
	}
	return n
}

// MarkSustained freezes a single sounding voice. Used for voices
// allocated while the pedal is already held.
func (p *Pool) MarkSustained(id int) {
	if id < 0 || id >= model.NumVoices {
		return
	}
	if p.voices[id].Active {
		p.voices[id].Sustained = true
	}
}

// ClearAllSustained lifts sustain protection everywhere. Notes and
// activity are untouched; later cycles reconcile the count naturally.
func (p *Pool) ClearAllSustained() {
	for i := range p.voices {
		p.voices[i].Sustained = false
	}
}

// ReleaseSustainedOverflow evicts up to maxCount sustained voices in
// strict insertion order, oldest allocation first. This is the
// sustain-pedal overflow policy: the oldest gesture ages out first.
func (p *Pool) ReleaseSustainedOverflow(maxCount int) []int {
	var ids []int
	for i := range p.voices {
		if p.voices[i].Active && p.voices[i].Sustained {
			ids = append(ids, i)
		}
	}
	sort.Slice(ids, func(a, b int) bool {
		return p.seq[ids[a]] < p.seq[ids[b]]
	})
	return p.evict(ids, maxCount)
}

// ReleaseLowestPitchOverflow evicts up to maxCount non-sustained voices
// by ascending MIDI pitch. This is the density overflow policy: low
// notes contribute least to harmonic clarity.
func (p *Pool) ReleaseLowestPitchOverflow(maxCount int) []int {
	var ids []int
	for i := range p.voices {
		if p.voices[i].Active && !p.voices[i].Sustained {
			ids = append(ids, i)
		}
	}
	sort.Slice(ids, func(a, b int) bool {
		if p.voices[ids[a]].Note != p.voices[ids[b]].Note {
			return p.voices[ids[a]].Note < p.voices[ids[b]].Note
		}
		return ids[a] < ids[b]
	})
	return p.evict(ids, maxCount)
}

func (p *Pool) evict(ids []int, maxCount int) []int {
	ids = ids[:util.Min(maxCount, len(ids))]
	for _, id := range ids {
		p.Release(id)
	}
	return ids
}

// Voice returns a copy of a slot's state.
func (p *Pool) Voice(id int) model.Voice {
	return p.voices[id]
}

// ActiveNotes returns the notes of all sounding voices.
func (p *Pool) ActiveNotes() []int {
	var notes []int
	for i := range p.voices {
		if p.voices[i].Active {
			notes = append(notes, int(p.voices[i].Note))
		}
	}
	return notes
}

// NoteActive reports whether the exact note is already sounding.
func (p *Pool) NoteActive(note int) bool {
	for i := range p.voices {
		if p.voices[i].Active && int(p.voices[i].Note) == note {
			return true
		}
	}
	return false
}

// HasPitchClass reports whether any sounding voice (sustained included)
// carries the pitch class.
func (p *Pool) HasPitchClass(pc int) bool {
	for i := range p.voices {
		if p.voices[i].Active && pitch.Class(int(p.voices[i].Note)) == pc {
			return true
		}
	}
	return false
}

// ActiveCount is the number of sounding voices.
func (p *Pool) ActiveCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].Active {
			n++
		}
	}
	return n
}

// SustainedCount is the number of protected voices.
func (p *Pool) SustainedCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].Active && p.voices[i].Sustained {
			n++
		}
	}
	return n
}

// Snapshot copies the full slot state for display collaborators.
func (p *Pool) Snapshot() []model.VoiceSnapshot {
	res := make([]model.VoiceSnapshot, 0, model.NumVoices)
	for i := range p.voices {
		v := &p.voices[i]
		res = append(res, model.VoiceSnapshot{
			ID:        v.ID,
			Note:      v.Note,
			Active:    v.Active,
			Sustained: v.Sustained,
		})
	}
	return res
}
