package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pitch"
	"github.com/fibril-audio/fibril/pool"
	"github.com/fibril-audio/fibril/rank"
)

func newEngine(seed uint64) (*Engine, *rank.Registry, *pool.Pool) {
	reg := rank.NewRegistry()
	p := pool.New()
	return New(reg, p, nil, seed), reg, p
}

func setDensity2(reg *rank.Registry, number int) {
	reg.SetGreyCodeBit(number, 3, 1) // GCI 1, density 2
}

func activePitchClasses(p *pool.Pool) map[int]bool {
	res := make(map[int]bool)
	for _, n := range p.ActiveNotes() {
		res[pitch.Class(n)] = true
	}
	return res
}

func TestTonicRankVoicesRootAndFifthFirst(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(1)

	// rank 3 as tonic with the highest priority, alone
	reg.SetTonicization(3, 1)
	reg.SetPriority(3, 1)
	setDensity2(reg, 3)

	e.RunCycle()

	assert.Equal(2, p.ActiveCount())
	classes := activePitchClasses(p)
	assert.True(classes[0], "root C must be voiced")
	assert.True(classes[7], "fifth G must be voiced")
}

func TestNoDuplicateNotesWithinCycle(t *testing.T) {
	assert := assert.New(t)

	for seed := uint64(1); seed <= 5; seed++ {
		e, reg, p := newEngine(seed)
		for n := 1; n <= 8; n++ {
			for bit := 0; bit < 4; bit++ {
				reg.SetGreyCodeBit(n, bit, 1) // density 6 everywhere
			}
		}
		e.RunCycle()

		seen := make(map[int]bool)
		for _, n := range p.ActiveNotes() {
			assert.False(seen[n], "seed %v: duplicate note %v", seed, n)
			seen[n] = true
		}
		assert.LessOrEqual(p.ActiveCount(), model.NumVoices)
	}
}

func TestActiveCountNeverExceedsPool(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(7)

	for n := 1; n <= 8; n++ {
		for bit := 0; bit < 4; bit++ {
			reg.SetGreyCodeBit(n, bit, 1)
		}
	}
	for i := 0; i < 10; i++ {
		e.RunCycle()
		assert.LessOrEqual(p.ActiveCount(), model.NumVoices)

		// churn the state between cycles
		reg.SetKeyCenter((i * 5) % 12)
		reg.SetPriority(1+(i%8), 1+((i*3)%8))
	}
}

func TestSustainFreezesVoicesAcrossCycles(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(3)

	setDensity2(reg, 1)
	e.RunCycle()
	assert.Equal(2, p.ActiveCount())

	e.SetSustain(true)
	e.RunCycle()
	frozen := p.Snapshot()
	assert.Equal(2, p.SustainedCount())

	// upheave the control state; frozen voices must not move
	reg.SetKeyCenter(7)
	reg.SetPriority(1, 8)
	reg.SetGreyCodeBit(5, 0, 1)
	reg.SetGreyCodeBit(5, 1, 1)
	e.RunCycle()
	e.RunCycle()

	now := p.Snapshot()
	for i := range frozen {
		if frozen[i].Sustained {
			assert.Equal(frozen[i].Note, now[i].Note, "voice %v note moved under sustain", i)
			assert.True(now[i].Active, "voice %v deactivated under sustain", i)
		}
	}

	e.SetSustain(false)
	e.RunCycle()
	assert.Equal(0, p.SustainedCount())
}

func TestBypassedRankReleasesItsVoices(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(4)

	setDensity2(reg, 2)
	e.RunCycle()
	assert.Equal(2, p.ActiveCount())

	reg.SetGreyCodeBit(2, 3, 0) // density back to 0
	e.RunCycle()
	assert.Equal(0, p.ActiveCount())
}

func TestBypassedRankKeepsSustainedVoices(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(4)

	setDensity2(reg, 2)
	e.RunCycle()
	e.SetSustain(true)
	e.RunCycle()

	reg.SetGreyCodeBit(2, 3, 0)
	e.RunCycle()
	assert.Equal(2, p.ActiveCount(), "sustained voices survive rank bypass")

	e.SetSustain(false)
	e.RunCycle()
	assert.Equal(0, p.ActiveCount(), "reconciled after release")
}

func fill(p *pool.Pool, lo int) {
	for i := 0; i < model.NumVoices; i++ {
		p.Allocate(uint8(lo + i))
	}
}

func TestDensityOverflowEvictsLowestPitches(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(9)

	fill(p, 20) // notes 20..67
	e.SetSustain(true)
	e.RunCycle()
	e.SetSustain(false)
	setDensity2(reg, 1)
	res := e.RunCycle()

	assert.Equal(0, res.Dropped)
	assert.Equal(model.NumVoices, p.ActiveCount(), "pool stays at capacity")
	assert.False(p.NoteActive(20), "lowest pitch evicted")
	assert.False(p.NoteActive(21), "second lowest pitch evicted")
	assert.True(p.NoteActive(22))
}

func TestSustainOverflowEvictsOldestAllocations(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(11)

	fill(p, 20) // slot i holds note 20+i, in allocation order
	e.SetSustain(true)
	setDensity2(reg, 1)
	e.RunCycle()

	assert.Equal(model.NumVoices, p.ActiveCount())
	assert.False(p.NoteActive(20), "oldest allocation evicted")
	assert.False(p.NoteActive(21), "second oldest evicted")
	assert.True(p.NoteActive(22))

	// the replacement voices were played into a held pedal and froze
	assert.Equal(model.NumVoices, p.SustainedCount())
}

func TestPoolExhaustedDropsNotes(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(13)

	fill(p, 20)
	e.SetSustain(true)
	e.RunCycle() // everything frozen, transition consumed

	setDensity2(reg, 1)
	res := e.RunCycle()

	assert.Equal(2, res.Dropped, "no eviction candidate while everything is sustained")
	assert.Equal(model.NumVoices, p.ActiveCount())
}

func TestCycleResultReportsDeltas(t *testing.T) {
	assert := assert.New(t)
	e, reg, p := newEngine(17)

	setDensity2(reg, 1)
	res := e.RunCycle()
	assert.NotEmpty(res.CycleID)
	assert.Len(res.Changes, 2)
	for _, c := range res.Changes {
		assert.Equal(1, c.Volume)
		assert.True(p.NoteActive(int(c.Note)))
	}

	// steady state: nothing changes, nothing is reported
	res = e.RunCycle()
	assert.Empty(res.Changes)

	reg.SetGreyCodeBit(1, 3, 0)
	res = e.RunCycle()
	assert.Len(res.Changes, 2)
	for _, c := range res.Changes {
		assert.Equal(0, c.Volume)
	}
}

func TestSustainStateMachine(t *testing.T) {
	assert := assert.New(t)
	s := &Sustain{}

	assert.False(s.Engaged())
	assert.Equal(TransitionEngaged, s.Set(true))
	assert.Equal(TransitionNone, s.Set(true))
	assert.True(s.Engaged())
	assert.Equal(TransitionReleased, s.Set(false))
	assert.Equal(TransitionNone, s.Set(false))
}
