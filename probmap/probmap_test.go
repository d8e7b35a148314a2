package probmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fibril-audio/fibril/constants"
	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pitch"
	"github.com/fibril-audio/fibril/rank"
)

type fakePool struct {
	notes []int
}

func (f *fakePool) ActiveNotes() []int { return f.notes }

func (f *fakePool) HasPitchClass(pc int) bool {
	for _, n := range f.notes {
		if pitch.Class(n) == pc {
			return true
		}
	}
	return false
}

func tonicRank(bits [4]int) *rank.Rank {
	return &rank.Rank{Number: 3, Priority: 1, Tonicization: 1, Bits: bits}
}

func builder(notes ...int) *Builder {
	return &Builder{KeyCenter: 0, Pool: &fakePool{notes: notes}}
}

func TestBypassedRank(t *testing.T) {
	b := builder()
	_, err := b.Build(tonicRank([4]int{0, 0, 0, 0}))
	assert.True(t, errors.Is(err, model.ErrRankBypassed))
}

func TestDistributionIsNormalized(t *testing.T) {
	assert := assert.New(t)
	b := builder(60, 67, 72)

	configs := []*rank.Rank{
		tonicRank([4]int{0, 0, 0, 1}),
		{Number: 5, Priority: 5, Tonicization: 5, Bits: [4]int{1, 1, 0, 0}},
		{Number: 8, Priority: 8, Tonicization: 9, Bits: [4]int{1, 1, 1, 1}},
		{Number: 1, Priority: 8, Tonicization: 7, Bits: [4]int{1, 0, 0, 0}, PreviousGCI: 15},
	}
	for _, r := range configs {
		d, err := b.Build(r)
		assert.NoError(err)
		assert.InDelta(1.0, d.Sum(), 1e-9, "rank %v", r.Number)
		for i, w := range d {
			assert.GreaterOrEqual(w, 0.0, "rank %v index %v", r.Number, i)
		}
	}
}

func TestExtremeRangeBlocked(t *testing.T) {
	assert := assert.New(t)
	b := builder()
	d, err := b.Build(&rank.Rank{Number: 1, Priority: 1, Tonicization: 1, Bits: [4]int{1, 1, 1, 1}})
	assert.NoError(err)

	for i := 0; i < constants.LowestNote; i++ {
		assert.Zero(d[i], "index %v below playable range", i)
	}
	for i := constants.HighestNote + 1; i < 128; i++ {
		assert.Zero(d[i], "index %v above playable range", i)
	}
}

func TestSpreadWindowBlocked(t *testing.T) {
	assert := assert.New(t)
	b := builder()

	// priority 1, density 2: center 60, window 48..72
	r := tonicRank([4]int{0, 0, 0, 1})
	d, err := b.Build(r)
	assert.NoError(err)

	for i := range d {
		if i < 48 || i > 72 {
			assert.Zero(d[i], "index %v outside spread window", i)
		}
	}
}

func TestMajorScaleAdherence(t *testing.T) {
	assert := assert.New(t)
	b := builder()
	d, err := b.Build(tonicRank([4]int{0, 0, 0, 1}))
	assert.NoError(err)

	for i := range d {
		if d[i] > 0 {
			assert.True(pitch.InMajorScale(pitch.Class(i), 0),
				"index %v is not in C major", i)
		}
	}
}

func TestSubtonicUsesWholeTone(t *testing.T) {
	assert := assert.New(t)
	b := builder()
	r := &rank.Rank{Number: 8, Priority: 4, Tonicization: 9, Bits: [4]int{0, 0, 0, 1}}
	d, err := b.Build(r)
	assert.NoError(err)

	positive := 0
	for i := range d {
		if d[i] > 0 {
			positive++
			assert.True(pitch.InWholeTone(pitch.Class(i), 0),
				"index %v is not whole-tone", i)
		}
	}
	assert.Greater(positive, 0)
}

func TestRootForcedWhenAbsent(t *testing.T) {
	assert := assert.New(t)
	b := builder() // nothing sounding, C root unvoiced

	d, err := b.Build(tonicRank([4]int{0, 0, 0, 1}))
	assert.NoError(err)

	rootMass := 0.0
	for i := range d {
		if pitch.Class(i) == 0 {
			rootMass += d[i]
		}
	}
	// soft weights shift the exact share but the root class must stay
	// dominant
	assert.Greater(rootMass, 0.5)

	// residual mass remains for alternate voicings
	assert.Less(rootMass, 1.0)
}

func TestRootNotForcedWhenVoiced(t *testing.T) {
	assert := assert.New(t)
	b := builder(48) // C already sounding

	d, err := b.Build(tonicRank([4]int{0, 0, 0, 1}))
	assert.NoError(err)

	rootMass := 0.0
	for i := range d {
		if pitch.Class(i) == 0 {
			rootMass += d[i]
		}
	}
	assert.Less(rootMass, 0.7, "no near-deterministic root forcing once voiced")
}

func TestPerfectIntervalBoost(t *testing.T) {
	assert := assert.New(t)

	// G sounding: C (P5 below, P4 above) should outweigh comparable
	// degrees; compare E vs F relative to a build with no boost
	with := builder(67)
	without := builder()
	r := tonicRank([4]int{0, 0, 0, 1})

	dWith, err := with.Build(r)
	assert.NoError(err)
	dWithout, err := without.Build(r)
	assert.NoError(err)

	// D (62) forms a P4/P5 with G (67); E (64) does not. The boost must
	// raise D relative to E.
	ratioWith := dWith[62] / dWith[64]
	ratioWithout := dWithout[62] / dWithout[64]
	assert.Greater(ratioWith, ratioWithout)
}

func TestGaussianPrefersCenter(t *testing.T) {
	assert := assert.New(t)
	b := builder(60) // suppress root forcing on C

	// priority 1, density 4: center 60, window 36..84
	r := tonicRank([4]int{1, 1, 1, 0})
	d, err := b.Build(r)
	assert.NoError(err)

	// same pitch class, different distance from center
	assert.Greater(d[60], d[84], "C4 at center beats C6 at the window edge")
}

func TestVoiceLeadingBiasUp(t *testing.T) {
	assert := assert.New(t)

	// grey code moved up: indices 1-2 semitones above the sounding note
	// gain weight relative to a static build
	rUp := tonicRank([4]int{0, 0, 0, 1}) // GCI 1, previous 0
	rFlat := tonicRank([4]int{0, 0, 0, 1})
	rFlat.PreviousGCI = 1

	b := builder(62) // D sounding; E (64) is +2

	dUp, err := b.Build(rUp)
	assert.NoError(err)
	dFlat, err := b.Build(rFlat)
	assert.NoError(err)

	// compare E (64, +2 of D) against A (57), both plain scale degrees
	ratioUp := dUp[64] / dUp[57]
	ratioFlat := dFlat[64] / dFlat[57]
	assert.Greater(ratioUp, ratioFlat)
}

func TestUniformWindowFallback(t *testing.T) {
	assert := assert.New(t)
	b := builder()

	var d Dist
	b.uniformWindow(&d, 60, 12)
	assert.InDelta(1.0, d.Sum(), 1e-9)
	for i := range d {
		if i >= 48 && i <= 72 {
			assert.InDelta(1.0/25, d[i], 1e-9)
		} else {
			assert.Zero(d[i])
		}
	}

	// window entirely below the playable range falls back to the whole
	// playable range
	var d2 Dist
	b.uniformWindow(&d2, 5, 3)
	assert.InDelta(1.0, d2.Sum(), 1e-9)
	assert.Zero(d2[14])
	assert.Greater(d2[15], 0.0)
}