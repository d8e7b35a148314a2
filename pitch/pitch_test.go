package pitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankRootInC(t *testing.T) {
	assert := assert.New(t)

	// degrees of C major
	assert.Equal(0, RankRoot(0, 1))  // C
	assert.Equal(2, RankRoot(0, 2))  // D
	assert.Equal(4, RankRoot(0, 3))  // E
	assert.Equal(5, RankRoot(0, 4))  // F
	assert.Equal(7, RankRoot(0, 5))  // G
	assert.Equal(9, RankRoot(0, 6))  // A
	assert.Equal(11, RankRoot(0, 7)) // B
	assert.Equal(0, RankRoot(0, 8))  // octave
}

func TestSubtonicUsesThirdAndFlatSeventh(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(4, RankRoot(0, Subtonic))   // E, major 3rd of C
	assert.Equal(10, SubtonicFifth(0))       // Bb, flat 7th of C
	assert.Equal(10, RankFifth(0, Subtonic)) // same pairing
}

func TestRankRootTransposes(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(2, RankRoot(2, 1))  // D major tonic
	assert.Equal(9, RankRoot(2, 5))  // A, dominant of D
	assert.Equal(0, RankRoot(5, 5))  // C, dominant of F
	assert.Equal(2, RankFifth(7, 5)) // D, fifth of dominant of G
}

func TestInMajorScale(t *testing.T) {
	assert := assert.New(t)

	inC := []int{0, 2, 4, 5, 7, 9, 11}
	outC := []int{1, 3, 6, 8, 10}
	for _, pc := range inC {
		assert.True(InMajorScale(pc, 0), "pc %v should be in C major", pc)
	}
	for _, pc := range outC {
		assert.False(InMajorScale(pc, 0), "pc %v should not be in C major", pc)
	}

	// F# is in D major but not C major
	assert.True(InMajorScale(6, 2))
	assert.False(InMajorScale(6, 0))
}

func TestInWholeTone(t *testing.T) {
	assert := assert.New(t)
	for pc := 0; pc < 12; pc++ {
		assert.Equal(pc%2 == 0, InWholeTone(pc, 0))
	}
}

func TestIntervalClass(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0, IntervalClass(60, 60))
	assert.Equal(0, IntervalClass(60, 72))
	assert.Equal(5, IntervalClass(60, 67))
	assert.Equal(5, IntervalClass(60, 65))
	assert.Equal(6, IntervalClass(60, 66))
	assert.Equal(1, IntervalClass(60, 61))
	assert.Equal(1, IntervalClass(60, 59))
}

func TestIsPerfectConsonance(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsPerfectConsonance(60, 67))  // P5
	assert.True(IsPerfectConsonance(60, 65))  // P4
	assert.True(IsPerfectConsonance(60, 72))  // octave
	assert.False(IsPerfectConsonance(60, 64)) // M3
	assert.False(IsPerfectConsonance(60, 66)) // tritone
}

func TestClassHandlesNegatives(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(11, Class(-1))
	assert.Equal(0, Class(-12))
	assert.Equal(7, Class(127))
}
