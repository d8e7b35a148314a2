// Package pitch holds the stateless pitch-class and interval helpers
// shared by the registry, the probability map builder and the engine.
package pitch

// degreeOffsets maps scale degrees 1-8 to semitone offsets in a major
// scale. Degree 8 is the octave.
var degreeOffsets = [9]int{0, 0, 2, 4, 5, 7, 9, 11, 0}

// majorScale marks semitone offsets from the key center that belong to
// the major scale.
var majorScale = [12]bool{
	0: true, 2: true, 4: true, 5: true, 7: true, 9: true, 11: true,
}

// wholeTone marks offsets belonging to the whole-tone scale.
var wholeTone = [12]bool{
	0: true, 2: true, 4: true, 6: true, 8: true, 10: true,
}

// Subtonic is the tonicization value that opts a rank out of major-scale
// adherence and roots it on the major 3rd of the key.
const Subtonic = 9

// Class reduces a MIDI note to its pitch class.
func Class(note int) int {
	return ((note % 12) + 12) % 12
}

// DegreeOffset returns the semitone offset of a scale degree (1-8)
// within a major scale.
func DegreeOffset(degree int) int {
	if degree < 1 || degree > 8 {
		return 0
	}
	return degreeOffsets[degree]
}

// RankRoot returns the root pitch class for a rank, given its
// tonicization and the key center. The subtonic tonicization roots on
// the major 3rd of the key center.
func RankRoot(keyCenter, tonicization int) int {
	kc := Class(keyCenter)
	if tonicization == Subtonic {
		return (kc + 4) % 12
	}
	return (kc + DegreeOffset(tonicization)) % 12
}

// SubtonicFifth is the flat 7th of the key center, paired with the
// subtonic root the way a fifth pairs with an ordinary root.
func SubtonicFifth(keyCenter int) int {
	return (Class(keyCenter) + 10) % 12
}

// RankFifth returns the pitch class a rank treats as its fifth.
func RankFifth(keyCenter, tonicization int) int {
	if tonicization == Subtonic {
		return SubtonicFifth(keyCenter)
	}
	return (RankRoot(keyCenter, tonicization) + 7) % 12
}

// InMajorScale reports whether a pitch class is in the major scale
// rooted at keyCenter.
func InMajorScale(pc, keyCenter int) bool {
	return majorScale[Class(pc-keyCenter)]
}

// InWholeTone reports whether a pitch class is in the whole-tone scale
// rooted at keyCenter.
func InWholeTone(pc, keyCenter int) bool {
	return wholeTone[Class(pc-keyCenter)]
}

// IntervalClass returns the undirected interval class (0-6) between two
// MIDI notes.
func IntervalClass(a, b int) int {
	ic := Class(a - b)
	if ic > 6 {
		ic = 12 - ic
	}
	return ic
}

// IsPerfectConsonance reports whether two notes form a perfect 4th,
// perfect 5th or octave/unison.
func IsPerfectConsonance(a, b int) bool {
	ic := IntervalClass(a, b)
	return ic == 0 || ic == 5
}
