// Package probmap builds the per-rank probability distribution over the
// MIDI range: a hard constraint pipeline, root forcing, then soft
// multiplicative reweighting.
package probmap

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fibril-audio/fibril/constants"
	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pitch"
	"github.com/fibril-audio/fibril/rank"
)

// Dist is a normalized 128-weight distribution over MIDI notes.
type Dist [128]float64

// Sum is the total probability mass, 1.0 after normalization.
func (d *Dist) Sum() float64 {
	return floats.Sum(d[:])
}

// PoolView is the read-only slice of pool state the builder needs.
type PoolView interface {
	ActiveNotes() []int
	HasPitchClass(pc int) bool
}

// harmonicWeights is the harmonic-function table, indexed by semitone
// interval above the rank root. Root and fifth sit on top; the rest
// descend through 3rd, 2nd/9th, 4th, 6th, 7th, b13/#5. Chromatic
// leftovers get a floor weight.
var harmonicWeights = [12]float64{
	0:  1.0,
	7:  0.95,
	4:  0.8,
	2:  0.7,
	5:  0.6,
	9:  0.5,
	11: 0.4,
	8:  0.3,
	1:  0.15,
	3:  0.15,
	6:  0.15,
	10: 0.15,
}

// Builder builds one rank's distribution per cycle.
type Builder struct {
	KeyCenter int
	Pool      PoolView
	Log       logging.Logger
}

// Build runs the full constraint pipeline for one rank. A rank with
// zero density is bypassed and contributes nothing this cycle.
func (b *Builder) Build(r *rank.Rank) (Dist, error) {
	var d Dist
	if r.Density() == 0 {
		return d, fmt.Errorf("%w: rank %v", model.ErrRankBypassed, r.Number)
	}

	center := r.OctaveCenter(b.KeyCenter)
	half := float64(r.SpreadHalfWidth())

	// uniform start
	for i := range d {
		d[i] = 1.0 / 128
	}

	// Hard constraints, in order. A later block may re-zero an index an
	// earlier step left standing.
	for i := range d {
		if i < constants.LowestNote || i > constants.HighestNote {
			d[i] = 0
		}
	}
	for i := range d {
		if float64(i) < center-half || float64(i) > center+half {
			d[i] = 0
		}
	}
	for i := range d {
		pc := pitch.Class(i)
		if r.Tonicization == pitch.Subtonic {
			if !pitch.InWholeTone(pc, b.KeyCenter) {
				d[i] = 0
			}
		} else if !pitch.InMajorScale(pc, b.KeyCenter) {
			d[i] = 0
		}
	}

	b.forceRoot(&d, r)

	if !b.normalize(&d) {
		// over-constrained: recover with uniform mass across the spread
		// window. Never globally uniform at this stage.
		b.uniformWindow(&d, center, half)
		if b.Log != nil {
			b.Log.Debug("over-constrained distribution, uniform fallback",
				logging.Fields{"rank": r.Number})
		}
	}

	b.applySoftWeights(&d, r, center)

	b.normalize(&d)
	return d, nil
}

// forceRoot pushes RootForceProbability of the mass onto the rank's
// root pitch class when the root is not yet voiced anywhere in the
// pool. A residual share stays on alternate voicings; the preference is
// near-deterministic, not absolute.
func (b *Builder) forceRoot(d *Dist, r *rank.Rank) {
	rootPC := r.Root(b.KeyCenter)
	if b.Pool.HasPitchClass(rootPC) {
		return
	}

	var rootIdx []int
	sumRoot, sumOther := 0.0, 0.0
	for i := range d {
		if d[i] == 0 {
			continue
		}
		if pitch.Class(i) == rootPC {
			rootIdx = append(rootIdx, i)
			sumRoot += d[i]
		} else {
			sumOther += d[i]
		}
	}
	if len(rootIdx) == 0 || sumRoot == 0 || sumOther == 0 {
		return
	}

	p := constants.RootForceProbability
	factor := (p / (1 - p)) * (sumOther / sumRoot)
	for _, i := range rootIdx {
		d[i] *= factor
	}
}

// applySoftWeights multiplies in the soft constraints together; the
// caller renormalizes once afterwards.
func (b *Builder) applySoftWeights(d *Dist, r *rank.Rank, center float64) {
	sounding := b.Pool.ActiveNotes()
	rootPC := r.Root(b.KeyCenter)
	direction := gciDirection(r)

	gaussian := distuv.Normal{Mu: center, Sigma: constants.GaussianWidth / 3}
	peak := gaussian.Prob(center)

	for i := range d {
		if d[i] == 0 {
			continue
		}

		// perfect-interval boost against anything currently sounding
		for _, n := range sounding {
			if pitch.IsPerfectConsonance(i, n) {
				d[i] *= constants.PerfectFifthBoost
				break
			}
		}

		// harmonic-function weighting against the rank root
		d[i] *= harmonicWeights[pitch.Class(i-rootPC)]

		// voice-leading bias: 1-2 semitones in the direction the grey
		// code moved, accumulated over sounding notes
		if direction != 0 {
			bias := 1.0
			for _, n := range sounding {
				dist := (i - n) * direction
				if dist == 1 || dist == 2 {
					bias += constants.VoiceLeadingStrength * float64(3-dist)
				}
			}
			d[i] *= bias
		}

		// spatial preference around the rank's octave center
		curve := gaussian.Prob(float64(i)) / peak
		d[i] *= (1 - constants.GaussianStrength) + constants.GaussianStrength*curve
	}
}

func gciDirection(r *rank.Rank) int {
	switch gci := r.GCI(); {
	case gci > r.PreviousGCI:
		return 1
	case gci < r.PreviousGCI:
		return -1
	default:
		return 0
	}
}

// normalize scales the weights to sum 1.0. It reports false when the
// distribution degenerated to all zero.
func (b *Builder) normalize(d *Dist) bool {
	total := floats.Sum(d[:])
	if total <= 0 {
		return false
	}
	floats.Scale(1/total, d[:])
	return true
}

func (b *Builder) uniformWindow(d *Dist, center, half float64) {
	count := 0
	for i := range d {
		if float64(i) >= center-half && float64(i) <= center+half &&
			i >= constants.LowestNote && i <= constants.HighestNote {
			count++
		}
	}
	if count == 0 {
		// window lies entirely outside the playable range; spread the
		// mass over the whole playable range instead
		for i := constants.LowestNote; i <= constants.HighestNote; i++ {
			d[i] = 1.0 / float64(constants.HighestNote-constants.LowestNote+1)
		}
		return
	}
	for i := range d {
		if float64(i) >= center-half && float64(i) <= center+half &&
			i >= constants.LowestNote && i <= constants.HighestNote {
			d[i] = 1.0 / float64(count)
		} else {
			d[i] = 0
		}
	}
}
