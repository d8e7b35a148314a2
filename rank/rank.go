// Package rank holds the 8 fixed-numbered ranks, their validated
// setters and the small derivations the allocator needs.
package rank

import (
	"fmt"

	"github.com/fibril-audio/fibril/constants"
	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pitch"
)

// densityByOnes maps the number of set grey-code bits to a voice count.
// More structure in the code means more voices; the mapping is monotonic
// non-decreasing.
var densityByOnes = [5]int{0, 2, 3, 4, 6}

// Rank is one of the 8 fixed harmonic-function voice groups.
type Rank struct {
	Number       int
	Priority     int
	Tonicization int
	Bits         [4]int
	PreviousGCI  int
}

// GCI is the binary value of the 4 grey-code bits.
func (r *Rank) GCI() int {
	v := 0
	for _, bit := range r.Bits {
		v = v<<1 | bit
	}
	return v
}

// Density is always derived from the grey code, never stored.
func (r *Rank) Density() int {
	ones := 0
	for _, bit := range r.Bits {
		ones += bit
	}
	return densityByOnes[ones]
}

// OctaveCenter is the mean of the rank's register-preference curve.
// Priority 1 sits at the key center's home octave; each priority step
// pushes half an octave up.
func (r *Rank) OctaveCenter(keyCenter int) float64 {
	octave := (float64(r.Priority) + 7) / 2
	return float64(constants.MiddleC+keyCenter) + (octave-4)*12
}

// SpreadHalfWidth is how far the rank may reach from its center, in
// semitones. density/2 truncates, in whole octaves.
func (r *Rank) SpreadHalfWidth() int {
	return (r.Density() / 2) * 12
}

// Root returns the rank's root pitch class for a key center.
func (r *Rank) Root(keyCenter int) int {
	return pitch.RankRoot(keyCenter, r.Tonicization)
}

// Fifth returns the rank's fifth pitch class for a key center.
func (r *Rank) Fifth(keyCenter int) int {
	return pitch.RankFifth(keyCenter, r.Tonicization)
}

// Registry owns the ranks and the key center. It is not synchronized;
// the cycle runner is the single writer.
type Registry struct {
	ranks     [model.NumRanks]Rank
	keyCenter int
}

// NewRegistry builds the default configuration: rank n has priority n
// and tonicization n, except rank 8 which takes the subtonic role.
func NewRegistry() *Registry {
	reg := &Registry{}
	for i := range reg.ranks {
		n := i + 1
		tonicization := n
		if n == model.NumRanks {
			tonicization = pitch.Subtonic
		}
		reg.ranks[i] = Rank{
			Number:       n,
			Priority:     n,
			Tonicization: tonicization,
		}
	}
	return reg
}

// Rank returns the rank with the given number (1-8), or nil.
func (g *Registry) Rank(number int) *Rank {
	if number < 1 || number > model.NumRanks {
		return nil
	}
	return &g.ranks[number-1]
}

// All returns the ranks in number order.
func (g *Registry) All() []*Rank {
	res := make([]*Rank, 0, model.NumRanks)
	for i := range g.ranks {
		res = append(res, &g.ranks[i])
	}
	return res
}

// KeyCenter is the global key center pitch class.
func (g *Registry) KeyCenter() int {
	return g.keyCenter
}

// SetPriority updates a rank's priority. Duplicates across ranks are
// allowed; ties are broken by rank number downstream.
func (g *Registry) SetPriority(number, value int) (bool, error) {
	r := g.Rank(number)
	if r == nil {
		return false, fmt.Errorf("%w: rank %v", model.ErrInvalidParameter, number)
	}
	if value < 1 || value > model.NumRanks {
		return false, fmt.Errorf("%w: priority %v", model.ErrInvalidParameter, value)
	}
	if r.Priority == value {
		return false, nil
	}
	r.Priority = value
	return true, nil
}

// SetTonicization updates a rank's scale-degree assignment (1-9).
func (g *Registry) SetTonicization(number, value int) (bool, error) {
	r := g.Rank(number)
	if r == nil {
		return false, fmt.Errorf("%w: rank %v", model.ErrInvalidParameter, number)
	}
	if value < 1 || value > pitch.Subtonic {
		return false, fmt.Errorf("%w: tonicization %v", model.ErrInvalidParameter, value)
	}
	if r.Tonicization == value {
		return false, nil
	}
	r.Tonicization = value
	return true, nil
}

// SetGreyCodeBit updates one bit (0-3) of a rank's grey code.
func (g *Registry) SetGreyCodeBit(number, bit, value int) (bool, error) {
	r := g.Rank(number)
	if r == nil {
		return false, fmt.Errorf("%w: rank %v", model.ErrInvalidParameter, number)
	}
	if bit < 0 || bit > 3 {
		return false, fmt.Errorf("%w: bit index %v", model.ErrInvalidParameter, bit)
	}
	if value != 0 && value != 1 {
		return false, fmt.Errorf("%w: bit value %v", model.ErrInvalidParameter, value)
	}
	if r.Bits[bit] == value {
		return false, nil
	}
	r.Bits[bit] = value
	return true, nil
}

// SetKeyCenter updates the global key center pitch class (0-11).
func (g *Registry) SetKeyCenter(pc int) (bool, error) {
	if pc < 0 || pc > 11 {
		return false, fmt.Errorf("%w: pitch class %v", model.ErrInvalidParameter, pc)
	}
	if g.keyCenter == pc {
		return false, nil
	}
	g.keyCenter = pc
	return true, nil
}

// Apply dispatches a decoded control event to the matching setter.
// Sustain events are not registry state and report no change here.
func (g *Registry) Apply(ev model.ControlEvent) (bool, error) {
	switch e := ev.(type) {
	case model.PriorityEvent:
		return g.SetPriority(e.Rank, e.Value)
	case model.TonicizationEvent:
		return g.SetTonicization(e.Rank, e.Value)
	case model.GreyCodeBitEvent:
		return g.SetGreyCodeBit(e.Rank, e.Bit, e.Value)
	case model.KeyCenterEvent:
		return g.SetKeyCenter(e.PitchClass)
	default:
		return false, fmt.Errorf("%w: unknown event %T", model.ErrInvalidParameter, ev)
	}
}

// CommitCycle records each rank's GCI as the previous value for the
// next cycle's voice-leading comparison.
func (g *Registry) CommitCycle() {
	for i := range g.ranks {
		g.ranks[i].PreviousGCI = g.ranks[i].GCI()
	}
}

// Snapshot copies the rank state for display collaborators.
func (g *Registry) Snapshot() []model.RankSnapshot {
	res := make([]model.RankSnapshot, 0, model.NumRanks)
	for i := range g.ranks {
		r := &g.ranks[i]
		res = append(res, model.RankSnapshot{
			Number:       r.Number,
			Priority:     r.Priority,
			Tonicization: r.Tonicization,
			GreyCode:     r.Bits,
			GCI:          r.GCI(),
			Density:      r.Density(),
			PreviousGCI:  r.PreviousGCI,
		})
	}
	return res
}
