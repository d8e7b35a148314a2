// Package engine runs the cascading allocation cycle: rank ordering,
// distribution merging, weighted sampling and voice pool commits.
package engine

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/fibril-audio/fibril/constants"
	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pitch"
	"github.com/fibril-audio/fibril/pool"
	"github.com/fibril-audio/fibril/probmap"
	"github.com/fibril-audio/fibril/rank"
	"github.com/fibril-audio/fibril/util"
)

// Engine owns the per-cycle allocation algorithm. It is driven by the
// Runner and must only be touched by one goroutine.
type Engine struct {
	registry *rank.Registry
	pool     *pool.Pool
	log      logging.Logger
	src      rand.Source

	sustain *Sustain
	// last buffered pedal value, applied at the top of the next cycle
	pendingSustain *bool
	// set on the OFF->ON transition, cleared when the cycle commits;
	// selects the sustained-overflow policy for that one cycle
	engagedThisCycle bool

	// rank number -> voice ids allocated on that rank's behalf
	owners map[int][]int
}

func New(registry *rank.Registry, p *pool.Pool, log logging.Logger, seed uint64) *Engine {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Engine{
		registry: registry,
		pool:     p,
		log:      log,
		src:      rand.NewPCG(seed, seed+1),
		sustain:  &Sustain{},
		owners:   make(map[int][]int),
	}
}

// SustainEngaged reports the current pedal state.
func (e *Engine) SustainEngaged() bool {
	return e.sustain.Engaged()
}

// SetSustain buffers a pedal update. Updates coalesce (last value
// wins) and take effect atomically at the top of the next cycle.
func (e *Engine) SetSustain(on bool) {
	v := on
	e.pendingSustain = &v
}

// applySustain runs the state machine. The OFF->ON transition freezes
// every sounding voice; ON->OFF lifts protection without deallocating,
// later cycles reconcile the voice count naturally.
func (e *Engine) applySustain(on bool) Transition {
	t := e.sustain.Set(on)
	switch t {
	case TransitionEngaged:
		n := e.pool.MarkAllActiveAsSustained()
		e.engagedThisCycle = true
		e.log.Info("sustain engaged", logging.Fields{"frozen": n})
	case TransitionReleased:
		e.pool.ClearAllSustained()
		e.log.Info("sustain released")
	}
	return t
}

// rankPlan is one rank's share of the cycle.
type rankPlan struct {
	rank   *rank.Rank
	wanted []int
}

// RunCycle executes one full allocation pass and returns the voice
// deltas. It never fails; over-constrained ranks recover locally and an
// exhausted pool drops notes for the cycle.
func (e *Engine) RunCycle() model.CycleResult {
	before := e.pool.Snapshot()

	if e.pendingSustain != nil {
		e.applySustain(*e.pendingSustain)
		e.pendingSustain = nil
	}

	e.reconcileOwners()

	active := e.activeRanks()
	builder := &probmap.Builder{
		KeyCenter: e.registry.KeyCenter(),
		Pool:      e.pool,
		Log:       e.log,
	}

	// notes that may not be chosen again this cycle: anything sounding
	// plus everything already picked by a higher-priority rank
	taken := make(map[int]bool)
	for _, n := range e.pool.ActiveNotes() {
		taken[n] = true
	}

	var plans []rankPlan
	totalNew := 0
	for _, r := range active {
		dist, err := builder.Build(r)
		if err != nil {
			if !errors.Is(err, model.ErrRankBypassed) {
				e.log.Error(err, "distribution build failed", logging.Fields{"rank": r.Number})
			}
			continue
		}
		wanted := e.planRank(r, &dist, taken)
		if len(wanted) > 0 {
			plans = append(plans, rankPlan{rank: r, wanted: wanted})
			totalNew += len(wanted)
		}
	}

	e.resolveOverflow(totalNew)

	dropped := e.commit(plans)
	e.shrink(active)

	e.registry.CommitCycle()
	e.engagedThisCycle = false

	return model.CycleResult{
		CycleID: uuid.New().String(),
		Changes: diff(before, e.pool.Snapshot()),
		Dropped: dropped,
	}
}

// activeRanks returns density>0 ranks in cascade order: ascending
// priority, ties broken by rank number.
func (e *Engine) activeRanks() []*rank.Rank {
	var active []*rank.Rank
	for _, r := range e.registry.All() {
		if r.Density() > 0 {
			active = append(active, r)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].Number < active[j].Number
	})
	return active
}

// planRank decides which new notes a rank takes this cycle: rooted-note
// requirements first, then weighted draws from its distribution.
func (e *Engine) planRank(r *rank.Rank, dist *probmap.Dist, taken map[int]bool) []int {
	needed := r.Density() - len(e.owners[r.Number])
	if needed <= 0 {
		return nil
	}

	keyCenter := e.registry.KeyCenter()
	var wanted []int
	claim := func(note int) {
		wanted = append(wanted, note)
		taken[note] = true
		needed--
	}

	// a rank with an unvoiced root claims it before anything else; with
	// room for a second note the fifth follows
	if !e.pool.HasPitchClass(r.Root(keyCenter)) {
		if note := chooseForClass(dist, r, keyCenter, r.Root(keyCenter), taken); note >= 0 {
			claim(note)
		}
	}
	if needed > 0 && r.Density() >= 2 && !e.pool.HasPitchClass(r.Fifth(keyCenter)) {
		if note := chooseForClass(dist, r, keyCenter, r.Fifth(keyCenter), taken); note >= 0 {
			claim(note)
		}
	}

	if needed <= 0 {
		return wanted
	}

	weights := make([]float64, len(dist))
	copy(weights, dist[:])
	for note := range taken {
		if note >= 0 && note < len(weights) {
			weights[note] = 0
		}
	}

	w := sampleuv.NewWeighted(weights, e.src)
	for needed > 0 {
		idx, ok := w.Take()
		if !ok {
			break
		}
		claim(idx)
	}
	return wanted
}

// chooseForClass picks the best concrete note for a pitch class: the
// heaviest unclaimed index of that class, which the register curve
// biases toward the rank's octave center. Falls back to the in-window
// index nearest the center when the distribution zeroed the class out.
func chooseForClass(dist *probmap.Dist, r *rank.Rank, keyCenter, pc int, taken map[int]bool) int {
	best, bestW := -1, 0.0
	for i := range dist {
		if taken[i] || pitch.Class(i) != pc {
			continue
		}
		if dist[i] > bestW {
			best, bestW = i, dist[i]
		}
	}
	if best >= 0 {
		return best
	}

	center := r.OctaveCenter(keyCenter)
	half := float64(r.SpreadHalfWidth())
	bestDist := math.Inf(1)
	for i := constants.LowestNote; i <= constants.HighestNote; i++ {
		if taken[i] || pitch.Class(i) != pc {
			continue
		}
		if float64(i) < center-half || float64(i) > center+half {
			continue
		}
		if d := math.Abs(float64(i) - center); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// resolveOverflow frees slots ahead of the commit when demand plus the
// current population would exceed the pool. The sustain-ON transition
// ages out by allocation time; ordinary density growth ages out by
// pitch.
func (e *Engine) resolveOverflow(totalNew int) {
	excess := e.pool.ActiveCount() + totalNew - model.NumVoices
	if excess <= 0 {
		return
	}
	var evicted []int
	if e.engagedThisCycle {
		evicted = e.pool.ReleaseSustainedOverflow(excess)
	} else {
		evicted = e.pool.ReleaseLowestPitchOverflow(excess)
	}
	e.log.Debug("overflow eviction", logging.Fields{
		"excess":  excess,
		"evicted": len(evicted),
		"sustain": e.engagedThisCycle,
	})
	e.reconcileOwners()
}

// commit turns the plans into pool allocations. Voices allocated while
// the pedal is held freeze immediately, like notes played into a held
// piano pedal.
func (e *Engine) commit(plans []rankPlan) int {
	dropped := 0
	for _, p := range plans {
		for _, note := range p.wanted {
			id, err := e.pool.Allocate(uint8(note))
			if err != nil {
				dropped++
				e.log.Warn("note dropped", logging.Fields{
					"rank": p.rank.Number,
					"note": note,
				})
				continue
			}
			e.disown(id)
			e.owners[p.rank.Number] = append(e.owners[p.rank.Number], id)
			if e.sustain.Engaged() {
				e.pool.MarkSustained(id)
			}
		}
	}
	return dropped
}

// shrink deactivates voices whose owning rank was bypassed or whose
// density dropped. Sustained voices are never touched by this path.
func (e *Engine) shrink(active []*rank.Rank) {
	density := make(map[int]int, len(active))
	for _, r := range active {
		density[r.Number] = r.Density()
	}

	numbers := util.GetKeys(e.owners)
	sort.Ints(numbers)
	for _, number := range numbers {
		ids := e.owners[number]
		excess := len(ids) - density[number]
		if excess <= 0 {
			continue
		}

		// release the rank's lowest-pitched voices first, mirroring the
		// density overflow policy
		candidates := make([]int, 0, len(ids))
		for _, id := range ids {
			if v := e.pool.Voice(id); v.Active && !v.Sustained {
				candidates = append(candidates, id)
			}
		}
		sort.Slice(candidates, func(a, b int) bool {
			return e.pool.Voice(candidates[a]).Note < e.pool.Voice(candidates[b]).Note
		})
		if excess < len(candidates) {
			candidates = candidates[:excess]
		}
		for _, id := range candidates {
			e.pool.Release(id)
		}
	}
	e.reconcileOwners()
}

// disown removes a voice id from every rank's ownership list. Called
// when a slot changes hands through stealing.
func (e *Engine) disown(id int) {
	for number, ids := range e.owners {
		kept := ids[:0]
		for _, owned := range ids {
			if owned != id {
				kept = append(kept, owned)
			}
		}
		if len(kept) == 0 {
			delete(e.owners, number)
		} else {
			e.owners[number] = kept
		}
	}
}

// reconcileOwners drops ownership records for voices that are no longer
// sounding (stolen, evicted or shrunk away).
func (e *Engine) reconcileOwners() {
	for number, ids := range e.owners {
		kept := ids[:0]
		for _, id := range ids {
			if e.pool.Voice(id).Active {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(e.owners, number)
		} else {
			e.owners[number] = kept
		}
	}
}

// diff reports every voice whose note, activity or sustain protection
// changed over the cycle, as the outbound (id, note, volume) tuples.
func diff(before, after []model.VoiceSnapshot) []model.VoiceChange {
	var changes []model.VoiceChange
	for i := range after {
		if before[i] == after[i] {
			continue
		}
		volume := 0
		if after[i].Active {
			volume = 1
		}
		changes = append(changes, model.VoiceChange{
			VoiceID: after[i].ID,
			Note:    after[i].Note,
			Volume:  volume,
		})
	}
	return changes
}
