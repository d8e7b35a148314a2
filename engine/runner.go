package engine

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pool"
	"github.com/fibril-audio/fibril/rank"
)

// Publisher receives the voice deltas of each completed cycle.
type Publisher interface {
	PublishCycle(res model.CycleResult)
}

// Runner funnels all mutation through a single lock: inbound control
// updates buffer here and are applied atomically right before a cycle
// runs, never mid-cycle. A debounce window coalesces bursts of
// bit-level updates into one allocation pass.
type Runner struct {
	mu         sync.Mutex
	engine     *Engine
	registry   *rank.Registry
	pool       *pool.Pool
	log        logging.Logger
	publishers []Publisher

	pending   []model.ControlEvent
	debounced func(f func())
}

func NewRunner(e *Engine, registry *rank.Registry, p *pool.Pool, window time.Duration, log logging.Logger) *Runner {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Runner{
		engine:    e,
		registry:  registry,
		pool:      p,
		log:       log,
		debounced: debounce.New(window),
	}
}

// AddPublisher registers an outbound consumer of cycle results.
func (r *Runner) AddPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers = append(r.publishers, p)
}

// Apply buffers an inbound control event and arms the coalescing
// window. Validation happens at application time; malformed events are
// rejected then with no state change.
func (r *Runner) Apply(ev model.ControlEvent) {
	r.mu.Lock()
	r.pending = append(r.pending, ev)
	r.mu.Unlock()
	r.debounced(r.flush)
}

func (r *Runner) flush() {
	res := r.RunNow()
	if len(res.Changes) == 0 && res.Dropped == 0 {
		return
	}
	r.mu.Lock()
	pubs := make([]Publisher, len(r.publishers))
	copy(pubs, r.publishers)
	r.mu.Unlock()
	for _, p := range pubs {
		p.PublishCycle(res)
	}
}

// RunNow applies all buffered updates and executes one cycle
// synchronously. Exposed for the offline simulator and tests.
func (r *Runner) RunNow() model.CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.pending {
		r.applyLocked(ev)
	}
	r.pending = r.pending[:0]

	return r.engine.RunCycle()
}

func (r *Runner) applyLocked(ev model.ControlEvent) {
	if s, ok := ev.(model.SustainEvent); ok {
		r.engine.SetSustain(s.On)
		return
	}
	if _, err := r.registry.Apply(ev); err != nil {
		r.log.Warn("control update rejected", logging.Fields{
			"event": ev, "reason": err.Error(),
		})
	}
}

// Snapshot copies the full system state for display collaborators. Safe
// to call between cycles.
func (r *Runner) Snapshot() model.SystemSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.SystemSnapshot{
		KeyCenter: r.registry.KeyCenter(),
		Sustain:   r.engine.SustainEngaged(),
		Ranks:     r.registry.Snapshot(),
		Voices:    r.pool.Snapshot(),
	}
}
