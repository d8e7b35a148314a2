package engine

// Transition is the result of feeding a sustain update to the state
// machine.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionEngaged
	TransitionReleased
)

// Sustain is the two-state pedal machine gating which voices the pool
// and the engine may touch.
type Sustain struct {
	on bool
}

// Set feeds the pedal state and reports the transition, if any.
// Repeated identical updates are no-ops.
func (s *Sustain) Set(on bool) Transition {
	if on == s.on {
		return TransitionNone
	}
	s.on = on
	if on {
		return TransitionEngaged
	}
	return TransitionReleased
}

// Engaged reports whether the pedal is currently held.
func (s *Sustain) Engaged() bool {
	return s.on
}
