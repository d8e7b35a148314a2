package model

// ControlEvent is the closed set of inbound control updates. Every
// message kind from the network collaborator decodes to exactly one
// variant at the boundary; the engine never sees raw key/value pairs.
type ControlEvent interface {
	controlEvent()
}

// PriorityEvent sets a rank's priority (1-8).
type PriorityEvent struct {
	Rank  int
	Value int
}

// TonicizationEvent sets a rank's scale-degree assignment (1-9).
type TonicizationEvent struct {
	Rank  int
	Value int
}

// GreyCodeBitEvent sets one bit (0-3) of a rank's grey code.
type GreyCodeBitEvent struct {
	Rank  int
	Bit   int
	Value int
}

// KeyCenterEvent sets the global key center pitch class (0-11).
type KeyCenterEvent struct {
	PitchClass int
}

// SustainEvent engages or releases the sustain pedal.
type SustainEvent struct {
	On bool
}

func (PriorityEvent) controlEvent()     {}
func (TonicizationEvent) controlEvent() {}
func (GreyCodeBitEvent) controlEvent()  {}
func (KeyCenterEvent) controlEvent()    {}
func (SustainEvent) controlEvent()      {}
