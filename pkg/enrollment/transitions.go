package enrollment

import "slices"

// Transition represents a lifecycle edge.
type Transition struct {
	From State
	To   State
}

var validTransitions = map[Transition]bool{
	{StateActive, StateGrace}:   true, // Completed or deadline passed
	{StateGrace, StateExpired}:  true, // Grace window closed
	{StateGrace, StateActive}:   true, // Re-enrolled during grace
	{StateExpired, StateActive}: true, // Re-enrolled after expiry
	{StateNone, StateActive}:    true, // First enrollment
}

// CanTransition checks if moving from one state to another is valid.
func CanTransition(from, to State) bool {
	return validTransitions[Transition{from, to}]
}

// ValidTransitionsFrom returns all valid target states from the given state.
func ValidTransitionsFrom(from State) []State {
	targets := make([]State, 0)
	for t := range validTransitions {
		if t.From == from {
			targets = append(targets, t.To)
		}
	}

	slices.Sort(targets)
	return targets
}
