package enrollment

import "testing"

func TestCanTransition_ValidTransitions(t *testing.T) {
	for transition := range validTransitions {
		transition := transition
		t.Run(string(transition.From)+"_to_"+string(transition.To), func(t *testing.T) {
			if !CanTransition(transition.From, transition.To) {
				t.Fatalf("expected transition %s -> %s to be valid", transition.From, transition.To)
			}
		})
	}
}

func TestCanTransition_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{name: "active_to_expired", from: StateActive, to: StateExpired},
		{name: "expired_to_grace", from: StateExpired, to: StateGrace},
		{name: "none_to_grace", from: StateNone, to: StateGrace},
		{name: "active_to_itself", from: StateActive, to: StateActive},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if CanTransition(tt.from, tt.to) {
				t.Fatalf("expected transition %s -> %s to be invalid", tt.from, tt.to)
			}
		})
	}
}

func TestValidTransitionsFrom(t *testing.T) {
	got := ValidTransitionsFrom(StateGrace)
	if len(got) != 2 || got[0] != StateActive || got[1] != StateExpired {
		t.Fatalf("ValidTransitionsFrom(grace) = %v", got)
	}
	if got := ValidTransitionsFrom(StateExpired); len(got) != 1 || got[0] != StateActive {
		t.Fatalf("ValidTransitionsFrom(expired) = %v", got)
	}
}
