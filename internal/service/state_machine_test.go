package service

import (
	"errors"
	"testing"

	"thera-llm/internal/domain"
)

func TestStateMachineCanTransition(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		name string
		from domain.ConversationState
		to   domain.ConversationState
		want bool
	}{
		{"info a guidance", domain.StateInfoGathering, domain.StateActiveGuidance, true},
		{"info a emergencia", domain.StateInfoGathering, domain.StateEmergencyIntervention, true},
		{"info no salta a revision", domain.StateInfoGathering, domain.StatePlanRevision, false},
		{"info no cierra directo", domain.StateInfoGathering, domain.StateSessionClosing, false},
		{"guidance se queda", domain.StateActiveGuidance, domain.StateActiveGuidance, true},
		{"guidance a revision", domain.StateActiveGuidance, domain.StatePlanRevision, true},
		{"guidance vuelve a info", domain.StateActiveGuidance, domain.StateInfoGathering, true},
		{"guidance cierra", domain.StateActiveGuidance, domain.StateSessionClosing, true},
		{"revision vuelve a guidance", domain.StatePlanRevision, domain.StateActiveGuidance, true},
		{"revision no cierra", domain.StatePlanRevision, domain.StateSessionClosing, false},
		{"emergencia desescala a info", domain.StateEmergencyIntervention, domain.StateInfoGathering, true},
		{"emergencia no va a guidance", domain.StateEmergencyIntervention, domain.StateActiveGuidance, false},
		{"cierre es terminal", domain.StateSessionClosing, domain.StateInfoGathering, false},
		{"cierre ni a si mismo", domain.StateSessionClosing, domain.StateSessionClosing, false},
		{"estado desconocido", domain.ConversationState("LIMBO"), domain.StateInfoGathering, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sm.CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStateMachineNextRejectsIllegalEdge(t *testing.T) {
	sm := NewStateMachine()

	_, err := sm.Next(domain.StateInfoGathering, domain.StatePlanRevision)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	next, err := sm.Next(domain.StateActiveGuidance, domain.StateSessionClosing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != domain.StateSessionClosing {
		t.Fatalf("next = %s, want %s", next, domain.StateSessionClosing)
	}
}

func TestStateMachineIsTerminal(t *testing.T) {
	sm := NewStateMachine()

	if !sm.IsTerminal(domain.StateSessionClosing) {
		t.Fatalf("SESSION_CLOSING should be terminal")
	}
	if sm.IsTerminal(domain.StateActiveGuidance) {
		t.Fatalf("ACTIVE_GUIDANCE should not be terminal")
	}
	if sm.IsTerminal(domain.ConversationState("LIMBO")) {
		t.Fatalf("unknown state should not report terminal")
	}
}
