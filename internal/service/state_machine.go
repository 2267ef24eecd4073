package service

import (
	"errors"
	"fmt"

	"thera-llm/internal/domain"
)

// ErrInvalidTransition marca una transicion propuesta fuera del grafo.
// Es un error de salida del analisis, nunca se corrige en silencio.
var ErrInvalidTransition = errors.New("invalid state transition")

// stateTransitions es el grafo dirigido de fases permitidas.
// SESSION_CLOSING es terminal: sin aristas salientes.
var stateTransitions = map[domain.ConversationState][]domain.ConversationState{
	domain.StateInfoGathering: {
		domain.StateInfoGathering,
		domain.StateActiveGuidance,
		domain.StateEmergencyIntervention,
	},
	domain.StateActiveGuidance: {
		domain.StateActiveGuidance,
		domain.StatePlanRevision,
		domain.StateInfoGathering,
		domain.StateEmergencyIntervention,
		domain.StateSessionClosing,
	},
	domain.StatePlanRevision: {
		domain.StatePlanRevision,
		domain.StateActiveGuidance,
		domain.StateEmergencyIntervention,
	},
	domain.StateEmergencyIntervention: {
		domain.StateEmergencyIntervention,
		domain.StateInfoGathering,
		domain.StateSessionClosing,
	},
	domain.StateSessionClosing: {},
}

// StateMachine valida transiciones de fase contra el grafo fijo.
// La decision de que fase proponer viene del analisis contextual;
// aca solo se verifica legalidad.
type StateMachine struct{}

func NewStateMachine() StateMachine {
	return StateMachine{}
}

// Next devuelve la fase propuesta si la transicion es legal.
func (StateMachine) Next(current, proposed domain.ConversationState) (domain.ConversationState, error) {
	if !canTransition(current, proposed) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, proposed)
	}
	return proposed, nil
}

// CanTransition indica si la arista existe en el grafo.
func (StateMachine) CanTransition(from, to domain.ConversationState) bool {
	return canTransition(from, to)
}

// IsTerminal indica si la fase no tiene aristas salientes.
func (StateMachine) IsTerminal(state domain.ConversationState) bool {
	targets, ok := stateTransitions[state]
	return ok && len(targets) == 0
}

func canTransition(from, to domain.ConversationState) bool {
	targets, ok := stateTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
