package domain

import "time"

// ConversationState es la fase terapeutica vigente de una conversacion.
type ConversationState string

const (
	StateInfoGathering         ConversationState = "INFO_GATHERING"
	StateActiveGuidance        ConversationState = "ACTIVE_GUIDANCE"
	StatePlanRevision          ConversationState = "PLAN_REVISION"
	StateEmergencyIntervention ConversationState = "EMERGENCY_INTERVENTION"
	StateSessionClosing        ConversationState = "SESSION_CLOSING"
)

// Conversation es la unidad de continuidad de la sesion de un usuario.
// Mensajes, evaluaciones de riesgo y versiones del plan viven en sus propios
// repositorios indexados por id; aca solo quedan los punteros.
type Conversation struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	State     ConversationState `json:"state"`
	PlanID    string            `json:"plan_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StateTransition registra el cambio de fase aceptado en un turno.
type StateTransition struct {
	From   ConversationState `json:"from"`
	To     ConversationState `json:"to"`
	Reason string            `json:"reason,omitempty"`
}
