package domain

import "time"

// ConversationSnapshot es la foto inmutable del contexto que consume el
// pipeline de procesamiento; ninguna etapa la modifica.
type ConversationSnapshot struct {
	Conversation Conversation
	Messages     []Message
	RiskHistory  []RiskAssessment
	Plan         TherapeuticPlan
	Versions     map[string]PlanVersion
	Insights     []string
}

// CurrentPlanVersion devuelve la version vigente del plan, si existe.
func (s ConversationSnapshot) CurrentPlanVersion() (PlanVersion, bool) {
	v, ok := s.Versions[s.Plan.CurrentVersionID]
	return v, ok
}

// SessionProgress son las metricas de progreso calculadas al final del turno.
type SessionProgress struct {
	Score          float64  `json:"score"`
	Insights       []string `json:"insights,omitempty"`
	CompletedGoals []string `json:"completed_goals,omitempty"`
	TrendDirection string   `json:"trend_direction,omitempty"`
}

// ProcessingResult es el contrato unico entre el orquestador y el colaborador
// que persiste y responde. Efimero: no se guarda como registro propio.
type ProcessingResult struct {
	Assessment          RiskAssessment
	Transition          StateTransition
	Response            string
	NewPlanVersion      *PlanVersion
	SuggestedTechniques []string
	Progress            SessionProgress
	EmergencyBypass     bool
}

// SessionResponse es lo que ve el canal de mensajeria tras un turno.
type SessionResponse struct {
	Message             string            `json:"message"`
	State               ConversationState `json:"state"`
	RiskLevel           RiskLevel         `json:"risk_level"`
	SuggestedTechniques []string          `json:"suggested_techniques,omitempty"`
	ProgressScore       float64           `json:"progress_score"`
	ProgressInsights    []string          `json:"progress_insights,omitempty"`
}

// UserInfo resume el estado de la sesion activa de un usuario.
type UserInfo struct {
	State           ConversationState `json:"state"`
	MessageCount    int               `json:"message_count"`
	SessionDuration time.Duration     `json:"session_duration"`
	PlanFocusArea   string            `json:"plan_focus_area,omitempty"`
	PlanVersion     int               `json:"plan_version"`
	RecentInsights  []string          `json:"recent_insights,omitempty"`
}
