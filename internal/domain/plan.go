package domain

import "time"

// Estados validos de una meta terapeutica.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
)

// PlanGoal es una meta dentro del contenido de una version del plan.
type PlanGoal struct {
	Codename   string   `json:"codename"`
	State      string   `json:"state"`
	Approach   string   `json:"approach"`
	Conditions []string `json:"conditions,omitempty"`
}

// PlanMetrics agrupa metricas de progreso de una version.
type PlanMetrics struct {
	CompletedGoals []string `json:"completed_goals,omitempty"`
	SessionCount   int      `json:"session_count,omitempty"`
	EngagementNote string   `json:"engagement_note,omitempty"`
}

// PlanContent es el cuerpo completo de una version del plan terapeutico.
type PlanContent struct {
	Goals       []PlanGoal  `json:"goals"`
	Techniques  []string    `json:"techniques"`
	Approach    string      `json:"approach"`
	Focus       string      `json:"focus,omitempty"`
	RiskFactors []string    `json:"risk_factors,omitempty"`
	Metrics     PlanMetrics `json:"metrics,omitempty"`
}

// PlanVersion es una entrada inmutable en la cadena append-only del plan.
// Los numeros de version forman una cadena densa y creciente desde 1;
// PreviousID apunta a la version N-1 y queda vacio solo en la primera.
type PlanVersion struct {
	ID              string      `json:"id"`
	PlanID          string      `json:"plan_id"`
	PreviousID      string      `json:"previous_id,omitempty"`
	Version         int         `json:"version"`
	Content         PlanContent `json:"content"`
	ValidationScore float64     `json:"validation_score"`
	CreatedAt       time.Time   `json:"created_at"`
}

// TherapeuticPlan referencia sus versiones por id; CurrentVersionID es el
// unico campo mutable y siempre debe apuntar a una version de VersionIDs.
type TherapeuticPlan struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	VersionIDs       []string  `json:"version_ids"`
	CurrentVersionID string    `json:"current_version_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasVersion indica si la version pertenece a la cadena del plan.
func (p TherapeuticPlan) HasVersion(versionID string) bool {
	for _, id := range p.VersionIDs {
		if id == versionID {
			return true
		}
	}
	return false
}
