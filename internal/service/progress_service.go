package service

import (
	"thera-llm/internal/domain"
)

// ProgressService calcula las metricas de progreso de la sesion al final del
// turno. Deterministico sobre el historial completo: puede recalcularse si el
// historial cambia y nunca bloquea la persistencia.
type ProgressService struct{}

func NewProgressService() ProgressService {
	return ProgressService{}
}

// Compute deriva el progreso del historial (posiblemente recien extendido),
// la evaluacion del turno y el analisis.
func (ProgressService) Compute(snapshot domain.ConversationSnapshot, assessment domain.RiskAssessment, analysis ContextualAnalysis, newVersion *domain.PlanVersion) domain.SessionProgress {
	history := append(append([]domain.RiskAssessment{}, snapshot.RiskHistory...), assessment)
	trend := calculateTrend(history)

	// Punto de partida neutral, empujado por engagement y tendencia.
	score := 0.5

	messageCount := len(snapshot.Messages) + 1
	engagement := float64(messageCount) / 20.0
	if engagement > 0.2 {
		engagement = 0.2
	}
	score += engagement

	switch trend.Direction {
	case TrendDecreasing:
		score += 0.2
	case TrendIncreasing:
		score -= 0.2
	}

	var completed []string
	if newVersion != nil {
		completed = newVersion.Content.Metrics.CompletedGoals
		score += 0.1 * float64(len(completed))
	}

	if assessment.Level == domain.RiskCritical {
		score = 0
	}

	return domain.SessionProgress{
		Score:          clamp01(score),
		Insights:       analysis.Insights,
		CompletedGoals: completed,
		TrendDirection: trend.Direction,
	}
}
