package domain

import "time"

// RiskLevel es el nivel ordenado de riesgo psicologico de un mensaje.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast compara niveles segun el orden LOW < MEDIUM < HIGH < CRITICAL.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return riskOrder[l] >= riskOrder[other]
}

// Umbrales de score para cada nivel.
const (
	riskCriticalThreshold = 0.8
	riskHighThreshold     = 0.6
	riskMediumThreshold   = 0.4
)

// RiskLevelForScore mapea un score en [0,1] a su nivel.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= riskCriticalThreshold:
		return RiskCritical
	case score >= riskHighThreshold:
		return RiskHigh
	case score >= riskMediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskAssessment es la evaluacion de riesgo de un mensaje. Inmutable; la lista
// cronologica por conversacion forma el historial de riesgo.
type RiskAssessment struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Level          RiskLevel `json:"level"`
	Score          float64   `json:"score"`
	Factors        []string  `json:"factors,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
