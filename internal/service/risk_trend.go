package service

import (
	"math"

	"thera-llm/internal/domain"
)

// Direcciones posibles de la tendencia de riesgo.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const (
	trendWindow         = 5
	trendSlopeThreshold = 0.05
)

// RiskTrend resume el comportamiento reciente del historial de riesgo.
type RiskTrend struct {
	Baseline   float64
	Volatility float64
	Direction  string
}

// calculateTrend deriva baseline (media ponderada exponencialmente hacia lo
// reciente), volatilidad (desviacion estandar normalizada) y direccion (signo
// de la pendiente de una regresion lineal corta) de los ultimos scores.
// Con menos de 2 puntos: stable, volatilidad 0, baseline = ultimo score o 0.5.
func calculateTrend(history []domain.RiskAssessment) RiskTrend {
	scores := lastScores(history, trendWindow)

	if len(scores) < 2 {
		baseline := 0.5
		if len(scores) == 1 {
			baseline = scores[0]
		}
		return RiskTrend{Baseline: baseline, Volatility: 0, Direction: TrendStable}
	}

	var weightedSum, weightTotal float64
	for i, s := range scores {
		// peso 2^i: el score mas reciente domina la linea base
		w := math.Pow(2, float64(i))
		weightedSum += s * w
		weightTotal += w
	}
	baseline := weightedSum / weightTotal

	var mean float64
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	var variance float64
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(scores))
	stddev := math.Sqrt(variance)

	volatility := stddev
	if mean > 0 {
		volatility = stddev / mean
	}
	volatility = clamp01(volatility)

	direction := TrendStable
	slope := regressionSlope(scores)
	switch {
	case slope > trendSlopeThreshold:
		direction = TrendIncreasing
	case slope < -trendSlopeThreshold:
		direction = TrendDecreasing
	}

	return RiskTrend{
		Baseline:   baseline,
		Volatility: volatility,
		Direction:  direction,
	}
}

// regressionSlope calcula la pendiente por minimos cuadrados sobre (i, score).
func regressionSlope(scores []float64) float64 {
	n := float64(len(scores))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range scores {
		x := float64(i)
		sumX += x
		sumY += s
		sumXY += x * s
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func lastScores(history []domain.RiskAssessment, n int) []float64 {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	scores := make([]float64, 0, len(history))
	for _, a := range history {
		scores = append(scores, a.Score)
	}
	return scores
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
