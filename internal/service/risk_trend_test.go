package service

import (
	"math"
	"testing"

	"thera-llm/internal/domain"
)

func assessmentsFromScores(scores ...float64) []domain.RiskAssessment {
	out := make([]domain.RiskAssessment, 0, len(scores))
	for _, s := range scores {
		out = append(out, domain.RiskAssessment{Score: s})
	}
	return out
}

func TestCalculateTrendEmptyHistory(t *testing.T) {
	trend := calculateTrend(nil)

	if trend.Direction != TrendStable {
		t.Fatalf("direction = %s, want %s", trend.Direction, TrendStable)
	}
	if trend.Baseline != 0.5 {
		t.Fatalf("baseline = %v, want 0.5", trend.Baseline)
	}
	if trend.Volatility != 0 {
		t.Fatalf("volatility = %v, want 0", trend.Volatility)
	}
}

func TestCalculateTrendSinglePoint(t *testing.T) {
	trend := calculateTrend(assessmentsFromScores(0.7))

	if trend.Direction != TrendStable {
		t.Fatalf("direction = %s, want %s", trend.Direction, TrendStable)
	}
	if trend.Baseline != 0.7 {
		t.Fatalf("baseline = %v, want 0.7", trend.Baseline)
	}
}

func TestCalculateTrendDirections(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   string
	}{
		{"ascendente", []float64{0.1, 0.3, 0.5}, TrendIncreasing},
		{"descendente", []float64{0.8, 0.5, 0.2}, TrendDecreasing},
		{"plano", []float64{0.4, 0.4, 0.4}, TrendStable},
		{"ruido bajo umbral", []float64{0.40, 0.42, 0.41}, TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := calculateTrend(assessmentsFromScores(tt.scores...))
			if trend.Direction != tt.want {
				t.Fatalf("direction = %s, want %s", trend.Direction, tt.want)
			}
		})
	}
}

func TestCalculateTrendBaselineWeighsRecentMore(t *testing.T) {
	// Con dos puntos los pesos son 1 y 2: baseline = (0*1 + 1*2) / 3.
	trend := calculateTrend(assessmentsFromScores(0, 1))

	want := 2.0 / 3.0
	if math.Abs(trend.Baseline-want) > 1e-9 {
		t.Fatalf("baseline = %v, want %v", trend.Baseline, want)
	}
}

func TestCalculateTrendUsesOnlyLastFive(t *testing.T) {
	// Los dos primeros scores altos quedan fuera de la ventana.
	scores := []float64{0.9, 0.9, 0.2, 0.2, 0.2, 0.2, 0.2}
	trend := calculateTrend(assessmentsFromScores(scores...))

	if trend.Direction != TrendStable {
		t.Fatalf("direction = %s, want %s", trend.Direction, TrendStable)
	}
	if math.Abs(trend.Baseline-0.2) > 1e-9 {
		t.Fatalf("baseline = %v, want 0.2", trend.Baseline)
	}
	if trend.Volatility != 0 {
		t.Fatalf("volatility = %v, want 0", trend.Volatility)
	}
}

func TestCalculateTrendVolatilityClamped(t *testing.T) {
	// Media baja con saltos grandes: stddev/mean supera 1 y debe recortarse.
	trend := calculateTrend(assessmentsFromScores(0.01, 0.9, 0.01, 0.9))

	if trend.Volatility != 1 {
		t.Fatalf("volatility = %v, want 1", trend.Volatility)
	}
}

func TestRegressionSlope(t *testing.T) {
	if got := regressionSlope([]float64{0.1, 0.3, 0.5}); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("slope = %v, want 0.2", got)
	}
	if got := regressionSlope([]float64{0.5, 0.5}); got != 0 {
		t.Fatalf("slope = %v, want 0", got)
	}
	if got := regressionSlope([]float64{0.5}); got != 0 {
		t.Fatalf("slope of single point = %v, want 0", got)
	}
}
