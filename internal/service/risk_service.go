package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
)

// RiskService evalua el riesgo psicologico de un mensaje combinando señal de
// sentimiento, patrones de crisis y tendencia historica. Funcion pura de
// (mensaje, historial): no persiste nada.
//
// Una falla del gateway aca se propaga como error tipado: una crisis no
// detectada es la falla mas costosa del dominio, nunca se degrada en silencio.
type RiskService struct {
	llmClient llm.Client
	logger    *zap.Logger
}

func NewRiskService(llmClient llm.Client, logger *zap.Logger) *RiskService {
	return &RiskService{llmClient: llmClient, logger: logger}
}

// RiskStageError marca la falla dura de la etapa de riesgo.
type RiskStageError struct {
	Err error
}

func (e *RiskStageError) Error() string {
	return fmt.Sprintf("risk assessment stage: %v", e.Err)
}

func (e *RiskStageError) Unwrap() error { return e.Err }

// Vocabulario de alto riesgo: si un patron detectado contiene alguno de estos
// terminos, la accion inmediata se fuerza aunque el modelo diga lo contrario.
var highRiskVocabulary = []string{
	"suicidal_ideation",
	"self_harm",
	"violence",
	"severe_dissociation",
	"acute_crisis",
}

// Pesos de la formula compuesta.
const (
	sentimentWeight = 0.3
	crisisWeight    = 0.4
	trendWeight     = 0.3

	intensityFactorThreshold = 0.7
	severityPenaltyThreshold = 0.7
	severityPenaltyFactor    = 0.2
	severityPenaltyScoreGate = 0.5
)

type sentimentSignal struct {
	Valence   float64  `json:"valence"`
	Intensity float64  `json:"intensity"`
	Emotions  []string `json:"emotions"`
}

type crisisSignal struct {
	Patterns                []string `json:"patterns"`
	Severity                float64  `json:"severity"`
	RequiresImmediateAction bool     `json:"requires_immediate_action"`
}

// Assess evalua un mensaje contra su historial de riesgo.
func (s *RiskService) Assess(ctx context.Context, message domain.Message, history []domain.RiskAssessment) (domain.RiskAssessment, error) {
	// Sentimiento y patrones de crisis solo dependen del mensaje; se lanzan
	// en paralelo.
	type sentimentResult struct {
		signal sentimentSignal
		err    error
	}
	type crisisResult struct {
		signal crisisSignal
		err    error
	}

	sentimentCh := make(chan sentimentResult, 1)
	crisisCh := make(chan crisisResult, 1)

	go func() {
		sig, err := s.analyzeSentiment(ctx, message.Content)
		sentimentCh <- sentimentResult{signal: sig, err: err}
	}()
	go func() {
		sig, err := s.scanCrisisPatterns(ctx, message.Content)
		crisisCh <- crisisResult{signal: sig, err: err}
	}()

	sentiment := <-sentimentCh
	crisis := <-crisisCh

	if sentiment.err != nil {
		return domain.RiskAssessment{}, &RiskStageError{Err: fmt.Errorf("sentiment signal: %w", sentiment.err)}
	}
	if crisis.err != nil {
		return domain.RiskAssessment{}, &RiskStageError{Err: fmt.Errorf("crisis scan: %w", crisis.err)}
	}

	trend := calculateTrend(history)

	assessment := s.compose(message, sentiment.signal, crisis.signal, trend)
	s.logger.Info("risk assessed",
		zap.String("conversation_id", message.ConversationID),
		zap.String("level", string(assessment.Level)),
		zap.Float64("score", assessment.Score),
	)
	return assessment, nil
}

func (s *RiskService) compose(message domain.Message, sentiment sentimentSignal, crisis crisisSignal, trend RiskTrend) domain.RiskAssessment {
	immediate := crisis.RequiresImmediateAction || hasHighRiskPattern(crisis.Patterns)

	var score float64
	var level domain.RiskLevel

	if immediate {
		// Cortocircuito: CRITICAL gana sin importar el score compuesto.
		score = clamp01(0.9 + 0.1*crisis.Severity)
		level = domain.RiskCritical
	} else {
		trendComponent := trend.Baseline
		switch trend.Direction {
		case TrendIncreasing:
			trendComponent += trend.Volatility
		case TrendDecreasing:
			trendComponent -= trend.Volatility
		}
		if trendComponent < 0 {
			trendComponent = 0
		}

		score = sentimentWeight*(1-sentiment.Valence)*sentiment.Intensity +
			crisisWeight*crisis.Severity +
			trendWeight*trendComponent

		if trend.Direction == TrendIncreasing && trend.Volatility > 0 {
			score *= 1 + trend.Volatility
		}
		if crisis.Severity > severityPenaltyThreshold && score > severityPenaltyScoreGate {
			score += crisis.Severity * severityPenaltyFactor
		}

		score = clamp01(score)
		level = domain.RiskLevelForScore(score)
	}

	var factors []string
	if sentiment.Intensity > intensityFactorThreshold {
		factors = append(factors, sentiment.Emotions...)
	}
	factors = append(factors, crisis.Patterns...)

	return domain.RiskAssessment{
		ID:             uuid.NewString(),
		ConversationID: message.ConversationID,
		Level:          level,
		Score:          score,
		Factors:        dedupe(factors),
		CreatedAt:      time.Now().UTC(),
	}
}

func (s *RiskService) analyzeSentiment(ctx context.Context, text string) (sentimentSignal, error) {
	prompt := buildSentimentPrompt(text)

	raw, err := s.llmClient.Complete(ctx, prompt, llm.Options{Temperature: 0.1, MaxTokens: 300})
	if err != nil {
		return sentimentSignal{}, fmt.Errorf("llm complete: %w", err)
	}

	var parsed sentimentSignal
	if err := json.Unmarshal([]byte(extractJSONCandidate(raw)), &parsed); err != nil {
		return sentimentSignal{}, fmt.Errorf("parse sentiment response: %w", err)
	}
	parsed.Valence = clamp01(parsed.Valence)
	parsed.Intensity = clamp01(parsed.Intensity)
	return parsed, nil
}

func (s *RiskService) scanCrisisPatterns(ctx context.Context, text string) (crisisSignal, error) {
	prompt := buildCrisisScanPrompt(text)

	raw, err := s.llmClient.Complete(ctx, prompt, llm.Options{Temperature: 0.0, MaxTokens: 300})
	if err != nil {
		return crisisSignal{}, fmt.Errorf("llm complete: %w", err)
	}

	var parsed crisisSignal
	if err := json.Unmarshal([]byte(extractJSONCandidate(raw)), &parsed); err != nil {
		return crisisSignal{}, fmt.Errorf("parse crisis response: %w", err)
	}
	parsed.Severity = clamp01(parsed.Severity)
	return parsed, nil
}

func hasHighRiskPattern(patterns []string) bool {
	for _, p := range patterns {
		lower := strings.ToLower(p)
		for _, term := range highRiskVocabulary {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
