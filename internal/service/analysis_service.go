package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
)

// ContextualAnalysis es la salida del analisis de contexto de un turno.
type ContextualAnalysis struct {
	ProposedState       domain.ConversationState `json:"proposed_state"`
	Reason              string                   `json:"reason"`
	ShouldRevisePlan    bool                     `json:"should_revise_plan"`
	RevisionReason      string                   `json:"revision_reason"`
	Themes              []string                 `json:"themes"`
	Insights            []string                 `json:"insights"`
	SuggestedTechniques []string                 `json:"suggested_techniques"`
	UserDissatisfied    bool                     `json:"user_dissatisfied"`
	// Degraded indica que el analisis es el fallback deterministico.
	Degraded bool `json:"-"`
}

// AnalysisService decide fase propuesta, señal de revision del plan y temas
// del turno. Esta etapa degrada a un fallback deterministico ante cualquier
// falla: nunca aborta el pipeline.
type AnalysisService struct {
	llmClient llm.Client
	logger    *zap.Logger
}

func NewAnalysisService(llmClient llm.Client, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{llmClient: llmClient, logger: logger}
}

// Analyze evalua el contexto inmutable del turno. Reintenta una vez ante
// formato invalido; si aun asi falla, devuelve el fallback (quedarse en la
// fase actual, sin revision de plan).
func (s *AnalysisService) Analyze(ctx context.Context, snapshot domain.ConversationSnapshot, userMessage string) (ContextualAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return ContextualAnalysis{}, err
	}

	prompt := buildAnalysisPrompt(snapshot, userMessage)

	analysis, err := s.runAnalysis(ctx, prompt)
	if err != nil {
		s.logger.Warn("analysis failed, retrying once",
			zap.Error(err),
			zap.String("conversation_id", snapshot.Conversation.ID),
		)
		analysis, err = s.runAnalysis(ctx, prompt)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ContextualAnalysis{}, ctx.Err()
		}
		s.logger.Warn("analysis degraded to fallback",
			zap.Error(err),
			zap.String("conversation_id", snapshot.Conversation.ID),
		)
		return fallbackAnalysis(snapshot.Conversation.State), nil
	}

	return analysis, nil
}

func (s *AnalysisService) runAnalysis(ctx context.Context, prompt string) (ContextualAnalysis, error) {
	raw, err := s.llmClient.Complete(ctx, prompt, llm.Options{Temperature: 0.2, MaxTokens: 600})
	if err != nil {
		return ContextualAnalysis{}, fmt.Errorf("llm complete: %w", err)
	}

	var parsed ContextualAnalysis
	if err := json.Unmarshal([]byte(extractJSONCandidate(raw)), &parsed); err != nil {
		return ContextualAnalysis{}, fmt.Errorf("parse analysis response: %w", err)
	}

	parsed.ProposedState = domain.ConversationState(strings.ToUpper(strings.TrimSpace(string(parsed.ProposedState))))
	if !isKnownState(parsed.ProposedState) {
		return ContextualAnalysis{}, fmt.Errorf("unknown proposed state %q", parsed.ProposedState)
	}
	if parsed.ShouldRevisePlan && strings.TrimSpace(parsed.RevisionReason) == "" {
		parsed.RevisionReason = "analysis signaled revision"
	}
	return parsed, nil
}

func fallbackAnalysis(current domain.ConversationState) ContextualAnalysis {
	return ContextualAnalysis{
		ProposedState: current,
		Reason:        "analysis unavailable, holding current phase",
		Degraded:      true,
	}
}

func isKnownState(state domain.ConversationState) bool {
	switch state {
	case domain.StateInfoGathering,
		domain.StateActiveGuidance,
		domain.StatePlanRevision,
		domain.StateEmergencyIntervention,
		domain.StateSessionClosing:
		return true
	}
	return false
}
