package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
)

func TestGenerateReturnsLLMText(t *testing.T) {
	client := &llm.MockClient{Response: "  Te escucho, cuentame mas.  "}
	svc := NewResponseService(client, zap.NewNop())

	got := svc.Generate(context.Background(), snapshotInState(domain.StateActiveGuidance), ContextualAnalysis{}, "hola")
	if got != "Te escucho, cuentame mas." {
		t.Fatalf("response = %q", got)
	}
}

func TestGenerateFallsBackPerPhase(t *testing.T) {
	client := &llm.MockClient{Err: errors.New("gateway down")}
	svc := NewResponseService(client, zap.NewNop())

	for state, want := range fallbackResponses {
		got := svc.Generate(context.Background(), snapshotInState(state), ContextualAnalysis{}, "hola")
		if got != want {
			t.Fatalf("fallback for %s = %q, want %q", state, got, want)
		}
	}
}

func TestGenerateFallsBackOnEmptyText(t *testing.T) {
	client := &llm.MockClient{Response: "   "}
	svc := NewResponseService(client, zap.NewNop())

	got := svc.Generate(context.Background(), snapshotInState(domain.StateInfoGathering), ContextualAnalysis{}, "hola")
	if got != fallbackResponses[domain.StateInfoGathering] {
		t.Fatalf("expected phase fallback, got %q", got)
	}
}

func TestGenerateEmergencyAlwaysAnswers(t *testing.T) {
	client := &llm.MockClient{Err: errors.New("gateway down")}
	svc := NewResponseService(client, zap.NewNop())

	got := svc.GenerateEmergency(context.Background(), snapshotInState(domain.StateActiveGuidance), "ayuda")
	if got != fallbackResponses[domain.StateEmergencyIntervention] {
		t.Fatalf("emergency fallback mismatch: %q", got)
	}
	if !strings.Contains(got, "seguridad") {
		t.Fatalf("emergency fallback should mention safety: %q", got)
	}
}

func TestFallbackResponseUnknownPhase(t *testing.T) {
	got := FallbackResponse(domain.ConversationState("LIMBO"))
	if got != genericFallbackResponse {
		t.Fatalf("expected generic fallback, got %q", got)
	}
}
