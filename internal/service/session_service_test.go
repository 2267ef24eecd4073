package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"thera-llm/internal/alert"
	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
	"thera-llm/internal/repository"
)

type recordingAlertSender struct {
	mu     sync.Mutex
	events []alert.Event
	err    error
}

func (s *recordingAlertSender) SendOperatorAlert(_ context.Context, event alert.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingAlertSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newSessionServiceForTest(t *testing.T, client llm.Client, alerts alert.Sender) (*SessionService, *repository.MemorySet) {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemorySet()
	planSvc := NewPlanService(store.Plans, client, logger)
	orchestrator := NewOrchestrator(
		NewRiskService(client, logger),
		NewAnalysisService(client, logger),
		NewStateMachine(),
		planSvc,
		NewResponseService(client, logger),
		NewProgressService(),
		NopNotifier{},
		logger,
	)
	svc := NewSessionService(
		store.Conversations, store.Messages, store.Risks, store.Plans, store.Results,
		planSvc, NewInsightService(store.Insights, client, logger), orchestrator,
		NewMemoryLocker(), alerts, logger,
	)
	return svc, store
}

func TestHandleFirstMessageCreatesConversationAndPlan(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	svc, store := newSessionServiceForTest(t, client, nil)

	resp, err := svc.Handle(context.Background(), "u1", "hola, no duermo bien")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message == "" {
		t.Fatalf("empty response")
	}
	if resp.State != domain.StateActiveGuidance {
		t.Fatalf("state = %s, want %s", resp.State, domain.StateActiveGuidance)
	}

	conv, err := store.Conversations.GetLatestByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	if conv.State != domain.StateActiveGuidance {
		t.Fatalf("persisted state = %s", conv.State)
	}
	if conv.PlanID == "" {
		t.Fatalf("conversation has no plan")
	}

	messages, _ := store.Messages.ListByConversation(context.Background(), conv.ID)
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(messages))
	}
	if messages[0].Role != domain.RoleUser || messages[1].Role != domain.RoleAssistant {
		t.Fatalf("roles = %s, %s", messages[0].Role, messages[1].Role)
	}

	risks, _ := store.Risks.ListByConversation(context.Background(), conv.ID)
	if len(risks) != 1 {
		t.Fatalf("risk history = %d, want 1", len(risks))
	}

	if _, _, err := store.Plans.FindByUserID(context.Background(), "u1"); err != nil {
		t.Fatalf("plan not created: %v", err)
	}
}

func TestHandleReusesActiveConversation(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	svc, store := newSessionServiceForTest(t, client, nil)

	if _, err := svc.Handle(context.Background(), "u1", "primer mensaje"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	first, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")

	if _, err := svc.Handle(context.Background(), "u1", "segundo mensaje"); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	second, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")

	if first.ID != second.ID {
		t.Fatalf("active conversation must be reused: %s vs %s", first.ID, second.ID)
	}
	messages, _ := store.Messages.ListByConversation(context.Background(), first.ID)
	if len(messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(messages))
	}
}

func TestHandleOpensNewConversationAfterClosing(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	svc, store := newSessionServiceForTest(t, client, nil)

	if _, err := svc.Handle(context.Background(), "u1", "hola"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	closed, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")
	if err := store.Conversations.UpdateState(context.Background(), closed.ID, domain.StateSessionClosing); err != nil {
		t.Fatalf("close conversation: %v", err)
	}

	if _, err := svc.Handle(context.Background(), "u1", "he vuelto"); err != nil {
		t.Fatalf("turn after close: %v", err)
	}
	reopened, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")
	if reopened.ID == closed.ID {
		t.Fatalf("closed conversation must not be reused")
	}
	if reopened.PlanID != closed.PlanID {
		t.Fatalf("new conversation must keep the user plan: %s vs %s", reopened.PlanID, closed.PlanID)
	}
}

func TestHandleRiskFailureReturnsSafeFallback(t *testing.T) {
	client := &llm.ScriptedClient{Err: errors.New("gateway down")}
	alerts := &recordingAlertSender{}
	svc, _ := newSessionServiceForTest(t, client, alerts)

	resp, err := svc.Handle(context.Background(), "u1", "hola")
	if err != nil {
		t.Fatalf("risk failure must not surface as error: %v", err)
	}
	if resp.Message != FallbackResponse(domain.StateInfoGathering) {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.RiskLevel != domain.RiskHigh {
		t.Fatalf("risk level = %s, want HIGH", resp.RiskLevel)
	}
	if alerts.count() != 1 {
		t.Fatalf("operator alerts = %d, want 1", alerts.count())
	}
	if alerts.events[0].Severity != domain.SeverityCritical {
		t.Fatalf("alert severity = %v", alerts.events[0].Severity)
	}
}

func TestHandleContextCancelledPropagatesWithoutAlert(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	alerts := &recordingAlertSender{}
	svc, store := newSessionServiceForTest(t, client, alerts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Handle(ctx, "u1", "hola"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if alerts.count() != 0 {
		t.Fatalf("operator alerts = %d, want 0", alerts.count())
	}

	conv, err := store.Conversations.GetLatestByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("conversation lookup: %v", err)
	}
	messages, _ := store.Messages.ListByConversation(context.Background(), conv.ID)
	if len(messages) != 0 {
		t.Fatalf("messages = %d, want none persisted", len(messages))
	}
}

func TestHandleRejectsEmptyInput(t *testing.T) {
	svc, _ := newSessionServiceForTest(t, &llm.MockClient{}, nil)

	if _, err := svc.Handle(context.Background(), "u1", "   "); !errors.Is(err, ErrSessionInvalidInput) {
		t.Fatalf("expected ErrSessionInvalidInput, got %v", err)
	}
	if _, err := svc.Handle(context.Background(), "", "hola"); !errors.Is(err, ErrSessionInvalidInput) {
		t.Fatalf("expected ErrSessionInvalidInput, got %v", err)
	}
}

func TestGetUserInfo(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	svc, _ := newSessionServiceForTest(t, client, nil)

	if _, err := svc.GetUserInfo(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error without conversation")
	}

	if _, err := svc.Handle(context.Background(), "u1", "hola"); err != nil {
		t.Fatalf("turn: %v", err)
	}

	info, err := svc.GetUserInfo(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.MessageCount != 2 {
		t.Fatalf("message count = %d, want 2", info.MessageCount)
	}
	if info.PlanVersion != 1 {
		t.Fatalf("plan version = %d, want 1", info.PlanVersion)
	}
	if info.PlanFocusArea == "" {
		t.Fatalf("plan focus missing")
	}
	if info.SessionDuration < 0 {
		t.Fatalf("duration = %v", info.SessionDuration)
	}
}

func TestResetStartsFreshConversation(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	svc, store := newSessionServiceForTest(t, client, nil)

	if _, err := svc.Handle(context.Background(), "u1", "hola"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	before, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")

	// GetLatestByUser desempata por CreatedAt; el reloj avanza entre turnos.
	time.Sleep(5 * time.Millisecond)
	if err := svc.Reset(context.Background(), "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	after, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")
	if after.ID == before.ID {
		t.Fatalf("reset must open a new conversation")
	}
	if after.State != domain.StateInfoGathering {
		t.Fatalf("state = %s, want %s", after.State, domain.StateInfoGathering)
	}
	if after.PlanID == before.PlanID {
		t.Fatalf("reset must create a fresh plan")
	}
}

func TestHandleConversationBusy(t *testing.T) {
	client := &llm.ScriptedClient{Responses: calmScript()}
	svc, store := newSessionServiceForTest(t, client, nil)

	if _, err := svc.Handle(context.Background(), "u1", "hola"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	conv, _ := store.Conversations.GetLatestByUser(context.Background(), "u1")

	// Simula un turno en vuelo tomando el lock por fuera.
	release, err := svc.locker.Acquire(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := svc.Handle(context.Background(), "u1", "otro"); !errors.Is(err, ErrConversationBusy) {
		t.Fatalf("expected ErrConversationBusy, got %v", err)
	}
}
