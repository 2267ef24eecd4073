package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thera-llm/internal/alert"
	"thera-llm/internal/domain"
	"thera-llm/internal/repository"
)

var (
	ErrSessionInvalidInput = errors.New("session invalid input")
)

// SessionService es la fachada hacia el canal: expone Handle, GetUserInfo y
// Reset. Arma la foto inmutable del contexto, corre el orquestador y persiste
// el resultado como unidad atomica. Serializa por conversacion via locker.
type SessionService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	risks         repository.RiskRepository
	plans         repository.PlanRepository
	results       repository.ResultStore
	planSvc       *PlanService
	insightSvc    *InsightService
	orchestrator  *Orchestrator
	locker        ConversationLocker
	alerts        alert.Sender
	logger        *zap.Logger
}

func NewSessionService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	risks repository.RiskRepository,
	plans repository.PlanRepository,
	results repository.ResultStore,
	planSvc *PlanService,
	insightSvc *InsightService,
	orchestrator *Orchestrator,
	locker ConversationLocker,
	alerts alert.Sender,
	logger *zap.Logger,
) *SessionService {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if alerts == nil {
		alerts = alert.NewDisabledSender("alert sender not configured")
	}
	return &SessionService{
		conversations: conversations,
		messages:      messages,
		risks:         risks,
		plans:         plans,
		results:       results,
		planSvc:       planSvc,
		insightSvc:    insightSvc,
		orchestrator:  orchestrator,
		locker:        locker,
		alerts:        alerts,
		logger:        logger,
	}
}

// Handle procesa un mensaje del usuario de punta a punta y devuelve la
// respuesta para el canal. Ante la falla dura de la etapa de riesgo el
// usuario recibe un mensaje seguro y el operador una alerta: nunca un error
// tecnico.
func (s *SessionService) Handle(ctx context.Context, userID, rawText string) (domain.SessionResponse, error) {
	userID = strings.TrimSpace(userID)
	rawText = strings.TrimSpace(rawText)
	if userID == "" || rawText == "" {
		return domain.SessionResponse{}, ErrSessionInvalidInput
	}

	conv, err := s.getOrCreateConversation(ctx, userID)
	if err != nil {
		return domain.SessionResponse{}, err
	}

	release, err := s.locker.Acquire(ctx, conv.ID)
	if err != nil {
		return domain.SessionResponse{}, err
	}
	defer release()

	snapshot, err := s.buildSnapshot(ctx, conv, userID, rawText)
	if err != nil {
		return domain.SessionResponse{}, err
	}

	userMessage := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        rawText,
		Role:           domain.RoleUser,
		CreatedAt:      time.Now().UTC(),
	}

	result, err := s.orchestrator.Process(ctx, snapshot, userMessage)
	if err != nil {
		// Solo la falla dura de RISK_CHECK merece fallback + alerta; una
		// cancelacion del contexto del llamador se propaga tal cual.
		var stageErr *RiskStageError
		if errors.As(err, &stageErr) {
			return s.riskFailureResponse(ctx, conv, userID, err), nil
		}
		return domain.SessionResponse{}, err
	}

	assistantMessage := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        result.Response,
		Role:           domain.RoleAssistant,
		CreatedAt:      time.Now().UTC(),
	}

	unit := repository.ProcessingUnit{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		Assessment:       result.Assessment,
		ConversationID:   conv.ID,
		NewState:         result.Transition.To,
		NewPlanVersion:   result.NewPlanVersion,
	}
	if err := s.results.SaveResult(ctx, unit); err != nil {
		s.reportPersistenceFailure(ctx, conv, userID, result, err)
	}

	// Las observaciones del turno se indexan fuera de la ruta critica.
	if len(result.Progress.Insights) > 0 {
		go s.storeInsights(userID, conv.ID, result.Progress.Insights)
	}

	return domain.SessionResponse{
		Message:             result.Response,
		State:               result.Transition.To,
		RiskLevel:           result.Assessment.Level,
		SuggestedTechniques: result.SuggestedTechniques,
		ProgressScore:       result.Progress.Score,
		ProgressInsights:    result.Progress.Insights,
	}, nil
}

// GetUserInfo resume la sesion activa del usuario.
func (s *SessionService) GetUserInfo(ctx context.Context, userID string) (domain.UserInfo, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UserInfo{}, ErrSessionInvalidInput
	}

	conv, err := s.conversations.GetLatestByUser(ctx, userID)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("get latest conversation: %w", err)
	}

	count, err := s.messages.CountByConversation(ctx, conv.ID)
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("count messages: %w", err)
	}

	info := domain.UserInfo{
		State:           conv.State,
		MessageCount:    count,
		SessionDuration: time.Since(conv.CreatedAt),
		RecentInsights:  s.insightSvc.ListRecent(ctx, userID, 5),
	}

	if conv.PlanID != "" {
		plan, versions, err := s.plans.FindByID(ctx, conv.PlanID)
		if err == nil {
			if current, ok := versions[plan.CurrentVersionID]; ok {
				info.PlanFocusArea = current.Content.Focus
				info.PlanVersion = current.Version
			}
		}
	}

	return info, nil
}

// Reset arranca una conversacion nueva con un plan inicial fresco.
// No borra historia: las conversaciones y versiones previas permanecen.
func (s *SessionService) Reset(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrSessionInvalidInput
	}

	plan, _, err := s.planSvc.CreateInitial(ctx, userID)
	if err != nil {
		return err
	}

	_, err = s.createConversation(ctx, userID, plan.ID)
	return err
}

// getOrCreateConversation devuelve la conversacion activa del usuario,
// creandola (junto con el plan si no existe) cuando no hay ninguna o la
// ultima quedo cerrada. Sin mensajes de por medio es idempotente.
func (s *SessionService) getOrCreateConversation(ctx context.Context, userID string) (domain.Conversation, error) {
	conv, err := s.conversations.GetLatestByUser(ctx, userID)
	if err == nil && conv.State != domain.StateSessionClosing {
		return conv, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Conversation{}, fmt.Errorf("get latest conversation: %w", err)
	}

	// El plan se crea una vez por usuario; una conversacion nueva tras un
	// cierre de sesion reutiliza el plan vigente.
	planID := ""
	if plan, _, err := s.plans.FindByUserID(ctx, userID); err == nil {
		planID = plan.ID
	} else if errors.Is(err, repository.ErrNotFound) {
		plan, _, err := s.planSvc.CreateInitial(ctx, userID)
		if err != nil {
			return domain.Conversation{}, err
		}
		planID = plan.ID
	} else {
		return domain.Conversation{}, fmt.Errorf("find plan: %w", err)
	}

	return s.createConversation(ctx, userID, planID)
}

func (s *SessionService) createConversation(ctx context.Context, userID, planID string) (domain.Conversation, error) {
	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     domain.StateInfoGathering,
		PlanID:    planID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return domain.Conversation{}, &domain.PersistenceError{
			Op:             "create conversation",
			UserID:         userID,
			ConversationID: conv.ID,
			Severity:       domain.SeverityHigh,
			Err:            err,
		}
	}
	return conv, nil
}

func (s *SessionService) buildSnapshot(ctx context.Context, conv domain.Conversation, userID, rawText string) (domain.ConversationSnapshot, error) {
	messages, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return domain.ConversationSnapshot{}, fmt.Errorf("list messages: %w", err)
	}

	riskHistory, err := s.risks.ListByConversation(ctx, conv.ID)
	if err != nil {
		return domain.ConversationSnapshot{}, fmt.Errorf("list risk history: %w", err)
	}

	snapshot := domain.ConversationSnapshot{
		Conversation: conv,
		Messages:     messages,
		RiskHistory:  riskHistory,
		Insights:     s.insightSvc.RecallSimilar(ctx, userID, rawText, 3),
	}

	if conv.PlanID != "" {
		plan, versions, err := s.plans.FindByID(ctx, conv.PlanID)
		if err != nil {
			return domain.ConversationSnapshot{}, fmt.Errorf("find plan: %w", err)
		}
		snapshot.Plan = plan
		snapshot.Versions = versions
	}

	return snapshot, nil
}

// riskFailureResponse cubre la falla dura de RISK_CHECK: alerta al operador y
// devuelve un mensaje seguro acorde a la fase actual.
func (s *SessionService) riskFailureResponse(ctx context.Context, conv domain.Conversation, userID string, cause error) domain.SessionResponse {
	s.logger.Error("risk stage hard failure",
		zap.Error(cause),
		zap.String("user_id", userID),
		zap.String("conversation_id", conv.ID),
	)

	if err := s.alerts.SendOperatorAlert(ctx, alert.Event{
		UserID:         userID,
		ConversationID: conv.ID,
		Severity:       domain.SeverityCritical,
		Summary:        "risk assessment unavailable",
		Detail:         cause.Error(),
	}); err != nil {
		s.logger.Warn("operator alert failed", zap.Error(err))
	}

	return domain.SessionResponse{
		Message: FallbackResponse(conv.State),
		State:   conv.State,
		// Sin señal de riesgo se asume HIGH por prudencia.
		RiskLevel: domain.RiskHigh,
	}
}

func (s *SessionService) reportPersistenceFailure(ctx context.Context, conv domain.Conversation, userID string, result domain.ProcessingResult, cause error) {
	severity := domain.SeverityHigh
	if result.Assessment.Level == domain.RiskCritical {
		// Perder una evaluacion critica merece atencion inmediata.
		severity = domain.SeverityCritical
	}

	perr := &domain.PersistenceError{
		Op:             "save processing result",
		UserID:         userID,
		ConversationID: conv.ID,
		Severity:       severity,
		Err:            cause,
	}
	s.logger.Error("processing result not persisted", zap.Error(perr))

	if severity == domain.SeverityCritical {
		if err := s.alerts.SendOperatorAlert(ctx, alert.Event{
			UserID:         userID,
			ConversationID: conv.ID,
			Severity:       severity,
			Summary:        "critical assessment not persisted",
			Detail:         perr.Error(),
		}); err != nil {
			s.logger.Warn("operator alert failed", zap.Error(err))
		}
	}
}

func (s *SessionService) storeInsights(userID, conversationID string, insights []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.insightSvc.Store(ctx, userID, conversationID, insights); err != nil {
		s.logger.Warn("insight store failed",
			zap.Error(err),
			zap.String("user_id", userID),
		)
	}
}
