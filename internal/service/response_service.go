package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
)

// Fallbacks deterministicos por fase: el usuario nunca ve un error tecnico.
var fallbackResponses = map[domain.ConversationState]string{
	domain.StateInfoGathering:         "Gracias por compartir esto conmigo. Cuentame un poco mas de lo que estas viviendo, a tu ritmo.",
	domain.StateActiveGuidance:        "Te escucho. Lo que sientes tiene sentido dado lo que estas pasando. Sigamos paso a paso, estoy aqui contigo.",
	domain.StatePlanRevision:          "Gracias por tu paciencia. Estoy repasando lo que hemos trabajado para ajustar el rumbo juntos. Mientras tanto, cuentame como te sientes hoy.",
	domain.StateEmergencyIntervention: "Siento mucho que estes pasando por esto. Tu seguridad es lo primero: por favor contacta ahora mismo a una linea de crisis local o a emergencias. No estas solo, y esta conversacion sigue abierta.",
	domain.StateSessionClosing:        "Gracias por este espacio. Cuida de ti, y recuerda que puedes volver cuando lo necesites.",
}

const genericFallbackResponse = "Estoy aqui contigo. Tomemos esto con calma; cuentame como te sientes en este momento."

// ResponseService genera la respuesta terapeutica del turno. Degrada a un
// fallback fijo por fase ante cualquier falla del gateway.
type ResponseService struct {
	llmClient llm.Client
	logger    *zap.Logger
}

func NewResponseService(llmClient llm.Client, logger *zap.Logger) *ResponseService {
	return &ResponseService{llmClient: llmClient, logger: logger}
}

// Generate produce la respuesta para una fase no critica.
func (s *ResponseService) Generate(ctx context.Context, snapshot domain.ConversationSnapshot, analysis ContextualAnalysis, userMessage string) string {
	prompt := buildResponsePrompt(snapshot, analysis, userMessage)

	raw, err := s.llmClient.Complete(ctx, prompt, llm.Options{Temperature: 0.7, MaxTokens: 400})
	if err != nil {
		s.logger.Warn("response generation degraded to fallback",
			zap.Error(err),
			zap.String("conversation_id", snapshot.Conversation.ID),
		)
		return FallbackResponse(snapshot.Conversation.State)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return FallbackResponse(snapshot.Conversation.State)
	}
	return text
}

// GenerateEmergency produce la respuesta del camino de emergencia.
// Siempre devuelve algo: ante falla del gateway cae al texto fijo de crisis.
func (s *ResponseService) GenerateEmergency(ctx context.Context, snapshot domain.ConversationSnapshot, userMessage string) string {
	prompt := buildEmergencyPrompt(userMessage)

	raw, err := s.llmClient.Complete(ctx, prompt, llm.Options{Temperature: 0.2, MaxTokens: 300})
	if err != nil {
		s.logger.Error("emergency response degraded to fallback",
			zap.Error(err),
			zap.String("conversation_id", snapshot.Conversation.ID),
		)
		return fallbackResponses[domain.StateEmergencyIntervention]
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return fallbackResponses[domain.StateEmergencyIntervention]
	}
	return text
}

// FallbackResponse devuelve el mensaje seguro para la fase dada.
func FallbackResponse(state domain.ConversationState) string {
	if msg, ok := fallbackResponses[state]; ok {
		return msg
	}
	return genericFallbackResponse
}
