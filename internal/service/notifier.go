package service

import (
	"context"

	"go.uber.org/zap"
)

// Eventos abstractos que el adaptador de canal puede renderizar como indicador
// de "escribiendo", mensaje de espera, etc.
const (
	EventComposingResponse   = "composing_response"
	EventRevisingPlan        = "revising_plan"
	EventEmergencyEscalation = "emergency_escalation"
)

// ProgressNotifier publica el avance del pipeline hacia el canal de mensajeria.
// Se inyecta en el orquestador: no hay bus de eventos global.
type ProgressNotifier interface {
	Notify(ctx context.Context, conversationID, event string)
}

// LogNotifier es la implementacion por defecto: solo registra el evento.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, conversationID, event string) {
	n.logger.Debug("pipeline event",
		zap.String("conversation_id", conversationID),
		zap.String("event", event),
	)
}

// NopNotifier descarta todos los eventos.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) {}
