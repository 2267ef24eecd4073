package alert

import (
	"context"
	"errors"

	"thera-llm/internal/domain"
)

// Event describe un incidente que requiere atencion del operador.
type Event struct {
	UserID         string
	ConversationID string
	Severity       domain.Severity
	Summary        string
	Detail         string
}

// Sender define la interfaz para notificar incidentes al operador.
type Sender interface {
	SendOperatorAlert(ctx context.Context, event Event) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendOperatorAlert(_ context.Context, _ Event) error {
	if s.reason == "" {
		return errors.New("alert sender disabled")
	}
	return errors.New(s.reason)
}
