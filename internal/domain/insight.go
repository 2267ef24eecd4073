package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// SessionInsight es una observacion clinica breve extraida por el analisis
// contextual; se indexa por embedding para recuperar temas similares en
// turnos posteriores.
type SessionInsight struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	Content        string          `json:"content"`
	Embedding      pgvector.Vector `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}
