package domain

import "time"

// Roles validos para un mensaje dentro de una conversacion.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message es inmutable una vez creado.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Content        string            `json:"content"`
	Role           string            `json:"role"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
