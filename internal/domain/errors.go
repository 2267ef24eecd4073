package domain

import "fmt"

// Severity clasifica errores de persistencia para diagnostico y alertas.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// PersistenceError envuelve una falla de persistencia con severidad e
// identificadores para diagnostico. Severidad CRITICAL dispara la via de
// alerta al operador.
type PersistenceError struct {
	Op             string
	UserID         string
	ConversationID string
	Severity       Severity
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s [severity=%s user=%s conversation=%s]: %v",
		e.Op, e.Severity, e.UserID, e.ConversationID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
