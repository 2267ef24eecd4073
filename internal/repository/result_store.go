package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"thera-llm/internal/domain"
)

// ProcessingUnit agrupa todo lo que un turno del pipeline debe persistir
// como unidad: mensajes, evaluacion de riesgo, estado y version del plan.
// El puntero a version vigente y el estado de la conversacion son el unico
// estado mutable compartido, por eso van en la misma transaccion.
type ProcessingUnit struct {
	UserMessage      domain.Message
	AssistantMessage domain.Message
	Assessment       domain.RiskAssessment
	ConversationID   string
	NewState         domain.ConversationState
	NewPlanVersion   *domain.PlanVersion
}

// ResultStore persiste un ProcessingUnit de forma atomica.
type ResultStore interface {
	SaveResult(ctx context.Context, unit ProcessingUnit) error
}

type PgResultStore struct {
	pool *pgxpool.Pool
}

func NewPgResultStore(pool *pgxpool.Pool) *PgResultStore {
	return &PgResultStore{pool: pool}
}

func (s *PgResultStore) SaveResult(ctx context.Context, unit ProcessingUnit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const messageQuery = `
		INSERT INTO messages (id, conversation_id, content, role, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, msg := range []domain.Message{unit.UserMessage, unit.AssistantMessage} {
		var metadata interface{}
		if len(msg.Metadata) > 0 {
			encoded, err := json.Marshal(msg.Metadata)
			if err != nil {
				return err
			}
			metadata = encoded
		}
		if _, err := tx.Exec(ctx, messageQuery,
			msg.ID, msg.ConversationID, msg.Content, msg.Role, metadata, msg.CreatedAt,
		); err != nil {
			return err
		}
	}

	const riskQuery = `
		INSERT INTO risk_assessments (id, conversation_id, level, score, factors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	a := unit.Assessment
	if _, err := tx.Exec(ctx, riskQuery,
		a.ID, a.ConversationID, string(a.Level), a.Score, a.Factors, a.CreatedAt,
	); err != nil {
		return err
	}

	const stateQuery = `
		UPDATE conversations
		SET state = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, stateQuery, unit.ConversationID, string(unit.NewState)); err != nil {
		return err
	}

	if v := unit.NewPlanVersion; v != nil {
		if err := insertVersion(ctx, tx, *v); err != nil {
			return err
		}
		const currentQuery = `
			UPDATE therapeutic_plans
			SET current_version_id = $2
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, currentQuery, v.PlanID, v.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
