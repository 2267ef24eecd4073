package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"thera-llm/internal/domain"
)

type RiskRepository interface {
	Create(ctx context.Context, assessment domain.RiskAssessment) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.RiskAssessment, error)
}

type PgRiskRepository struct {
	pool *pgxpool.Pool
}

func NewPgRiskRepository(pool *pgxpool.Pool) *PgRiskRepository {
	return &PgRiskRepository{pool: pool}
}

func (r *PgRiskRepository) Create(ctx context.Context, assessment domain.RiskAssessment) error {
	const query = `
		INSERT INTO risk_assessments (id, conversation_id, level, score, factors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		assessment.ID,
		assessment.ConversationID,
		string(assessment.Level),
		assessment.Score,
		assessment.Factors,
		assessment.CreatedAt,
	)
	return err
}

func (r *PgRiskRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.RiskAssessment, error) {
	const query = `
		SELECT id, conversation_id, level, score, factors, created_at
		FROM risk_assessments
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []domain.RiskAssessment
	for rows.Next() {
		var a domain.RiskAssessment
		var level string

		err = rows.Scan(&a.ID, &a.ConversationID, &level, &a.Score, &a.Factors, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		a.Level = domain.RiskLevel(level)
		assessments = append(assessments, a)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return assessments, nil
}
