package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"thera-llm/internal/domain"
)

type InsightRepository interface {
	Create(ctx context.Context, insight domain.SessionInsight) error
	SearchSimilar(ctx context.Context, userID string, queryEmbedding pgvector.Vector, k int) ([]domain.SessionInsight, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.SessionInsight, error)
}

type PgInsightRepository struct {
	pool *pgxpool.Pool
}

func NewPgInsightRepository(pool *pgxpool.Pool) *PgInsightRepository {
	return &PgInsightRepository{pool: pool}
}

func (r *PgInsightRepository) Create(ctx context.Context, insight domain.SessionInsight) error {
	const query = `
		INSERT INTO session_insights (id, user_id, conversation_id, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		insight.ID,
		insight.UserID,
		insight.ConversationID,
		insight.Content,
		insight.Embedding,
		insight.CreatedAt,
	)
	return err
}

func (r *PgInsightRepository) SearchSimilar(ctx context.Context, userID string, queryEmbedding pgvector.Vector, k int) ([]domain.SessionInsight, error) {
	if k <= 0 {
		k = 5
	}
	const query = `
		SELECT id, user_id, conversation_id, content, embedding, created_at
		FROM session_insights
		WHERE user_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, userID, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInsights(rows)
}

func (r *PgInsightRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.SessionInsight, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
		SELECT id, user_id, conversation_id, content, embedding, created_at
		FROM session_insights
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInsights(rows)
}

type insightRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanInsights(rows insightRows) ([]domain.SessionInsight, error) {
	var insights []domain.SessionInsight
	for rows.Next() {
		var in domain.SessionInsight
		err := rows.Scan(&in.ID, &in.UserID, &in.ConversationID, &in.Content, &in.Embedding, &in.CreatedAt)
		if err != nil {
			return nil, err
		}
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return insights, nil
}
