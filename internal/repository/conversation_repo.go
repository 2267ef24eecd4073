package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thera-llm/internal/domain"
)

// ErrNotFound unifica la ausencia de registros entre implementaciones.
var ErrNotFound = errors.New("record not found")

type ConversationRepository interface {
	Create(ctx context.Context, conversation domain.Conversation) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	GetLatestByUser(ctx context.Context, userID string) (domain.Conversation, error)
	UpdateState(ctx context.Context, id string, state domain.ConversationState) error
	SetCurrentPlan(ctx context.Context, id, planID string) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, conversation domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, user_id, state, plan_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var planID interface{}
	if conversation.PlanID != "" {
		planID = conversation.PlanID
	}

	_, err := r.pool.Exec(ctx, query,
		conversation.ID,
		conversation.UserID,
		string(conversation.State),
		planID,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	return err
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, user_id, state, plan_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *PgConversationRepository) GetLatestByUser(ctx context.Context, userID string) (domain.Conversation, error) {
	const query = `
		SELECT id, user_id, state, plan_id, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, userID))
}

func (r *PgConversationRepository) UpdateState(ctx context.Context, id string, state domain.ConversationState) error {
	const query = `
		UPDATE conversations
		SET state = $2, updated_at = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, string(state))
	return err
}

func (r *PgConversationRepository) SetCurrentPlan(ctx context.Context, id, planID string) error {
	const query = `
		UPDATE conversations
		SET plan_id = $2, updated_at = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, planID)
	return err
}

func (r *PgConversationRepository) scanOne(row pgx.Row) (domain.Conversation, error) {
	var conv domain.Conversation
	var state string
	var planID *string

	err := row.Scan(&conv.ID, &conv.UserID, &state, &planID, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}

	conv.State = domain.ConversationState(state)
	if planID != nil {
		conv.PlanID = *planID
	}
	return conv, nil
}
