package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"thera-llm/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, content, role, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var metadata interface{}
	if len(message.Metadata) > 0 {
		encoded, err := json.Marshal(message.Metadata)
		if err != nil {
			return err
		}
		metadata = encoded
	}

	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ConversationID,
		message.Content,
		message.Role,
		metadata,
		message.CreatedAt,
	)
	return err
}

func (r *PgMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, content, role, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var metadata []byte

		err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Content,
			&msg.Role,
			&metadata,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, err
			}
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *PgMessageRepository) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`

	var count int
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(&count)
	return count, err
}
