package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
	"thera-llm/internal/repository"
)

// InsightService guarda observaciones clinicas por usuario y recupera las mas
// afines al mensaje actual via busqueda por embedding. Si la recuperacion
// falla el pipeline sigue con contexto vacio: nunca bloquea.
type InsightService struct {
	insightRepo repository.InsightRepository
	llmClient   llm.Client
	logger      *zap.Logger
}

func NewInsightService(insightRepo repository.InsightRepository, llmClient llm.Client, logger *zap.Logger) *InsightService {
	return &InsightService{
		insightRepo: insightRepo,
		llmClient:   llmClient,
		logger:      logger,
	}
}

// RecallSimilar devuelve hasta k observaciones previas afines al texto.
func (s *InsightService) RecallSimilar(ctx context.Context, userID, text string, k int) []string {
	if s == nil || s.insightRepo == nil {
		return nil
	}

	embed, err := s.llmClient.CreateEmbedding(ctx, text)
	if err != nil {
		s.logger.Warn("insight embedding failed", zap.Error(err), zap.String("user_id", userID))
		return nil
	}

	insights, err := s.insightRepo.SearchSimilar(ctx, userID, pgvector.NewVector(embed), k)
	if err != nil {
		s.logger.Warn("insight search failed", zap.Error(err), zap.String("user_id", userID))
		return nil
	}

	out := make([]string, 0, len(insights))
	for _, in := range insights {
		out = append(out, in.Content)
	}
	return out
}

// Store persiste las observaciones de un turno con su embedding.
func (s *InsightService) Store(ctx context.Context, userID, conversationID string, insights []string) error {
	if s == nil || s.insightRepo == nil {
		return nil
	}

	now := time.Now().UTC()
	for _, content := range insights {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		embed, err := s.llmClient.CreateEmbedding(ctx, content)
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}

		insight := domain.SessionInsight{
			ID:             uuid.NewString(),
			UserID:         userID,
			ConversationID: conversationID,
			Content:        content,
			Embedding:      pgvector.NewVector(embed),
			CreatedAt:      now,
		}
		if err := s.insightRepo.Create(ctx, insight); err != nil {
			return fmt.Errorf("persist insight: %w", err)
		}
	}
	return nil
}

// ListRecent devuelve las ultimas observaciones registradas del usuario.
func (s *InsightService) ListRecent(ctx context.Context, userID string, limit int) []string {
	if s == nil || s.insightRepo == nil {
		return nil
	}

	insights, err := s.insightRepo.ListRecent(ctx, userID, limit)
	if err != nil {
		s.logger.Warn("insight list failed", zap.Error(err), zap.String("user_id", userID))
		return nil
	}

	out := make([]string, 0, len(insights))
	for _, in := range insights {
		out = append(out, in.Content)
	}
	return out
}
