package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/pgvector/pgvector-go"

	"thera-llm/internal/domain"
)

// MemorySet agrupa implementaciones en memoria de todos los repositorios.
// Util para el chat por CLI y para pruebas que no quieren levantar Postgres.
type MemorySet struct {
	Conversations *MemoryConversationRepository
	Messages      *MemoryMessageRepository
	Risks         *MemoryRiskRepository
	Plans         *MemoryPlanRepository
	Insights      *MemoryInsightRepository
	Results       *MemoryResultStore
}

func NewMemorySet() *MemorySet {
	conversations := &MemoryConversationRepository{byID: make(map[string]domain.Conversation)}
	messages := &MemoryMessageRepository{byConversation: make(map[string][]domain.Message)}
	risks := &MemoryRiskRepository{byConversation: make(map[string][]domain.RiskAssessment)}
	plans := &MemoryPlanRepository{
		plans:    make(map[string]domain.TherapeuticPlan),
		versions: make(map[string]map[string]domain.PlanVersion),
	}
	insights := &MemoryInsightRepository{byUser: make(map[string][]domain.SessionInsight)}
	return &MemorySet{
		Conversations: conversations,
		Messages:      messages,
		Risks:         risks,
		Plans:         plans,
		Insights:      insights,
		Results: &MemoryResultStore{
			conversations: conversations,
			messages:      messages,
			risks:         risks,
			plans:         plans,
		},
	}
}

type MemoryConversationRepository struct {
	mu   sync.Mutex
	byID map[string]domain.Conversation
}

func (r *MemoryConversationRepository) Create(_ context.Context, conversation domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[conversation.ID] = conversation
	return nil
}

func (r *MemoryConversationRepository) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[id]
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (r *MemoryConversationRepository) GetLatestByUser(_ context.Context, userID string) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest domain.Conversation
	found := false
	for _, conv := range r.byID {
		if conv.UserID != userID {
			continue
		}
		if !found || conv.CreatedAt.After(latest.CreatedAt) {
			latest = conv
			found = true
		}
	}
	if !found {
		return domain.Conversation{}, ErrNotFound
	}
	return latest, nil
}

func (r *MemoryConversationRepository) UpdateState(_ context.Context, id string, state domain.ConversationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	conv.State = state
	r.byID[id] = conv
	return nil
}

func (r *MemoryConversationRepository) SetCurrentPlan(_ context.Context, id, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	conv.PlanID = planID
	r.byID[id] = conv
	return nil
}

type MemoryMessageRepository struct {
	mu             sync.Mutex
	byConversation map[string][]domain.Message
}

func (r *MemoryMessageRepository) Create(_ context.Context, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConversation[message.ConversationID] = append(r.byConversation[message.ConversationID], message)
	return nil
}

func (r *MemoryMessageRepository) ListByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Message, len(r.byConversation[conversationID]))
	copy(out, r.byConversation[conversationID])
	return out, nil
}

func (r *MemoryMessageRepository) CountByConversation(_ context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConversation[conversationID]), nil
}

type MemoryRiskRepository struct {
	mu             sync.Mutex
	byConversation map[string][]domain.RiskAssessment
}

func (r *MemoryRiskRepository) Create(_ context.Context, assessment domain.RiskAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConversation[assessment.ConversationID] = append(r.byConversation[assessment.ConversationID], assessment)
	return nil
}

func (r *MemoryRiskRepository) ListByConversation(_ context.Context, conversationID string) ([]domain.RiskAssessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RiskAssessment, len(r.byConversation[conversationID]))
	copy(out, r.byConversation[conversationID])
	return out, nil
}

type MemoryPlanRepository struct {
	mu       sync.Mutex
	plans    map[string]domain.TherapeuticPlan
	versions map[string]map[string]domain.PlanVersion
	order    []string
}

func (r *MemoryPlanRepository) CreatePlan(_ context.Context, plan domain.TherapeuticPlan, initial domain.PlanVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.ID] = plan
	r.versions[plan.ID] = map[string]domain.PlanVersion{initial.ID: initial}
	r.order = append(r.order, plan.ID)
	return nil
}

func (r *MemoryPlanRepository) AppendVersion(_ context.Context, version domain.PlanVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[version.PlanID]
	if !ok {
		return ErrNotFound
	}
	plan.VersionIDs = append(plan.VersionIDs, version.ID)
	r.plans[plan.ID] = plan
	r.versions[plan.ID][version.ID] = version
	return nil
}

func (r *MemoryPlanRepository) SetCurrentVersion(_ context.Context, planID, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[planID]
	if !ok {
		return ErrNotFound
	}
	plan.CurrentVersionID = versionID
	r.plans[planID] = plan
	return nil
}

func (r *MemoryPlanRepository) FindByID(_ context.Context, planID string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[planID]
	if !ok {
		return domain.TherapeuticPlan{}, nil, ErrNotFound
	}
	return plan, copyVersions(r.versions[planID]), nil
}

// FindByUserID devuelve el plan mas reciente del usuario; a igual CreatedAt
// gana el insertado despues.
func (r *MemoryPlanRepository) FindByUserID(_ context.Context, userID string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest domain.TherapeuticPlan
	found := false
	for _, id := range r.order {
		plan, ok := r.plans[id]
		if !ok || plan.UserID != userID {
			continue
		}
		if !found || !plan.CreatedAt.Before(latest.CreatedAt) {
			latest = plan
			found = true
		}
	}
	if !found {
		return domain.TherapeuticPlan{}, nil, ErrNotFound
	}
	return latest, copyVersions(r.versions[latest.ID]), nil
}

func copyVersions(src map[string]domain.PlanVersion) map[string]domain.PlanVersion {
	out := make(map[string]domain.PlanVersion, len(src))
	for id, v := range src {
		out[id] = v
	}
	return out
}

type MemoryInsightRepository struct {
	mu     sync.Mutex
	byUser map[string][]domain.SessionInsight
}

func (r *MemoryInsightRepository) Create(_ context.Context, insight domain.SessionInsight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[insight.UserID] = append(r.byUser[insight.UserID], insight)
	return nil
}

func (r *MemoryInsightRepository) SearchSimilar(_ context.Context, userID string, queryEmbedding pgvector.Vector, k int) ([]domain.SessionInsight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidates := make([]domain.SessionInsight, len(r.byUser[userID]))
	copy(candidates, r.byUser[userID])

	query := queryEmbedding.Slice()
	sort.SliceStable(candidates, func(i, j int) bool {
		return cosineDistance(candidates[i].Embedding.Slice(), query) < cosineDistance(candidates[j].Embedding.Slice(), query)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (r *MemoryInsightRepository) ListRecent(_ context.Context, userID string, limit int) ([]domain.SessionInsight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.byUser[userID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.SessionInsight, len(all))
	copy(out, all)
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.MaxFloat64
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// MemoryResultStore aplica la unidad de persistencia sobre los repos en
// memoria. No hay transaccion real; la version en memoria aplica los pasos
// en el mismo orden que la version Postgres.
type MemoryResultStore struct {
	conversations *MemoryConversationRepository
	messages      *MemoryMessageRepository
	risks         *MemoryRiskRepository
	plans         *MemoryPlanRepository
}

func (s *MemoryResultStore) SaveResult(ctx context.Context, unit ProcessingUnit) error {
	if err := s.messages.Create(ctx, unit.UserMessage); err != nil {
		return err
	}
	if err := s.messages.Create(ctx, unit.AssistantMessage); err != nil {
		return err
	}
	if err := s.risks.Create(ctx, unit.Assessment); err != nil {
		return err
	}
	if err := s.conversations.UpdateState(ctx, unit.ConversationID, unit.NewState); err != nil {
		return err
	}
	if unit.NewPlanVersion != nil {
		if err := s.plans.AppendVersion(ctx, *unit.NewPlanVersion); err != nil {
			return err
		}
		if err := s.plans.SetCurrentVersion(ctx, unit.NewPlanVersion.PlanID, unit.NewPlanVersion.ID); err != nil {
			return err
		}
	}
	return nil
}
