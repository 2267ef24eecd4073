package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"thera-llm/internal/domain"
	"thera-llm/internal/llm"
	"thera-llm/internal/repository"
)

var (
	// ErrPlanNoCurrentVersion: el plan no tiene version vigente, no se puede revisar.
	ErrPlanNoCurrentVersion = errors.New("plan has no current version")
	// ErrPlanContentFormat: la respuesta del gateway no cumple el formato requerido.
	ErrPlanContentFormat = errors.New("plan content format invalid")
	// ErrPlanConsistency: la revision descarta metas sin marcarlas completadas.
	ErrPlanConsistency = errors.New("plan revision drops goals without completing them")
	// ErrVersionNotInPlan: rollback hacia una version ajena a la cadena del plan.
	ErrVersionNotInPlan = errors.New("version does not belong to plan")
)

// RevisionContext es lo que la revision necesita del turno actual.
type RevisionContext struct {
	Reason      string
	Messages    []domain.Message
	RiskHistory []domain.RiskAssessment
}

// PlanService mantiene la cadena append-only de versiones del plan.
// Revise construye y valida la nueva version pero no la persiste: eso lo hace
// el colaborador de sesion dentro de la unidad transaccional del turno.
type PlanService struct {
	planRepo  repository.PlanRepository
	llmClient llm.Client
	logger    *zap.Logger
}

func NewPlanService(planRepo repository.PlanRepository, llmClient llm.Client, logger *zap.Logger) *PlanService {
	return &PlanService{
		planRepo:  planRepo,
		llmClient: llmClient,
		logger:    logger,
	}
}

// CreateInitial crea y persiste el plan de un usuario con su version semilla:
// una unica meta de construccion de vinculo, version 1, sin anterior.
func (s *PlanService) CreateInitial(ctx context.Context, userID string) (domain.TherapeuticPlan, domain.PlanVersion, error) {
	now := time.Now().UTC()
	planID := uuid.NewString()

	initial := domain.PlanVersion{
		ID:     uuid.NewString(),
		PlanID: planID,
		// PreviousID vacio: unica version que puede no tener anterior.
		Version:         1,
		ValidationScore: 1.0,
		CreatedAt:       now,
		Content: domain.PlanContent{
			Goals: []domain.PlanGoal{
				{
					Codename: "build_rapport",
					State:    domain.GoalActive,
					Approach: "Generar confianza y espacio seguro; conocer la situacion del usuario sin presionar.",
					Conditions: []string{
						"el usuario comparte su motivo de consulta con sus propias palabras",
					},
				},
			},
			Techniques: []string{"escucha activa", "preguntas abiertas", "validacion emocional"},
			Approach:   "Apoyo inicial centrado en la persona",
			Focus:      "establecer vinculo terapeutico",
		},
	}

	plan := domain.TherapeuticPlan{
		ID:               planID,
		UserID:           userID,
		VersionIDs:       []string{initial.ID},
		CurrentVersionID: initial.ID,
		CreatedAt:        now,
	}

	if err := s.planRepo.CreatePlan(ctx, plan, initial); err != nil {
		return domain.TherapeuticPlan{}, domain.PlanVersion{}, fmt.Errorf("create plan: %w", err)
	}

	s.logger.Info("initial plan created",
		zap.String("user_id", userID),
		zap.String("plan_id", planID),
	)
	return plan, initial, nil
}

// Revise deriva la siguiente version del plan via el gateway. Reintenta una
// vez ante formato invalido; valida consistencia de metas antes de aceptar.
func (s *PlanService) Revise(ctx context.Context, plan domain.TherapeuticPlan, versions map[string]domain.PlanVersion, revCtx RevisionContext) (domain.PlanVersion, error) {
	current, ok := versions[plan.CurrentVersionID]
	if !ok {
		return domain.PlanVersion{}, ErrPlanNoCurrentVersion
	}

	prompt := buildPlanRevisionPrompt(current, revCtx)

	content, err := s.requestRevision(ctx, prompt)
	if errors.Is(err, ErrPlanContentFormat) {
		// Un reintento con el mismo prompt; despues la etapa degrada.
		s.logger.Warn("plan revision format invalid, retrying once", zap.Error(err))
		content, err = s.requestRevision(ctx, prompt)
	}
	if err != nil {
		return domain.PlanVersion{}, err
	}

	if err := checkGoalContinuity(current.Content, content); err != nil {
		return domain.PlanVersion{}, err
	}

	next := domain.PlanVersion{
		ID:              uuid.NewString(),
		PlanID:          plan.ID,
		PreviousID:      current.ID,
		Version:         current.Version + 1,
		Content:         content,
		ValidationScore: scoreRevision(content),
		CreatedAt:       time.Now().UTC(),
	}

	s.logger.Info("plan revision accepted",
		zap.String("plan_id", plan.ID),
		zap.Int("version", next.Version),
		zap.Float64("validation_score", next.ValidationScore),
	)
	return next, nil
}

// Rollback re-apunta la version vigente a una version ya existente de la
// cadena. No borra ni muta versiones posteriores: siguen siendo historia.
func (s *PlanService) Rollback(ctx context.Context, planID, versionID string) error {
	plan, _, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("find plan: %w", err)
	}
	if !plan.HasVersion(versionID) {
		return fmt.Errorf("%w: plan=%s version=%s", ErrVersionNotInPlan, planID, versionID)
	}
	if err := s.planRepo.SetCurrentVersion(ctx, planID, versionID); err != nil {
		return fmt.Errorf("set current version: %w", err)
	}

	s.logger.Warn("plan rolled back",
		zap.String("plan_id", planID),
		zap.String("version_id", versionID),
	)
	return nil
}

func (s *PlanService) requestRevision(ctx context.Context, prompt string) (domain.PlanContent, error) {
	raw, err := s.llmClient.Complete(ctx, prompt, llm.Options{Temperature: 0.3, MaxTokens: 1200})
	if err != nil {
		return domain.PlanContent{}, fmt.Errorf("llm complete: %w", err)
	}

	var content domain.PlanContent
	if err := json.Unmarshal([]byte(extractJSONCandidate(raw)), &content); err != nil {
		return domain.PlanContent{}, fmt.Errorf("%w: %v", ErrPlanContentFormat, err)
	}

	if len(content.Goals) == 0 || len(content.Techniques) == 0 || strings.TrimSpace(content.Approach) == "" {
		return domain.PlanContent{}, fmt.Errorf("%w: goals, techniques and approach are required", ErrPlanContentFormat)
	}
	return content, nil
}

// checkGoalContinuity verifica que toda meta previa siga presente o figure en
// completed_goals de la nueva version.
func checkGoalContinuity(previous, next domain.PlanContent) error {
	kept := make(map[string]struct{}, len(next.Goals))
	for _, g := range next.Goals {
		kept[g.Codename] = struct{}{}
	}
	completed := make(map[string]struct{}, len(next.Metrics.CompletedGoals))
	for _, c := range next.Metrics.CompletedGoals {
		completed[c] = struct{}{}
	}

	for _, g := range previous.Goals {
		if _, ok := kept[g.Codename]; ok {
			continue
		}
		if _, ok := completed[g.Codename]; ok {
			continue
		}
		return fmt.Errorf("%w: goal %q", ErrPlanConsistency, g.Codename)
	}
	return nil
}

// scoreRevision puntua la completitud del contenido aceptado.
func scoreRevision(content domain.PlanContent) float64 {
	score := 1.0
	if strings.TrimSpace(content.Focus) == "" {
		score -= 0.1
	}
	if len(content.RiskFactors) == 0 {
		score -= 0.1
	}
	for _, g := range content.Goals {
		if strings.TrimSpace(g.Approach) == "" {
			score -= 0.05
		}
	}
	if score < 0.5 {
		score = 0.5
	}
	return score
}
