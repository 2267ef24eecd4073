package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thera-llm/internal/domain"
)

// PlanRepository guarda planes y su cadena de versiones en estilo arena:
// las versiones viven en su propia tabla indexadas por id y el plan solo
// mantiene el puntero a la version vigente.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan domain.TherapeuticPlan, initial domain.PlanVersion) error
	AppendVersion(ctx context.Context, version domain.PlanVersion) error
	SetCurrentVersion(ctx context.Context, planID, versionID string) error
	FindByID(ctx context.Context, planID string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error)
	FindByUserID(ctx context.Context, userID string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error)
}

type PgPlanRepository struct {
	pool *pgxpool.Pool
}

func NewPgPlanRepository(pool *pgxpool.Pool) *PgPlanRepository {
	return &PgPlanRepository{pool: pool}
}

func (r *PgPlanRepository) CreatePlan(ctx context.Context, plan domain.TherapeuticPlan, initial domain.PlanVersion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const planQuery = `
		INSERT INTO therapeutic_plans (id, user_id, current_version_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, planQuery, plan.ID, plan.UserID, initial.ID, plan.CreatedAt); err != nil {
		return err
	}

	if err := insertVersion(ctx, tx, initial); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgPlanRepository) AppendVersion(ctx context.Context, version domain.PlanVersion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertVersion(ctx, tx, version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgPlanRepository) SetCurrentVersion(ctx context.Context, planID, versionID string) error {
	const query = `
		UPDATE therapeutic_plans
		SET current_version_id = $2
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, planID, versionID)
	return err
}

func (r *PgPlanRepository) FindByID(ctx context.Context, planID string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error) {
	const query = `
		SELECT id, user_id, current_version_id, created_at
		FROM therapeutic_plans
		WHERE id = $1
	`
	return r.findOne(ctx, query, planID)
}

func (r *PgPlanRepository) FindByUserID(ctx context.Context, userID string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error) {
	const query = `
		SELECT id, user_id, current_version_id, created_at
		FROM therapeutic_plans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.findOne(ctx, query, userID)
}

func (r *PgPlanRepository) findOne(ctx context.Context, query, arg string) (domain.TherapeuticPlan, map[string]domain.PlanVersion, error) {
	var plan domain.TherapeuticPlan
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&plan.ID,
		&plan.UserID,
		&plan.CurrentVersionID,
		&plan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TherapeuticPlan{}, nil, ErrNotFound
	}
	if err != nil {
		return domain.TherapeuticPlan{}, nil, err
	}

	versions, err := r.listVersions(ctx, plan.ID)
	if err != nil {
		return domain.TherapeuticPlan{}, nil, err
	}

	byID := make(map[string]domain.PlanVersion, len(versions))
	for _, v := range versions {
		plan.VersionIDs = append(plan.VersionIDs, v.ID)
		byID[v.ID] = v
	}
	return plan, byID, nil
}

func (r *PgPlanRepository) listVersions(ctx context.Context, planID string) ([]domain.PlanVersion, error) {
	const query = `
		SELECT id, plan_id, previous_id, version, content, validation_score, created_at
		FROM plan_versions
		WHERE plan_id = $1
		ORDER BY version ASC
	`

	rows, err := r.pool.Query(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []domain.PlanVersion
	for rows.Next() {
		var v domain.PlanVersion
		var previousID *string
		var content []byte

		err = rows.Scan(&v.ID, &v.PlanID, &previousID, &v.Version, &content, &v.ValidationScore, &v.CreatedAt)
		if err != nil {
			return nil, err
		}
		if previousID != nil {
			v.PreviousID = *previousID
		}
		if err := json.Unmarshal(content, &v.Content); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return versions, nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, version domain.PlanVersion) error {
	const query = `
		INSERT INTO plan_versions (id, plan_id, previous_id, version, content, validation_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	content, err := json.Marshal(version.Content)
	if err != nil {
		return err
	}

	var previousID interface{}
	if version.PreviousID != "" {
		previousID = version.PreviousID
	}

	_, err = tx.Exec(ctx, query,
		version.ID,
		version.PlanID,
		previousID,
		version.Version,
		content,
		version.ValidationScore,
		version.CreatedAt,
	)
	return err
}
