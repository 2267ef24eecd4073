package repository

import (
	"context"
	"testing"
	"time"

	"thera-llm/internal/domain"
)

func seedPlan(t *testing.T, repo *MemoryPlanRepository, userID string, createdAt time.Time) domain.TherapeuticPlan {
	t.Helper()
	plan := domain.TherapeuticPlan{
		ID:        "plan-" + createdAt.Format("150405.000"),
		UserID:    userID,
		CreatedAt: createdAt,
	}
	initial := domain.PlanVersion{
		ID:        plan.ID + "-v1",
		PlanID:    plan.ID,
		Version:   1,
		CreatedAt: createdAt,
	}
	plan.VersionIDs = []string{initial.ID}
	plan.CurrentVersionID = initial.ID
	if err := repo.CreatePlan(context.Background(), plan, initial); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return plan
}

func TestMemoryPlanFindByUserIDReturnsMostRecent(t *testing.T) {
	store := NewMemorySet()
	base := time.Now().UTC()

	old := seedPlan(t, store.Plans, "u1", base.Add(-time.Hour))
	recent := seedPlan(t, store.Plans, "u1", base)
	seedPlan(t, store.Plans, "u2", base.Add(time.Hour))

	plan, versions, err := store.Plans.FindByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ID != recent.ID {
		t.Fatalf("plan = %s, want %s (not %s)", plan.ID, recent.ID, old.ID)
	}
	if _, ok := versions[recent.CurrentVersionID]; !ok {
		t.Fatalf("versions must belong to the returned plan")
	}
}

func TestMemoryPlanFindByUserIDTieBreaksOnInsertionOrder(t *testing.T) {
	store := NewMemorySet()
	at := time.Now().UTC()

	seedPlan(t, store.Plans, "u1", at)
	second := domain.TherapeuticPlan{ID: "plan-second", UserID: "u1", CreatedAt: at}
	initial := domain.PlanVersion{ID: "plan-second-v1", PlanID: second.ID, Version: 1, CreatedAt: at}
	second.VersionIDs = []string{initial.ID}
	second.CurrentVersionID = initial.ID
	if err := store.Plans.CreatePlan(context.Background(), second, initial); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	plan, _, err := store.Plans.FindByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ID != second.ID {
		t.Fatalf("plan = %s, want the later insertion %s", plan.ID, second.ID)
	}
}

func TestMemoryPlanFindByUserIDNotFound(t *testing.T) {
	store := NewMemorySet()
	if _, _, err := store.Plans.FindByUserID(context.Background(), "nadie"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
