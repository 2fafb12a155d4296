package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/requirement"
)

func sampleRequirements() []requirement.Requirement {
	return []requirement.Requirement{
		{ID: "R1", Title: "First", BusinessValue: requirement.Float(9)},
		{ID: "R2", Title: "Second", Cost: requirement.Float(2)},
		{ID: "R3", Title: "Third"},
	}
}

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "user-1", "Backlog", sampleRequirements())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" || sess.Name != "Backlog" || sess.UserID != "user-1" {
		t.Errorf("unexpected session: %+v", sess)
	}

	got, err := store.Get(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("expected id %s, got %s", sess.ID, got.ID)
	}

	reqs, err := store.Requirements(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Requirements failed: %v", err)
	}
	for i, want := range []string{"R1", "R2", "R3"} {
		if reqs[i].ID != want {
			t.Errorf("expected %s at %d, got %s", want, i, reqs[i].ID)
		}
	}
}

func TestInMemoryStore_DefaultName(t *testing.T) {
	store := NewInMemoryStore()
	store.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC) }

	sess, err := store.Create(context.Background(), "user-1", "  ", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.Name != "Session 2024-03-05 14:07" {
		t.Errorf("unexpected default name %q", sess.Name)
	}
}

func TestInMemoryStore_OwnerScoping(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess, _ := store.Create(ctx, "owner", "Mine", sampleRequirements())

	if _, err := store.Get(ctx, "intruder", sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for other user, got %v", err)
	}
	if _, err := store.Requirements(ctx, "intruder", sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for other user's requirements, got %v", err)
	}
	if err := store.ReplacePrioritized(ctx, "intruder", sess.ID, Run{}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound replacing other user's results, got %v", err)
	}
	if _, err := store.Latest(ctx, "intruder"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected no latest session for other user, got %v", err)
	}

	list, err := store.List(ctx, "intruder")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list for other user, got %d", len(list))
	}
}

func TestInMemoryStore_LatestAndList(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first, _ := store.Create(ctx, "user-1", "First", sampleRequirements()[:1])
	second, _ := store.Create(ctx, "user-1", "Second", sampleRequirements())

	latest, err := store.Latest(ctx, "user-1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("expected latest %s, got %s", second.ID, latest.ID)
	}

	list, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("expected newest first")
	}
	if list[0].RequirementCount != 3 || list[1].RequirementCount != 1 {
		t.Errorf("unexpected requirement counts: %d, %d", list[0].RequirementCount, list[1].RequirementCount)
	}
}

func TestInMemoryStore_ReplacePrioritized(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	sess, _ := store.Create(ctx, "user-1", "", sampleRequirements())

	if _, err := store.Prioritized(ctx, "user-1", sess.ID); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults before ranking, got %v", err)
	}

	engine := ranking.NewEngine(ranking.NoNoise{})
	reqs, _ := store.Requirements(ctx, "user-1", sess.ID)
	results := engine.Rank(reqs, ranking.DefaultWeightVector())
	if err := store.ReplacePrioritized(ctx, "user-1", sess.ID, Run{Weights: ranking.DefaultWeightVector(), Results: results}); err != nil {
		t.Fatalf("ReplacePrioritized failed: %v", err)
	}

	// A second run wholly replaces the first.
	w, _ := ranking.NewWeightVector(0, 1, 0, 0, 0)
	second := engine.Rank(reqs[:2], w)
	if err := store.ReplacePrioritized(ctx, "user-1", sess.ID, Run{Weights: w, Results: second}); err != nil {
		t.Fatalf("ReplacePrioritized failed: %v", err)
	}

	run, err := store.Prioritized(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Prioritized failed: %v", err)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results after replacement, got %d", len(run.Results))
	}
	if run.Weights.Cost() != 1 {
		t.Errorf("expected stored weights to be replaced, got %v", run.Weights)
	}
	for i, r := range run.Results {
		if r.Rank != i+1 {
			t.Errorf("expected rank order, got rank %d at %d", r.Rank, i)
		}
	}

	got, _ := store.Get(ctx, "user-1", sess.ID)
	if got.PrioritizedAt == nil {
		t.Error("expected PrioritizedAt to be set")
	}

	list, _ := store.List(ctx, "user-1")
	if list[0].PrioritizedCount != 2 {
		t.Errorf("expected prioritized count 2, got %d", list[0].PrioritizedCount)
	}
}

func TestInMemoryStore_IsolatesStoredValues(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	input := sampleRequirements()
	sess, _ := store.Create(ctx, "user-1", "", input)

	*input[0].BusinessValue = 1
	reqs, _ := store.Requirements(ctx, "user-1", sess.ID)
	if *reqs[0].BusinessValue != 9 {
		t.Fatalf("caller mutation leaked into store: %v", *reqs[0].BusinessValue)
	}

	*reqs[0].BusinessValue = 2
	again, _ := store.Requirements(ctx, "user-1", sess.ID)
	if *again[0].BusinessValue != 9 {
		t.Fatalf("returned requirements alias store: %v", *again[0].BusinessValue)
	}

	results := ranking.NewEngine(ranking.NoNoise{}).Rank(again, ranking.DefaultWeightVector())
	if err := store.ReplacePrioritized(ctx, "user-1", sess.ID, Run{Weights: ranking.DefaultWeightVector(), Results: results}); err != nil {
		t.Fatalf("ReplacePrioritized failed: %v", err)
	}
	businessValue := func(run *Run) *float64 {
		for _, r := range run.Results {
			if r.ID == "R1" {
				return r.BusinessValue
			}
		}
		t.Fatal("R1 missing from results")
		return nil
	}
	*businessValue(&Run{Results: results}) = 3

	run, _ := store.Prioritized(ctx, "user-1", sess.ID)
	*businessValue(run) = 4
	run, _ = store.Prioritized(ctx, "user-1", sess.ID)
	if got := *businessValue(run); got != 9 {
		t.Errorf("stored results were mutated: %v", got)
	}
}

func TestDefaultName(t *testing.T) {
	name := DefaultName(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC))
	if !strings.HasPrefix(name, "Session 2025-12-31 23:59") {
		t.Errorf("unexpected name %q", name)
	}
}
