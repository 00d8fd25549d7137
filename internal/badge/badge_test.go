package badge

import (
	"testing"

	"github.com/google/uuid"
)

func catalogBadge(ct ConditionType, threshold int, category *string) Badge {
	return Badge{
		ID:            uuid.New(),
		Name:          string(ct),
		ConditionType: ct,
		Threshold:     threshold,
		Category:      category,
	}
}

func TestMetThresholdBoundary(t *testing.T) {
	b := catalogBadge(ConditionCompletions, 5, nil)

	if b.Met(LifetimeStats{TotalCompletions: 4}) {
		t.Error("badge granted at 4 completions, threshold is 5")
	}
	if !b.Met(LifetimeStats{TotalCompletions: 5}) {
		t.Error("badge not granted at exactly 5 completions")
	}
}

func TestMetPerConditionType(t *testing.T) {
	fitness := "fitness"
	stats := LifetimeStats{
		TotalCompletions:      10,
		MaxStreak:             7,
		TotalScore:            100,
		TotalChallenges:       3,
		TotalActiveDays:       10,
		CompletionsByCategory: map[string]int{"fitness": 6},
	}

	cases := []struct {
		badge Badge
		want  bool
	}{
		{catalogBadge(ConditionCompletions, 10, nil), true},
		{catalogBadge(ConditionStreak, 8, nil), false},
		{catalogBadge(ConditionScore, 100, nil), true},
		{catalogBadge(ConditionChallenges, 4, nil), false},
		{catalogBadge(ConditionDays, 10, nil), true},
		{catalogBadge(ConditionCategoryCompletions, 6, &fitness), true},
		{catalogBadge(ConditionCategoryCompletions, 7, &fitness), false},
	}
	for _, c := range cases {
		if got := c.badge.Met(stats); got != c.want {
			t.Errorf("%s threshold %d: Met = %v, want %v",
				c.badge.ConditionType, c.badge.Threshold, got, c.want)
		}
	}
}

func TestMetUnknownCategoryDefaultsToZero(t *testing.T) {
	study := "study"
	b := catalogBadge(ConditionCategoryCompletions, 1, &study)
	if b.Met(LifetimeStats{CompletionsByCategory: map[string]int{"fitness": 9}}) {
		t.Error("badge granted for category with no completions")
	}
	// Nil category map behaves the same.
	if b.Met(LifetimeStats{}) {
		t.Error("badge granted with nil category map")
	}
}

func TestEvaluateSkipsEarned(t *testing.T) {
	b1 := catalogBadge(ConditionCompletions, 1, nil)
	b2 := catalogBadge(ConditionCompletions, 2, nil)
	catalog := []Badge{b1, b2}
	earned := map[uuid.UUID]bool{b1.ID: true}

	newly := Evaluate(catalog, earned, LifetimeStats{TotalCompletions: 5})
	if len(newly) != 1 || newly[0].ID != b2.ID {
		t.Fatalf("Evaluate = %v, want only the unearned badge", newly)
	}

	// Re-running with both earned grants nothing.
	earned[b2.ID] = true
	if newly := Evaluate(catalog, earned, LifetimeStats{TotalCompletions: 5}); len(newly) != 0 {
		t.Errorf("re-evaluation granted %d badges, want 0", len(newly))
	}
}

func TestEvaluatePreservesCatalogOrder(t *testing.T) {
	catalog := make([]Badge, 6)
	for i := range catalog {
		catalog[i] = catalogBadge(ConditionCompletions, 1, nil)
		catalog[i].SortOrder = i
	}

	newly := Evaluate(catalog, nil, LifetimeStats{TotalCompletions: 1})
	if len(newly) != 6 {
		t.Fatalf("got %d badges, want 6", len(newly))
	}
	for i, b := range newly {
		if b.ID != catalog[i].ID {
			t.Fatalf("badge %d out of catalog order", i)
		}
	}
}
