package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/cache"
	"github.com/meatwise/search-service/internal/models"
)

func newTestOptimizer(store ProductStore) (*BatchOptimizer, *cache.Memory) {
	groupCache := cache.NewMemoryWithClock(time.Now)
	b := NewBatchOptimizer(store, models.DefaultCapabilities(), groupCache, testSearchConfig(), zap.NewNop())
	return b, groupCache
}

func chickenIntent() *models.SearchIntent {
	si := models.NewSearchIntent()
	si.MeatTypes = []string{"chicken"}
	return si
}

func TestBatchSearch_SameGroupSharesOneFetch(t *testing.T) {
	store := &fakeStore{products: []models.Product{{Code: "p1", MeatType: "chicken"}}}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	// Same coarse key, different fine criteria.
	a := chickenIntent()
	c := chickenIntent()
	c.NutritionalConstraints[models.ConstraintMaxSalt] = 1.0

	results, err := b.BatchSearch(context.Background(), []*models.SearchIntent{a, c}, 10)
	if err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}

	if store.fetchCalls != 1 {
		t.Errorf("expected one shared fetch, got %d", store.fetchCalls)
	}
	if len(results) != 2 {
		t.Errorf("expected a result slice per intent, got %d", len(results))
	}
	if _, ok := results[a.Key()]; !ok {
		t.Error("missing results for first intent")
	}
	if _, ok := results[c.Key()]; !ok {
		t.Error("missing results for second intent")
	}
}

func TestBatchSearch_DifferentRiskSplitsGroups(t *testing.T) {
	store := &fakeStore{}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	a := chickenIntent()
	c := chickenIntent()
	c.RiskPreference = models.RiskGreen

	if _, err := b.BatchSearch(context.Background(), []*models.SearchIntent{a, c}, 10); err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}

	if store.fetchCalls != 2 {
		t.Errorf("different risk preferences must not share a fetch, got %d calls", store.fetchCalls)
	}
}

func TestBatchSearch_OverfetchFactor(t *testing.T) {
	store := &fakeStore{}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	if _, err := b.BatchSearch(context.Background(), []*models.SearchIntent{chickenIntent()}, 10); err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}

	if store.lastLimit != 30 {
		t.Errorf("fetch limit = %d, want limit_per_query*3 = 30", store.lastLimit)
	}
	if store.lastOffset != 0 {
		t.Errorf("group fetch offset = %d, want 0", store.lastOffset)
	}
}

func TestBatchSearch_GroupCacheHitSkipsFetch(t *testing.T) {
	store := &fakeStore{products: []models.Product{{Code: "p1", MeatType: "chicken"}}}
	b, _ := newTestOptimizer(store)
	defer b.Stop()
	ctx := context.Background()

	if _, err := b.BatchSearch(ctx, []*models.SearchIntent{chickenIntent()}, 10); err != nil {
		t.Fatalf("first BatchSearch: %v", err)
	}
	results, err := b.BatchSearch(ctx, []*models.SearchIntent{chickenIntent()}, 10)
	if err != nil {
		t.Fatalf("second BatchSearch: %v", err)
	}

	if store.fetchCalls != 1 {
		t.Errorf("second call should hit the group cache, got %d fetches", store.fetchCalls)
	}
	if got := results[chickenIntent().Key()]; len(got) != 1 || got[0].Code != "p1" {
		t.Errorf("cached results = %v", got)
	}
}

func TestBatchSearch_ResultsSortedAndTruncated(t *testing.T) {
	store := &fakeStore{products: []models.Product{
		{Code: "plain", MeatType: "pork"},
		{Code: "hit1", MeatType: "chicken"},
		{Code: "hit2", MeatType: "chicken"},
	}}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	si := chickenIntent()
	results, err := b.BatchSearch(context.Background(), []*models.SearchIntent{si}, 2)
	if err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}

	got := results[si.Key()]
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].Code != "hit1" || got[1].Code != "hit2" {
		t.Errorf("expected matching products first in fetch order, got %q then %q", got[0].Code, got[1].Code)
	}
}

func TestBatchSearch_FetchErrorFailsWholeCall(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("connection reset")}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	if _, err := b.BatchSearch(context.Background(), []*models.SearchIntent{chickenIntent()}, 10); err == nil {
		t.Fatal("expected error when the shared fetch fails")
	}
}

func TestBatchSearch_LimitDefaultsAndClamps(t *testing.T) {
	store := &fakeStore{}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	if _, err := b.BatchSearch(context.Background(), []*models.SearchIntent{chickenIntent()}, 0); err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}
	if store.lastLimit != 20*3 {
		t.Errorf("zero limit should take the default, fetch limit = %d", store.lastLimit)
	}

	if _, err := b.BatchSearch(context.Background(), []*models.SearchIntent{{MeatTypes: []string{"beef"}}}, 500); err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}
	if store.lastLimit != 100*3 {
		t.Errorf("over-max limit should clamp, fetch limit = %d", store.lastLimit)
	}
}

func TestBatchSearch_RepresentativeIntentScoring(t *testing.T) {
	// Both members of a group receive the representative's ranking:
	// identical slices, scored against the first intent only.
	store := &fakeStore{products: []models.Product{
		{Code: "salty", MeatType: "chicken", Salt: fptr(3)},
		{Code: "lean", MeatType: "chicken", Salt: fptr(0.5)},
	}}
	b, _ := newTestOptimizer(store)
	defer b.Stop()

	rep := chickenIntent()
	rep.NutritionalConstraints[models.ConstraintMaxSalt] = 1.0
	other := chickenIntent()
	other.Keywords = []string{"salty"}

	results, err := b.BatchSearch(context.Background(), []*models.SearchIntent{rep, other}, 10)
	if err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}

	repGot := results[rep.Key()]
	otherGot := results[other.Key()]
	if len(repGot) != 2 || len(otherGot) != 2 {
		t.Fatalf("expected both intents to get 2 results")
	}
	for i := range repGot {
		if repGot[i].Code != otherGot[i].Code || repGot[i].Score != otherGot[i].Score {
			t.Errorf("group members should share the representative's ranking")
		}
	}
	if repGot[0].Code != "lean" {
		t.Errorf("low-salt product should rank first for the representative, got %q", repGot[0].Code)
	}
}

func TestHandleChange_MeatTypeInvalidatesMatchingGroup(t *testing.T) {
	store := &fakeStore{}
	b, _ := newTestOptimizer(store)
	defer b.Stop()
	ctx := context.Background()

	chicken := chickenIntent()
	beef := models.NewSearchIntent()
	beef.MeatTypes = []string{"beef"}

	if _, err := b.BatchSearch(ctx, []*models.SearchIntent{chicken, beef}, 10); err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}
	if store.fetchCalls != 2 {
		t.Fatalf("setup expected 2 fetches, got %d", store.fetchCalls)
	}

	ev := &models.ProductChangeEvent{Type: "UPDATE", Code: "x", MeatType: "Chicken"}
	if err := b.HandleChange(ctx, ev); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	if _, err := b.BatchSearch(ctx, []*models.SearchIntent{chicken, beef}, 10); err != nil {
		t.Fatalf("BatchSearch after invalidation: %v", err)
	}
	// Chicken group re-fetched, beef group still cached.
	if store.fetchCalls != 3 {
		t.Errorf("expected exactly one re-fetch, got %d total", store.fetchCalls)
	}
}

func TestHandleChange_NoMeatTypeInvalidatesAll(t *testing.T) {
	store := &fakeStore{}
	b, _ := newTestOptimizer(store)
	defer b.Stop()
	ctx := context.Background()

	chicken := chickenIntent()
	beef := models.NewSearchIntent()
	beef.MeatTypes = []string{"beef"}

	if _, err := b.BatchSearch(ctx, []*models.SearchIntent{chicken, beef}, 10); err != nil {
		t.Fatalf("BatchSearch: %v", err)
	}

	ev := &models.ProductChangeEvent{Type: "DELETE", Code: "x"}
	if err := b.HandleChange(ctx, ev); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	if _, err := b.BatchSearch(ctx, []*models.SearchIntent{chicken, beef}, 10); err != nil {
		t.Fatalf("BatchSearch after invalidation: %v", err)
	}
	if store.fetchCalls != 4 {
		t.Errorf("expected both groups re-fetched, got %d total", store.fetchCalls)
	}
}

func TestGroupMentionsMeat(t *testing.T) {
	tests := []struct {
		groupKey string
		meatType string
		want     bool
	}{
		{"chicken|any", "chicken", true},
		{"beef,chicken|Green", "chicken", true},
		{"beef|any", "chicken", false},
		{"|any", "chicken", true},
		{"|Green", "beef", true},
	}

	for _, tt := range tests {
		if got := groupMentionsMeat(tt.groupKey, tt.meatType); got != tt.want {
			t.Errorf("groupMentionsMeat(%q, %q) = %v, want %v", tt.groupKey, tt.meatType, got, tt.want)
		}
	}
}
