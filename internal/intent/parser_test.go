package intent

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/cache"
	"github.com/meatwise/search-service/internal/models"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestParser(completer Completer) (*Parser, *cache.Memory) {
	store := cache.NewMemoryWithClock(time.Now)
	return NewParser(completer, store, time.Hour, zap.NewNop()), store
}

func TestParser_EmptyQuery(t *testing.T) {
	p, store := newTestParser(nil)

	si, source := p.Parse(context.Background(), "   ")
	if !si.IsEmpty() {
		t.Errorf("expected empty intent, got %+v", si)
	}
	if source != SourceRules {
		t.Errorf("source = %q, want rules", source)
	}
	if store.Len() != 0 {
		t.Error("empty queries must not be cached")
	}
}

func TestParser_AIPrimary(t *testing.T) {
	completer := &fakeCompleter{reply: `{"meat_types":["chicken"],"keywords":["chicken"]}`}
	p, _ := newTestParser(completer)

	si, source := p.Parse(context.Background(), "chicken")
	if source != SourceAI {
		t.Errorf("source = %q, want ai", source)
	}
	if !reflect.DeepEqual(si.MeatTypes, []string{"chicken"}) {
		t.Errorf("MeatTypes = %v, want [chicken]", si.MeatTypes)
	}
}

func TestParser_NoCompleterUsesRules(t *testing.T) {
	p, _ := newTestParser(nil)

	si, source := p.Parse(context.Background(), "Low Sodium Chicken")
	if source != SourceRules {
		t.Errorf("source = %q, want rules", source)
	}
	if !reflect.DeepEqual(si.MeatTypes, []string{"chicken"}) {
		t.Errorf("MeatTypes = %v, want [chicken]", si.MeatTypes)
	}
	if si.NutritionalConstraints[models.ConstraintMaxSalt] != 1.0 {
		t.Error("expected max_salt constraint from rule parser")
	}
}

func TestParser_AIErrorFallsBackToRules(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("service unavailable")}
	p, _ := newTestParser(completer)

	si, source := p.Parse(context.Background(), "low fat beef")
	if source != SourceRules {
		t.Errorf("source = %q, want rules after AI error", source)
	}
	if !reflect.DeepEqual(si.MeatTypes, []string{"beef"}) {
		t.Errorf("MeatTypes = %v, want [beef]", si.MeatTypes)
	}
	if completer.calls != 1 {
		t.Errorf("expected exactly one AI attempt, got %d", completer.calls)
	}
}

func TestParser_AIGarbageFallsBackToRules(t *testing.T) {
	completer := &fakeCompleter{reply: "I don't know what that means."}
	p, _ := newTestParser(completer)

	si, source := p.Parse(context.Background(), "organic turkey")
	if source != SourceRules {
		t.Errorf("source = %q, want rules after undecodable reply", source)
	}
	if !reflect.DeepEqual(si.HealthPreferences, []string{models.PrefOrganic}) {
		t.Errorf("HealthPreferences = %v", si.HealthPreferences)
	}
}

func TestParser_AIEmptyIntentFallsBackToRules(t *testing.T) {
	// A structurally valid but all-empty reply means the model learned
	// nothing; rules get a chance instead.
	completer := &fakeCompleter{reply: `{"meat_types":[]}`}
	p, _ := newTestParser(completer)

	si, source := p.Parse(context.Background(), "pork sausage")
	if source != SourceRules {
		t.Errorf("source = %q, want rules for empty AI intent", source)
	}
	if !reflect.DeepEqual(si.MeatTypes, []string{"pork"}) {
		t.Errorf("MeatTypes = %v, want [pork]", si.MeatTypes)
	}
}

func TestParser_CacheHitSkipsAI(t *testing.T) {
	completer := &fakeCompleter{reply: `{"meat_types":["chicken"],"keywords":["chicken"]}`}
	p, _ := newTestParser(completer)
	ctx := context.Background()

	first, source := p.Parse(ctx, "chicken")
	if source != SourceAI {
		t.Fatalf("first parse source = %q, want ai", source)
	}

	second, source := p.Parse(ctx, "chicken")
	if source != SourceCache {
		t.Errorf("second parse source = %q, want cache", source)
	}
	if completer.calls != 1 {
		t.Errorf("cache hit should not call the completer again, got %d calls", completer.calls)
	}
	if first.Key() != second.Key() {
		t.Error("cached intent should match the fresh one")
	}
}

func TestParser_CacheKeyNormalized(t *testing.T) {
	completer := &fakeCompleter{reply: `{"meat_types":["chicken"],"keywords":["chicken"]}`}
	p, _ := newTestParser(completer)
	ctx := context.Background()

	p.Parse(ctx, "Chicken")
	_, source := p.Parse(ctx, "  chicken  ")
	if source != SourceCache {
		t.Errorf("case and whitespace variants should share a cache entry, source = %q", source)
	}
}

func TestParser_RulesResultAlsoCached(t *testing.T) {
	p, store := newTestParser(nil)
	ctx := context.Background()

	p.Parse(ctx, "low sodium chicken")
	if store.Len() != 1 {
		t.Fatalf("expected one cached entry, got %d", store.Len())
	}

	_, source := p.Parse(ctx, "low sodium chicken")
	if source != SourceCache {
		t.Errorf("source = %q, want cache", source)
	}
}

func TestParser_ExpiredCacheEntryReparses(t *testing.T) {
	now := time.Now()
	store := cache.NewMemoryWithClock(func() time.Time { return now })
	completer := &fakeCompleter{reply: `{"meat_types":["chicken"],"keywords":["chicken"]}`}
	p := NewParser(completer, store, time.Hour, zap.NewNop())
	ctx := context.Background()

	p.Parse(ctx, "chicken")
	now = now.Add(time.Hour + time.Minute)

	_, source := p.Parse(ctx, "chicken")
	if source != SourceAI {
		t.Errorf("source = %q, want ai after TTL expiry", source)
	}
	if completer.calls != 2 {
		t.Errorf("expected a second AI call after expiry, got %d", completer.calls)
	}
}

func TestParser_CorruptCacheEntryReparses(t *testing.T) {
	store := cache.NewMemoryWithClock(time.Now)
	p := NewParser(nil, store, time.Hour, zap.NewNop())
	ctx := context.Background()

	key := "qi:" + cache.HashKey("chicken")
	store.Set(ctx, key, []byte("not json"), time.Hour)

	si, source := p.Parse(ctx, "chicken")
	if source != SourceRules {
		t.Errorf("source = %q, want rules after corrupt cache entry", source)
	}
	if !reflect.DeepEqual(si.MeatTypes, []string{"chicken"}) {
		t.Errorf("MeatTypes = %v, want [chicken]", si.MeatTypes)
	}
}
