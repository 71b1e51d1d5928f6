// Package intent converts free-text queries into structured search
// intents. Parsing never fails at the public boundary: the AI path may
// degrade for any reason (no credential, open breaker, malformed reply)
// and the rule engine takes over silently.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/cache"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/observability"
)

// Source records which path produced an intent.
type Source string

const (
	SourceCache Source = "cache"
	SourceAI    Source = "ai"
	SourceRules Source = "rules"
)

const queryCachePrefix = "qi:"

// errNoCompleter marks the degraded path taken when no AI client is
// configured.
var errNoCompleter = errors.New("no completion client configured")

// Completer is the outbound text-completion dependency. It must be
// treated as potentially absent, slow, or returning garbage.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Parser struct {
	completer Completer // nil when AI parsing is disabled
	store     cache.Store
	ttl       time.Duration
	logger    *zap.Logger
}

// NewParser builds a parser. completer may be nil; store must not be.
func NewParser(completer Completer, store cache.Store, ttl time.Duration, logger *zap.Logger) *Parser {
	return &Parser{
		completer: completer,
		store:     store,
		ttl:       ttl,
		logger:    logger,
	}
}

// Parse resolves a query into an intent and reports which path produced
// it. It never returns an error: a cache hit short-circuits everything,
// the AI path is attempted next, and any AI failure falls back to the
// rule engine. The result is cached before returning.
func (p *Parser) Parse(ctx context.Context, query string) (*models.SearchIntent, Source) {
	ctx, span := observability.StartSpan(ctx, "intent.parse")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		// Nothing to parse; an all-empty intent is a valid unfiltered
		// search.
		return models.NewSearchIntent(), SourceRules
	}
	key := queryCachePrefix + cache.HashKey(normalized)

	if cached, err := p.store.Get(ctx, key); err != nil {
		p.logger.Warn("intent cache lookup error", zap.Error(err))
	} else if cached != nil {
		si, err := models.UnmarshalIntent(cached)
		if err == nil {
			observability.IntentCacheHits.Inc()
			return si, SourceCache
		}
		p.logger.Warn("discarding corrupt cached intent", zap.Error(err))
	}
	observability.IntentCacheMisses.Inc()

	si, source := p.parseFresh(ctx, query, normalized)

	if data, err := si.Marshal(); err != nil {
		p.logger.Warn("intent cache marshal error", zap.Error(err))
	} else if err := p.store.Set(ctx, key, data, p.ttl); err != nil {
		p.logger.Warn("intent cache set error", zap.Error(err))
	}

	return si, source
}

func (p *Parser) parseFresh(ctx context.Context, query, normalized string) (*models.SearchIntent, Source) {
	si, err := p.parseAI(ctx, query)
	if err == nil && !si.IsEmpty() {
		observability.IntentParsesTotal.WithLabelValues(string(SourceAI)).Inc()
		return si, SourceAI
	}
	if err != nil && !errors.Is(err, errNoCompleter) {
		p.logger.Debug("ai parse degraded, using rules", zap.Error(err))
		observability.IntentParseDegradations.Inc()
	}

	observability.IntentParsesTotal.WithLabelValues(string(SourceRules)).Inc()
	return parseRules(normalized), SourceRules
}

// parseAI is the primary parsing path. Its error return is internal
// only: callers collapse every failure into the rule fallback, but unit
// tests can observe the degradation cause here.
func (p *Parser) parseAI(ctx context.Context, query string) (*models.SearchIntent, error) {
	if p.completer == nil {
		return nil, errNoCompleter
	}

	raw, err := p.completer.Complete(ctx, buildPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}

	return decodeIntentResponse(raw)
}
