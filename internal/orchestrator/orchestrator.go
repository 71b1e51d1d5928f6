// Package orchestrator ties the search pipeline together: parse, build
// predicates, fetch, score, rank.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/config"
	"github.com/meatwise/search-service/internal/filters"
	"github.com/meatwise/search-service/internal/intent"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/observability"
	"github.com/meatwise/search-service/internal/scoring"
)

// ProductStore is the outbound catalog dependency. Fetch order must be
// deterministic: it anchors the stable tie-break between equal scores.
type ProductStore interface {
	Fetch(ctx context.Context, f *filters.Filter, limit, offset int) ([]models.Product, error)
	Count(ctx context.Context, f *filters.Filter) (int64, error)
}

type Orchestrator struct {
	store   ProductStore
	parser  *intent.Parser
	builder *filters.Builder
	scorer  *scoring.Scorer
	caps    models.SchemaCapabilities
	slow    *observability.SlowSearchDetector
	cfg     config.SearchConfig
	logger  *zap.Logger
}

func New(
	store ProductStore,
	parser *intent.Parser,
	caps models.SchemaCapabilities,
	slow *observability.SlowSearchDetector,
	cfg config.SearchConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:   store,
		parser:  parser,
		builder: filters.NewBuilder(),
		scorer:  scoring.NewScorer(),
		caps:    caps,
		slow:    slow,
		cfg:     cfg,
		logger:  logger,
	}
}

// Search answers one free-text request with a ranked page. The catalog
// is over-fetched by the configured single-query factor so reranking has
// candidates beyond the page size; a datastore error propagates as a
// hard failure with no retry.
func (o *Orchestrator) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrator.search",
		attribute.Int("limit", req.Limit),
		attribute.Int("skip", req.Skip),
	)
	defer span.End()

	if req.Limit <= 0 {
		req.Limit = o.cfg.DefaultLimit
	}
	if req.Limit > o.cfg.MaxLimit {
		req.Limit = o.cfg.MaxLimit
	}
	if req.Skip < 0 {
		req.Skip = 0
	}

	si, source := o.parser.Parse(ctx, req.Query)
	o.logger.Debug("query parsed",
		zap.String("request_id", req.RequestID),
		zap.String("source", string(source)),
		zap.Strings("meat_types", si.MeatTypes),
	)

	filter, factors := o.builder.Build(si, o.caps)

	overfetch := req.Limit * o.cfg.OverfetchFactorSingle
	products, err := o.store.Fetch(ctx, filter, overfetch, req.Skip)
	if err != nil {
		observability.SearchRequestsTotal.WithLabelValues("single", "error").Inc()
		observability.SearchRequestDuration.WithLabelValues("single", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("catalog fetch: %w", err)
	}

	total, err := o.store.Count(ctx, filter)
	if err != nil {
		observability.SearchRequestsTotal.WithLabelValues("single", "error").Inc()
		return nil, fmt.Errorf("catalog count: %w", err)
	}

	results := o.rank(products, si, factors, req.Limit)

	took := time.Since(start)
	observability.SearchRequestsTotal.WithLabelValues("single", "success").Inc()
	observability.SearchRequestDuration.WithLabelValues("single", "success").Observe(took.Seconds())
	o.slow.Intercept(ctx, req.Query, "single", took, len(results))

	return &models.SearchResponse{
		Results: results,
		Total:   total,
		Limit:   req.Limit,
		Skip:    req.Skip,
		TookMs:  took.Milliseconds(),
		Intent:  si,
		Meta: models.ResponseMetadata{
			RequestID: req.RequestID,
			ParsedBy:  string(source),
			Overfetch: overfetch,
		},
	}, nil
}

// rank scores every candidate, sorts descending by score with the fetch
// order as the stable tie-break, and truncates to limit.
func (o *Orchestrator) rank(products []models.Product, si *models.SearchIntent, factors models.RankingFactors, limit int) []models.ScoredProduct {
	scored := make([]models.ScoredProduct, 0, len(products))
	for i := range products {
		score, matched := o.scorer.Score(&products[i], si, factors)
		scored = append(scored, models.Scored(&products[i], score, matched))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
