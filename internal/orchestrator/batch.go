package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/cache"
	"github.com/meatwise/search-service/internal/config"
	"github.com/meatwise/search-service/internal/filters"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/observability"
	"github.com/meatwise/search-service/internal/scoring"
)

const groupCachePrefix = "bg:"

// BatchOptimizer resolves many intents together. Intents sharing a
// coarse group key (sorted meat types + risk preference) share one
// catalog fetch and one scored candidate list; finer criteria are
// applied only during scoring, against the group's first intent. That
// representative-intent scoring is a deliberate approximation: members
// of a group get results ranked for the group, not for themselves.
type BatchOptimizer struct {
	store   ProductStore
	builder *filters.Builder
	scorer  *scoring.Scorer
	caps    models.SchemaCapabilities
	cache   cache.Store
	pool    *scorePool
	cfg     config.SearchConfig
	logger  *zap.Logger

	// Live group keys, kept so the invalidator can target cache entries
	// by meat type without scanning the store.
	mu     sync.Mutex
	groups map[string]string // group key -> cache key
}

func NewBatchOptimizer(
	store ProductStore,
	caps models.SchemaCapabilities,
	groupCache cache.Store,
	cfg config.SearchConfig,
	logger *zap.Logger,
) *BatchOptimizer {
	return &BatchOptimizer{
		store:   store,
		builder: filters.NewBuilder(),
		scorer:  scoring.NewScorer(),
		caps:    caps,
		cache:   groupCache,
		pool:    newScorePool(cfg.ScoringWorkers, cfg.ScoringWorkers*4, logger),
		cfg:     cfg,
		logger:  logger,
		groups:  make(map[string]string),
	}
}

// Stop shuts the scoring pool down deterministically.
func (b *BatchOptimizer) Stop() {
	b.pool.Stop()
}

// BatchSearch resolves every intent to a ranked slice keyed by the
// intent's content key. A shared-fetch error fails the whole call; a
// failure scoring one product only drops that product from its group.
func (b *BatchOptimizer) BatchSearch(ctx context.Context, intents []*models.SearchIntent, limitPerQuery int) (map[string][]models.ScoredProduct, error) {
	ctx, span := observability.StartSpan(ctx, "orchestrator.batch_search",
		attribute.Int("intents", len(intents)),
	)
	defer span.End()

	if limitPerQuery <= 0 {
		limitPerQuery = b.cfg.DefaultLimit
	}
	if limitPerQuery > b.cfg.MaxLimit {
		limitPerQuery = b.cfg.MaxLimit
	}

	// Group preserving first-seen order so the "first intent" of each
	// group is well defined.
	groupOrder := []string{}
	grouped := map[string][]*models.SearchIntent{}
	for _, si := range intents {
		key := si.GroupKey()
		if _, seen := grouped[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		grouped[key] = append(grouped[key], si)
	}

	results := make(map[string][]models.ScoredProduct, len(intents))
	for _, groupKey := range groupOrder {
		members := grouped[groupKey]
		scored, err := b.resolveGroup(ctx, groupKey, members[0], limitPerQuery)
		if err != nil {
			return nil, fmt.Errorf("resolving group %q: %w", groupKey, err)
		}

		for _, si := range members {
			n := limitPerQuery
			if n > len(scored) {
				n = len(scored)
			}
			results[si.Key()] = scored[:n]
		}
	}

	return results, nil
}

// resolveGroup returns the group's scored, sorted candidate list, from
// cache when a fresh entry exists, otherwise via one shared fetch scored
// against the representative intent.
func (b *BatchOptimizer) resolveGroup(ctx context.Context, groupKey string, rep *models.SearchIntent, limitPerQuery int) ([]models.ScoredProduct, error) {
	cacheKey := groupCachePrefix + cache.HashKey(groupKey)

	if data, err := b.cache.Get(ctx, cacheKey); err != nil {
		b.logger.Warn("group cache lookup error", zap.Error(err))
	} else if data != nil {
		var scored []models.ScoredProduct
		if err := json.Unmarshal(data, &scored); err == nil {
			observability.BatchGroupsTotal.WithLabelValues("cache_hit").Inc()
			return scored, nil
		}
		b.logger.Warn("discarding corrupt group cache entry", zap.String("group", groupKey))
	}

	filter, factors := b.builder.Build(rep, b.caps)

	products, err := b.store.Fetch(ctx, filter, limitPerQuery*b.cfg.OverfetchFactorBatch, 0)
	if err != nil {
		observability.BatchGroupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("shared fetch: %w", err)
	}

	scored := b.scoreParallel(products, rep, factors)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if data, err := json.Marshal(scored); err != nil {
		b.logger.Warn("group cache marshal error", zap.Error(err))
	} else if err := b.cache.Set(ctx, cacheKey, data, b.cfg.BatchGroupCacheTTL); err != nil {
		b.logger.Warn("group cache set error", zap.Error(err))
	} else {
		b.registerGroup(groupKey, cacheKey)
	}

	observability.BatchGroupsTotal.WithLabelValues("fetched").Inc()
	return scored, nil
}

// scoreParallel fans product scoring out across the worker pool and
// reassembles results in fetch order. Slots whose task failed are
// dropped, not zero-scored.
func (b *BatchOptimizer) scoreParallel(products []models.Product, rep *models.SearchIntent, factors models.RankingFactors) []models.ScoredProduct {
	type slot struct {
		result models.ScoredProduct
		ok     bool
	}
	slots := make([]slot, len(products))

	var wg sync.WaitGroup
	wg.Add(len(products))
	for i := range products {
		i := i
		b.pool.Submit(func() {
			defer wg.Done()
			score, matched := b.scorer.Score(&products[i], rep, factors)
			slots[i] = slot{result: models.Scored(&products[i], score, matched), ok: true}
		})
	}
	wg.Wait()

	scored := make([]models.ScoredProduct, 0, len(products))
	for i := range slots {
		if slots[i].ok {
			scored = append(scored, slots[i].result)
		}
	}
	return scored
}

func (b *BatchOptimizer) registerGroup(groupKey, cacheKey string) {
	b.mu.Lock()
	b.groups[groupKey] = cacheKey
	b.mu.Unlock()
}

// InvalidateMeatType drops every cached group whose key mentions the
// given meat type or matches any meat ("|" prefix groups). Called by the
// catalog-change consumer.
func (b *BatchOptimizer) InvalidateMeatType(ctx context.Context, meatType string) error {
	b.mu.Lock()
	var victims []string
	for groupKey, cacheKey := range b.groups {
		if groupMentionsMeat(groupKey, meatType) {
			victims = append(victims, cacheKey)
			delete(b.groups, groupKey)
		}
	}
	b.mu.Unlock()

	for _, cacheKey := range victims {
		if err := b.cache.Delete(ctx, cacheKey); err != nil {
			return fmt.Errorf("deleting group cache entry: %w", err)
		}
	}
	return nil
}

// HandleChange reacts to one catalog change event: cached groups that
// could contain the touched product are dropped so the next batch
// re-fetches. Parsed-intent cache entries are untouched; they do not
// depend on catalog rows.
func (b *BatchOptimizer) HandleChange(ctx context.Context, ev *models.ProductChangeEvent) error {
	var err error
	if ev.MeatType != "" {
		err = b.InvalidateMeatType(ctx, strings.ToLower(ev.MeatType))
	} else {
		err = b.InvalidateAll(ctx)
	}
	if err != nil {
		observability.InvalidationEventsTotal.WithLabelValues("error").Inc()
		return err
	}
	observability.InvalidationEventsTotal.WithLabelValues("success").Inc()
	return nil
}

// InvalidateAll drops every cached group. Used when a change event does
// not say which meat type it touched.
func (b *BatchOptimizer) InvalidateAll(ctx context.Context) error {
	b.mu.Lock()
	b.groups = make(map[string]string)
	b.mu.Unlock()
	return b.cache.DeleteByPrefix(ctx, groupCachePrefix)
}

// groupMentionsMeat matches "beef,chicken|Green" style keys. A group
// with no meat types filters by risk alone and may contain any product,
// so it always matches.
func groupMentionsMeat(groupKey, meatType string) bool {
	meats, _, _ := strings.Cut(groupKey, "|")
	if meats == "" {
		return true
	}
	for _, m := range strings.Split(meats, ",") {
		if m == meatType {
			return true
		}
	}
	return false
}
