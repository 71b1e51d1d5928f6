// Package postgres is the read-only catalog store. The search core
// never writes products; import jobs own the table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/config"
	"github.com/meatwise/search-service/internal/filters"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/observability"
)

const productColumns = `code, name, brand, description, ingredients_text, meat_type,
	calories, protein, fat, carbohydrates, salt, risk_rating,
	antibiotic_free, hormone_free, pasture_raised, contains_preservatives`

type ProductStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewProductStore connects and pings the configured database.
func NewProductStore(cfg config.PostgresConfig, logger *zap.Logger) (*ProductStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	logger.Info("postgres connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &ProductStore{db: db, logger: logger}, nil
}

// NewProductStoreWithDB wraps an existing connection; tests pass a
// sqlmock-backed one.
func NewProductStoreWithDB(db *sqlx.DB, logger *zap.Logger) *ProductStore {
	return &ProductStore{db: db, logger: logger}
}

// Fetch runs the filter against the catalog with offset/limit
// pagination. Rows come back ordered by code so the scorer's stable
// tie-break is deterministic across calls.
func (s *ProductStore) Fetch(ctx context.Context, f *filters.Filter, limit, offset int) ([]models.Product, error) {
	ctx, span := observability.StartSpan(ctx, "postgres.fetch")
	defer span.End()

	where, args := f.WhereClause()
	query := "SELECT " + productColumns + " FROM products"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY code LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	query = s.db.Rebind(query)

	start := time.Now()
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, query, args...)
	observability.CatalogQueryDuration.WithLabelValues("fetch", statusLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	return products, nil
}

// Count returns how many catalog rows the filter matches, ignoring
// pagination.
func (s *ProductStore) Count(ctx context.Context, f *filters.Filter) (int64, error) {
	ctx, span := observability.StartSpan(ctx, "postgres.count")
	defer span.End()

	where, args := f.WhereClause()
	query := "SELECT COUNT(*) FROM products"
	if where != "" {
		query += " WHERE " + where
	}
	query = s.db.Rebind(query)

	start := time.Now()
	var count int64
	err := s.db.GetContext(ctx, &count, query, args...)
	observability.CatalogQueryDuration.WithLabelValues("count", statusLabel(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}

	return count, nil
}

// HealthCheck pings the database for the readiness probe.
func (s *ProductStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ProductStore) Close() error {
	return s.db.Close()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
