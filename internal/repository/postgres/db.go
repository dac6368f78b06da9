package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Connect builds a pool without requiring the server to be up: the primary may be
// unreachable at start and come back later.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 3 * time.Second
	return pgxpool.NewWithConfig(ctx, cfg)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price >= 0),
		image TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		num_reviews INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		items JSONB NOT NULL,
		shipping_address JSONB NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		items_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		tax_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		shipping_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMPTZ,
		payment_result JSONB,
		is_delivered BOOLEAN NOT NULL DEFAULT FALSE,
		delivered_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_created_idx ON orders (user_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return classify("migrate", err)
		}
	}
	return nil
}

// Seed inserts the sample catalog if the products table is empty.
func Seed(ctx context.Context, pool *pgxpool.Pool, products []domain.Product) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return classify("seed", err)
	}
	if count > 0 {
		return nil // already seeded
	}
	store := NewProductStore(pool)
	for i := range products {
		if err := store.Create(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].ID, err)
		}
	}
	return nil
}

// Prepare runs Migrate and Seed, retrying every interval until both succeed or ctx ends.
// It is meant to run in the background so the service can start while the primary is down.
func Prepare(ctx context.Context, pool *pgxpool.Pool, interval time.Duration, logger *slog.Logger) {
	for {
		err := Migrate(ctx, pool)
		if err == nil {
			err = Seed(ctx, pool, repository.SampleProducts())
		}
		if err == nil {
			logger.Info("primary store migrated and seeded")
			return
		}
		logger.Warn("primary store not ready", "err", err, "retry_in", interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Ping reports whether the primary answers.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return classify("ping", pool.Ping(ctx))
}

// classify turns transport failures into repository.ConnectivityError and leaves
// every other error as is.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return repository.ErrNotFound
	case isConnectivity(err):
		return &repository.ConnectivityError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isConnectivity reports transport failures. The caller's own cancellation or
// deadline is not one: any other backend would see the same context.
func isConnectivity(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &connErr):
		return true
	case errors.Is(err, puddle.ErrClosedPool):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.As(err, &netErr):
		return true
	}
	return false
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
