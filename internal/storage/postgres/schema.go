package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id              TEXT PRIMARY KEY,
		sku             TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		wholesale_price NUMERIC(10,2) NOT NULL DEFAULT 0,
		retail_price    NUMERIC(10,2) NOT NULL DEFAULT 0,
		stock_qty       INT NOT NULL DEFAULT 0 CHECK (stock_qty >= 0),
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		woo_id          BIGINT,
		weight_g        INT NOT NULL DEFAULT 0,
		attributes      JSONB NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS variants (
		id               TEXT PRIMARY KEY,
		product_id       TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		woo_variation_id BIGINT UNIQUE,
		sku              TEXT NOT NULL DEFAULT '',
		attributes       JSONB NOT NULL DEFAULT '{}',
		retail_price     NUMERIC(10,2) NOT NULL DEFAULT 0,
		wholesale_price  NUMERIC(10,2) NOT NULL DEFAULT 0,
		stock_qty        INT NOT NULL DEFAULT 0 CHECK (stock_qty >= 0),
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		weight_g         INT NOT NULL DEFAULT 0,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS variants_product_idx ON variants (product_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		dealer_id        TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'draft',
		subtotal         NUMERIC(12,2) NOT NULL DEFAULT 0,
		total            NUMERIC(12,2) NOT NULL DEFAULT 0,
		note             TEXT NOT NULL DEFAULT '',
		city_ref         TEXT NOT NULL DEFAULT '',
		city_name        TEXT NOT NULL DEFAULT '',
		warehouse_ref    TEXT NOT NULL DEFAULT '',
		warehouse_name   TEXT NOT NULL DEFAULT '',
		shipping_provider TEXT NOT NULL DEFAULT 'Nova Poshta',
		tracking_number  TEXT NOT NULL DEFAULT '',
		shipping_doc_ref TEXT NOT NULL DEFAULT '',
		shipped_at       TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// At most one open draft per dealer.
	`CREATE UNIQUE INDEX IF NOT EXISTS orders_one_draft_per_dealer
		ON orders (dealer_id) WHERE status = 'draft'`,
	`CREATE INDEX IF NOT EXISTS orders_dealer_idx ON orders (dealer_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id         TEXT PRIMARY KEY,
		order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL REFERENCES products(id),
		variant_id TEXT NOT NULL DEFAULT '',
		qty        INT NOT NULL CHECK (qty > 0),
		price      NUMERIC(10,2) NOT NULL,
		attrs      JSONB NOT NULL DEFAULT '{}',
		UNIQUE (order_id, product_id, variant_id)
	)`,
	// Reservation ledger: one row per (order, unit), flipped on release so
	// stock is subtracted and credited exactly once.
	`CREATE TABLE IF NOT EXISTS reservations (
		order_id   TEXT NOT NULL,
		product_id TEXT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		qty        INT NOT NULL CHECK (qty > 0),
		status     TEXT NOT NULL DEFAULT 'RESERVED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (order_id, product_id, variant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id              BIGSERIAL PRIMARY KEY,
		kind            TEXT NOT NULL DEFAULT 'event',
		aggregate_type  TEXT NOT NULL,
		aggregate_id    TEXT NOT NULL,
		type            TEXT NOT NULL,
		payload         JSONB NOT NULL,
		headers         JSONB NOT NULL DEFAULT '{}',
		traceparent     TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'pending',
		relay_id        TEXT,
		lease_until     TIMESTAMPTZ,
		next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		retry_count     INT NOT NULL DEFAULT 0,
		last_error      TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (kind, status, next_attempt_at)`,
}

// Migrate applies the schema. Idempotent, run at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
