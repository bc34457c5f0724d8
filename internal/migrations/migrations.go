// Package migrations creates the tables the registry and ledger read and write.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS approved_items (
		code          TEXT PRIMARY KEY,
		code_kind     TEXT NOT NULL DEFAULT 'upc',
		name          TEXT NOT NULL,
		brand         TEXT NOT NULL DEFAULT '',
		category      TEXT NOT NULL,
		subcategory   TEXT,
		size_oz       DOUBLE PRECISION,
		size_display  TEXT NOT NULL DEFAULT '',
		is_approved   BOOLEAN NOT NULL DEFAULT FALSE,
		notes         TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_approved_items_category_key
		ON approved_items ((replace(lower(btrim(category)), ' ', '_'))) WHERE is_approved`,
	`CREATE TABLE IF NOT EXISTS benefit_entries (
		id            UUID PRIMARY KEY,
		card_id       TEXT NOT NULL,
		category      TEXT NOT NULL,
		period_start  TIMESTAMPTZ NOT NULL,
		period_end    TIMESTAMPTZ NOT NULL,
		allotment     NUMERIC(12,3) NOT NULL,
		remaining     NUMERIC(12,3) NOT NULL,
		unit          TEXT NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (card_id, category, period_start),
		CHECK (remaining <= allotment)
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id            UUID PRIMARY KEY,
		card_id       TEXT NOT NULL,
		store_id      TEXT,
		reference_id  TEXT UNIQUE,
		period_start  TIMESTAMPTZ NOT NULL,
		period_end    TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_line_items (
		id              UUID PRIMARY KEY,
		purchase_id     UUID NOT NULL REFERENCES purchases(id),
		line_no         INTEGER NOT NULL,
		category        TEXT NOT NULL,
		quantity        NUMERIC(12,3) NOT NULL CHECK (quantity > 0),
		unit            TEXT NOT NULL,
		product_name    TEXT NOT NULL DEFAULT '',
		product_code    TEXT,
		ledger_applied  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_card
		ON purchases (card_id, created_at DESC)`,
}

// Apply runs every statement in order. All statements are idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
