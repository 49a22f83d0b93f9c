package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"dolmen/pos/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	credential TEXT NOT NULL,
	role       TEXT NOT NULL CHECK (role IN ('admin', 'staff'))
);

CREATE TABLE IF NOT EXISTS shop_profile (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	name    TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	phone   TEXT NOT NULL DEFAULT '',
	terms   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
	id             BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	name           TEXT NOT NULL CHECK (name <> ''),
	category       TEXT NOT NULL DEFAULT '',
	season         TEXT NOT NULL DEFAULT '',
	purchase_price NUMERIC(12,2) NOT NULL CHECK (purchase_price >= 0),
	sale_price     NUMERIC(12,2) NOT NULL CHECK (sale_price >= 0),
	stock          INTEGER NOT NULL CHECK (stock >= 0)
);

CREATE TABLE IF NOT EXISTS sales (
	id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	receipt_id TEXT NOT NULL,
	item_id    BIGINT NOT NULL,
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	sale_price NUMERIC(12,2) NOT NULL,
	profit     NUMERIC(12,2) NOT NULL,
	total      NUMERIC(12,2) NOT NULL,
	sold_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sales_sold_at_idx ON sales (sold_at);
CREATE INDEX IF NOT EXISTS sales_receipt_id_idx ON sales (receipt_id);

CREATE TABLE IF NOT EXISTS purchases (
	id             BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	item_id        BIGINT NOT NULL,
	quantity       INTEGER NOT NULL CHECK (quantity > 0),
	purchase_price NUMERIC(12,2) NOT NULL CHECK (purchase_price >= 0),
	purchased_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS purchases_purchased_at_idx ON purchases (purchased_at);
`

// Migrate creates the schema. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return store.Storage("migrate", err)
	}
	return nil
}

// Seed writes users, the shop profile and sample items, each only when absent.
func (s *Store) Seed(ctx context.Context, seed store.Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Storage("seed", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range seed.Users {
		hash, err := store.HashCredential(u.Password)
		if err != nil {
			return fmt.Errorf("hash seed credential for %s: %w", u.Username, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, credential, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (username) DO NOTHING
		`, u.Username, hash, string(u.Role)); err != nil {
			return store.Storage("seed users", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shop_profile (id, name, address, phone, terms)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, seed.Shop.Name, seed.Shop.Address, seed.Shop.Phone, seed.Shop.Terms); err != nil {
		return store.Storage("seed shop", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return store.Storage("seed items", err)
	}
	if count == 0 {
		for _, item := range seed.Items {
			if err := insertItem(ctx, tx, &item); err != nil {
				return store.Storage("seed items", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Storage("seed", err)
	}
	return nil
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
