package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the journal table and its indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS market_events (
	event_id       UUID PRIMARY KEY,
	event_type     TEXT NOT NULL,
	asset_contract TEXT NOT NULL,
	asset_id       TEXT NOT NULL,
	seller         TEXT NOT NULL,
	buyer          TEXT,
	price          NUMERIC(78, 0) NOT NULL,
	fee            NUMERIC(78, 0) NOT NULL,
	proceeds       NUMERIC(78, 0) NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS market_events_asset_idx ON market_events (asset_contract, asset_id, occurred_at);
CREATE INDEX IF NOT EXISTS market_events_seller_idx ON market_events (seller, occurred_at);
`

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}
