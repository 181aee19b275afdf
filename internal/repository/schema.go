package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS couriers (
		id                  BIGSERIAL PRIMARY KEY,
		name                TEXT NOT NULL,
		phone               TEXT NOT NULL UNIQUE,
		vehicle             TEXT NOT NULL DEFAULT 'bike',
		availability        TEXT NOT NULL DEFAULT 'available',
		rating              DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_deliveries    INTEGER NOT NULL DEFAULT 0,
		current_request_id  TEXT,
		latitude            DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude           DOUBLE PRECISION NOT NULL DEFAULT 0,
		position_updated_at TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS couriers_availability_idx ON couriers (availability)`,
	`CREATE TABLE IF NOT EXISTS delivery_requests (
		id                  TEXT PRIMARY KEY,
		origin_lat          DOUBLE PRECISION NOT NULL,
		origin_lon          DOUBLE PRECISION NOT NULL,
		origin_address      TEXT NOT NULL DEFAULT '',
		destination_lat     DOUBLE PRECISION NOT NULL,
		destination_lon     DOUBLE PRECISION NOT NULL,
		destination_address TEXT NOT NULL DEFAULT '',
		requester_id        TEXT NOT NULL,
		priority            BOOLEAN NOT NULL DEFAULT false,
		status              TEXT NOT NULL,
		courier_id          BIGINT REFERENCES couriers(id),
		distance_km         DOUBLE PRECISION NOT NULL,
		estimated_minutes   INTEGER NOT NULL,
		fee_cents           BIGINT NOT NULL DEFAULT 0,
		version             BIGINT NOT NULL DEFAULT 1,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tracking_events (
		id          TEXT PRIMARY KEY,
		request_id  TEXT NOT NULL REFERENCES delivery_requests(id) ON DELETE CASCADE,
		courier_id  BIGINT NOT NULL DEFAULT 0,
		latitude    DOUBLE PRECISION NOT NULL,
		longitude   DOUBLE PRECISION NOT NULL,
		status      TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tracking_events_request_idx ON tracking_events (request_id, occurred_at)`,
}

// EnsureSchema creates the tables the service needs if they are missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
