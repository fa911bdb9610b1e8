package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// statements is the append-only schema history. New releases append, they
// never edit shipped statements.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS lottery_schema (
		version INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lottery_rounds (
		id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		ticket_price BIGINT NOT NULL DEFAULT 0,
		final_number BIGINT NOT NULL DEFAULT 0,
		shares JSONB,
		breakdown JSONB,
		ticket_count BIGINT NOT NULL DEFAULT 0,
		routed_self BIGINT NOT NULL DEFAULT 0,
		routed_counterpart BIGINT NOT NULL DEFAULT 0,
		routed_team BIGINT NOT NULL DEFAULT 0,
		routed_burn BIGINT NOT NULL DEFAULT 0,
		distributed_rewards BIGINT NOT NULL DEFAULT 0,
		closed_at TIMESTAMPTZ,
		drawn_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (kind, id)
	)`,
	`CREATE TABLE IF NOT EXISTS lottery_tickets (
		id BIGSERIAL PRIMARY KEY,
		round_id BIGINT NOT NULL,
		owner TEXT NOT NULL,
		number BIGINT NOT NULL DEFAULT 0,
		bonus BOOLEAN NOT NULL DEFAULT FALSE,
		claimed BOOLEAN NOT NULL DEFAULT FALSE,
		claimed_bracket INT NOT NULL DEFAULT 0,
		paid_amount BIGINT NOT NULL DEFAULT 0,
		purchased_at TIMESTAMPTZ,
		claimed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS lottery_tickets_round_idx
		ON lottery_tickets (round_id, id)`,
	`CREATE TABLE IF NOT EXISTS lottery_configs (
		kind TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lottery_degrand_prizes (
		round_id BIGINT PRIMARY KEY,
		draw_time TIMESTAMPTZ,
		title TEXT NOT NULL DEFAULT '',
		subtitle TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		cta_url TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		max_winner_count INT NOT NULL DEFAULT 0,
		picked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lottery_award_sets (
		round_id BIGINT NOT NULL,
		stage TEXT NOT NULL,
		ticket_ids JSONB NOT NULL,
		pot_snapshot BIGINT NOT NULL DEFAULT 0,
		per_ticket_prize BIGINT NOT NULL DEFAULT 0,
		picked_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (round_id, stage)
	)`,
}

// Apply runs every schema statement in order. Statements are idempotent so
// Apply is safe on every boot.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
