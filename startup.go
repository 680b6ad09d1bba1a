package main

import (
	"context"
	"database/sql"
)

const startupAdvisoryLockID int64 = 917340258

// acquireStartupLock takes a session-scoped pg advisory lock so only one
// server instance runs schema migration at a time. The connection is kept
// open for the life of the process; closing it releases the lock.
func acquireStartupLock(ctx context.Context, db *sql.DB) (*sql.Conn, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, startupAdvisoryLockID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			creator TEXT NOT NULL,
			status TEXT NOT NULL,
			entry_fee BIGINT NOT NULL,
			max_players INT NOT NULL,
			players TEXT[] NOT NULL DEFAULT '{}',
			ready_count INT NOT NULL DEFAULT 0,
			pool BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			name TEXT NOT NULL,
			phase TEXT NOT NULL,
			round_id BIGINT NOT NULL DEFAULT 0,
			players TEXT[] NOT NULL DEFAULT '{}',
			bomb_holder TEXT NOT NULL DEFAULT '',
			hold_started_at BIGINT NOT NULL DEFAULT 0,
			pool_value BIGINT NOT NULL DEFAULT 0,
			max_hold_time_ms BIGINT NOT NULL,
			explosion_rate_bps BIGINT NOT NULL,
			reward_divisor BIGINT NOT NULL,
			danger_zone_bps BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			seq BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			room_id TEXT,
			game_id TEXT,
			payload JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settlements (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			game_id TEXT NOT NULL,
			round_id BIGINT NOT NULL,
			dead_player TEXT,
			survivors TEXT[] NOT NULL DEFAULT '{}',
			total_payout BIGINT NOT NULL,
			settled_at TIMESTAMPTZ NOT NULL,
			UNIQUE (game_id, round_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payout_credits (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			game_id TEXT NOT NULL,
			round_id BIGINT NOT NULL,
			player_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS claims (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
