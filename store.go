package main

import (
	"database/sql"
	"encoding/json"
	"log"

	"github.com/lib/pq"
)

// Store is the write-behind audit layer. The in-memory hub stays
// authoritative; snapshots and ledger rows are best effort and failures are
// logged, never surfaced to the state machines. A nil Store (no POSTGRES_URL)
// turns every call into a no-op so tests and local play need no database.

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

func (s *Store) SaveRoomSnapshot(view RoomView) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.Exec(`
		INSERT INTO rooms (
			room_id,
			creator,
			status,
			entry_fee,
			max_players,
			players,
			ready_count,
			pool,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (room_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			players = EXCLUDED.players,
			ready_count = EXCLUDED.ready_count,
			pool = EXCLUDED.pool,
			updated_at = NOW()
	`,
		view.ID,
		view.Creator,
		view.Status,
		int64(view.EntryFee),
		view.MaxPlayers,
		pq.Array(view.Players),
		view.ReadyCount,
		int64(view.Pool),
	)
	if err != nil {
		log.Println("room snapshot persist error:", err)
	}
}

func (s *Store) SaveGameSnapshot(view GameView) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.Exec(`
		INSERT INTO games (
			game_id,
			room_id,
			name,
			phase,
			round_id,
			players,
			bomb_holder,
			hold_started_at,
			pool_value,
			max_hold_time_ms,
			explosion_rate_bps,
			reward_divisor,
			danger_zone_bps,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (game_id)
		DO UPDATE SET
			phase = EXCLUDED.phase,
			round_id = EXCLUDED.round_id,
			players = EXCLUDED.players,
			bomb_holder = EXCLUDED.bomb_holder,
			hold_started_at = EXCLUDED.hold_started_at,
			pool_value = EXCLUDED.pool_value,
			max_hold_time_ms = EXCLUDED.max_hold_time_ms,
			explosion_rate_bps = EXCLUDED.explosion_rate_bps,
			reward_divisor = EXCLUDED.reward_divisor,
			danger_zone_bps = EXCLUDED.danger_zone_bps,
			updated_at = NOW()
	`,
		view.ID,
		view.RoomID,
		view.Name,
		view.Phase,
		int64(view.RoundID),
		pq.Array(view.Players),
		view.BombHolder,
		view.HoldStartedAt,
		int64(view.PoolValue),
		view.Tuning.MaxHoldTimeMs,
		int64(view.Tuning.ExplosionRateBps),
		int64(view.Tuning.RewardDivisor),
		int64(view.Tuning.DangerZoneBps),
	)
	if err != nil {
		log.Println("game snapshot persist error:", err)
	}
}

func (s *Store) AppendEvent(ev Event) {
	if s == nil || s.db == nil {
		return
	}
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = s.db.Exec(`
		INSERT INTO events (event_id, seq, event_type, room_id, game_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.ID, int64(ev.Seq), ev.Type, ev.RoomID, ev.GameID, payload, ev.At)
	if err != nil {
		log.Println("event persist error:", err)
	}
}

// RecordSettlement writes the payout obligations of a settled round. The
// idempotent insert mirrors the at-most-once settlement contract: a replayed
// round id changes nothing.
func (s *Store) RecordSettlement(intent *SettlementIntent) {
	if s == nil || s.db == nil {
		return
	}
	addrs, amounts := intent.payoutVectors()

	tx, err := s.db.Begin()
	if err != nil {
		log.Println("settlement persist error:", err)
		return
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO settlements (room_id, game_id, round_id, dead_player, survivors, total_payout, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (game_id, round_id) DO NOTHING
	`, intent.RoomID, intent.GameID, int64(intent.RoundID), intent.DeadPlayer,
		pq.Array(intent.Survivors), int64(intent.totalPayout()))
	if err != nil {
		log.Println("settlement persist error:", err)
		return
	}
	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		_ = tx.Commit()
		return
	}

	for i, addr := range addrs {
		if _, err := tx.Exec(`
			INSERT INTO payout_credits (room_id, game_id, round_id, player_id, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, intent.RoomID, intent.GameID, int64(intent.RoundID), addr, int64(amounts[i])); err != nil {
			log.Println("payout credit persist error:", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		log.Println("settlement persist error:", err)
	}
}

// SaveHubConfig / LoadHubConfig keep the operator-adjustable hub settings
// across restarts in a single settings row.
func (s *Store) SaveHubConfig(config HubConfig) {
	if s == nil || s.db == nil {
		return
	}
	payload, err := json.Marshal(config)
	if err != nil {
		return
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES ('hub_config', $1, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, payload)
	if err != nil {
		log.Println("settings persist error:", err)
	}
}

func (s *Store) LoadHubConfig() (HubConfig, bool) {
	if s == nil || s.db == nil {
		return HubConfig{}, false
	}
	var payload []byte
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'hub_config'`).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("settings load error:", err)
		}
		return HubConfig{}, false
	}
	var config HubConfig
	if err := json.Unmarshal(payload, &config); err != nil {
		log.Println("settings load error:", err)
		return HubConfig{}, false
	}
	return config, true
}

func (s *Store) RecordPayout(roomID, player string, amount uint64) {
	if s == nil || s.db == nil {
		return
	}
	_, err := s.db.Exec(`
		INSERT INTO claims (room_id, player_id, amount, claimed_at)
		VALUES ($1, $2, $3, NOW())
	`, roomID, player, int64(amount))
	if err != nil {
		log.Println("claim persist error:", err)
	}
}
