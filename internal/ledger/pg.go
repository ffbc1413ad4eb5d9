package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the production ledger, one row per player in sizzle.players
// plus an append-only sizzle.audit_entries journal.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema bootstraps the tables. Safe to call on every start.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS sizzle;

		CREATE TABLE IF NOT EXISTS sizzle.players (
			player_id            TEXT PRIMARY KEY,
			display_name         TEXT NOT NULL DEFAULT '',
			balance_micros       BIGINT NOT NULL,
			rate_per_hour_micros BIGINT NOT NULL,
			guests_per_hour      BIGINT NOT NULL,
			total_earned_micros  BIGINT NOT NULL,
			last_settled_at      TIMESTAMPTZ NOT NULL,
			upgrades             JSONB NOT NULL DEFAULT '{}'::jsonb,
			achievements         JSONB NOT NULL DEFAULT '{}'::jsonb,
			version              BIGINT NOT NULL DEFAULT 1,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS sizzle.audit_entries (
			id           BIGSERIAL PRIMARY KEY,
			tx_group_id  UUID NOT NULL,
			player_id    TEXT NOT NULL,
			action       TEXT NOT NULL,
			delta_micros BIGINT NOT NULL,
			metadata     JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_audit_entries_player
			ON sizzle.audit_entries (player_id, id);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context, playerID string) (PlayerState, error) {
	var st PlayerState
	var upgradesRaw, achievementsRaw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT player_id, display_name, balance_micros, rate_per_hour_micros,
		       guests_per_hour, total_earned_micros, last_settled_at,
		       upgrades, achievements, version, created_at
		FROM sizzle.players
		WHERE player_id = $1
	`, playerID).Scan(
		&st.PlayerID, &st.DisplayName, &st.BalanceMicros, &st.RatePerHourMicros,
		&st.GuestsPerHour, &st.TotalEarnedMicros, &st.LastSettledAt,
		&upgradesRaw, &achievementsRaw, &st.Version, &st.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return PlayerState{}, ErrNotFound
		}
		return PlayerState{}, err
	}
	st.Upgrades = make(map[string]int32)
	if err := json.Unmarshal(upgradesRaw, &st.Upgrades); err != nil {
		return PlayerState{}, fmt.Errorf("decode upgrades for %s: %w", playerID, err)
	}
	st.Achievements = make(map[string]time.Time)
	if err := json.Unmarshal(achievementsRaw, &st.Achievements); err != nil {
		return PlayerState{}, fmt.Errorf("decode achievements for %s: %w", playerID, err)
	}
	return st, nil
}

func (s *PGStore) Create(ctx context.Context, state PlayerState) (bool, error) {
	upgradesRaw, achievementsRaw, err := encodeMaps(state)
	if err != nil {
		return false, err
	}
	cmd, err := s.pool.Exec(ctx, `
		INSERT INTO sizzle.players
		    (player_id, display_name, balance_micros, rate_per_hour_micros,
		     guests_per_hour, total_earned_micros, last_settled_at,
		     upgrades, achievements, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, 1)
		ON CONFLICT (player_id) DO NOTHING
	`, state.PlayerID, state.DisplayName, state.BalanceMicros, state.RatePerHourMicros,
		state.GuestsPerHour, state.TotalEarnedMicros, state.LastSettledAt,
		upgradesRaw, achievementsRaw)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *PGStore) Save(ctx context.Context, state PlayerState, expectedVersion int64, audit ...AuditEntry) error {
	upgradesRaw, achievementsRaw, err := encodeMaps(state)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		UPDATE sizzle.players
		SET display_name = $2,
		    balance_micros = $3,
		    rate_per_hour_micros = $4,
		    guests_per_hour = $5,
		    total_earned_micros = $6,
		    last_settled_at = $7,
		    upgrades = $8::jsonb,
		    achievements = $9::jsonb,
		    version = version + 1
		WHERE player_id = $1 AND version = $10
	`, state.PlayerID, state.DisplayName, state.BalanceMicros, state.RatePerHourMicros,
		state.GuestsPerHour, state.TotalEarnedMicros, state.LastSettledAt,
		upgradesRaw, achievementsRaw, expectedVersion)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM sizzle.players WHERE player_id = $1)
		`, state.PlayerID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	for _, entry := range audit {
		txGroup := entry.TxGroupID
		if txGroup == "" {
			txGroup = uuid.NewString()
		}
		meta, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sizzle.audit_entries (tx_group_id, player_id, action, delta_micros, metadata)
			VALUES ($1, $2, $3, $4, $5::jsonb)
		`, txGroup, state.PlayerID, entry.Action, entry.DeltaMicros, string(meta)); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PGStore) ForEach(ctx context.Context, fn func(PlayerState) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT player_id, display_name, balance_micros, rate_per_hour_micros,
		       guests_per_hour, total_earned_micros, last_settled_at,
		       upgrades, achievements, version, created_at
		FROM sizzle.players
		ORDER BY player_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var st PlayerState
		var upgradesRaw, achievementsRaw []byte
		if err := rows.Scan(
			&st.PlayerID, &st.DisplayName, &st.BalanceMicros, &st.RatePerHourMicros,
			&st.GuestsPerHour, &st.TotalEarnedMicros, &st.LastSettledAt,
			&upgradesRaw, &achievementsRaw, &st.Version, &st.CreatedAt,
		); err != nil {
			return err
		}
		st.Upgrades = make(map[string]int32)
		if err := json.Unmarshal(upgradesRaw, &st.Upgrades); err != nil {
			return fmt.Errorf("decode upgrades for %s: %w", st.PlayerID, err)
		}
		st.Achievements = make(map[string]time.Time)
		if err := json.Unmarshal(achievementsRaw, &st.Achievements); err != nil {
			return fmt.Errorf("decode achievements for %s: %w", st.PlayerID, err)
		}
		if err := fn(st); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, playerID string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM sizzle.players WHERE player_id = $1`, playerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeMaps(state PlayerState) (upgrades, achievements []byte, err error) {
	upgrades, err = json.Marshal(state.Upgrades)
	if err != nil {
		return nil, nil, fmt.Errorf("encode upgrades: %w", err)
	}
	achievements, err = json.Marshal(state.Achievements)
	if err != nil {
		return nil, nil, fmt.Errorf("encode achievements: %w", err)
	}
	return upgrades, achievements, nil
}
