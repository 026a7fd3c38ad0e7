package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if needed.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_players", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_seasons", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_tournaments", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_config_tables", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

const migration001Up = `
-- Players and per-mode aggregate counters. Every mutable row carries a
-- version column for the optimistic write gate and a deleted flag instead of
-- hard deletes.

CREATE TABLE IF NOT EXISTS players (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    full_name VARCHAR(200) NOT NULL DEFAULT '',
    email VARCHAR(200),
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT players_display_name_key UNIQUE (display_name),
    CONSTRAINT valid_version CHECK (version >= 1)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_players_email ON players(email) WHERE email IS NOT NULL;

CREATE TABLE IF NOT EXISTS player_aggregates (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    is_sanma BOOLEAN NOT NULL DEFAULT FALSE,

    total_games INTEGER NOT NULL DEFAULT 0,
    hanchan_first INTEGER NOT NULL DEFAULT 0,
    hanchan_second INTEGER NOT NULL DEFAULT 0,
    hanchan_third INTEGER NOT NULL DEFAULT 0,
    hanchan_fourth INTEGER NOT NULL DEFAULT 0,
    tonpuusen_first INTEGER NOT NULL DEFAULT 0,
    tonpuusen_second INTEGER NOT NULL DEFAULT 0,
    tonpuusen_third INTEGER NOT NULL DEFAULT 0,
    tonpuusen_fourth INTEGER NOT NULL DEFAULT 0,
    dan_points INTEGER NOT NULL DEFAULT 0,
    rate_points DOUBLE PRECISION NOT NULL DEFAULT 1500,
    max_rate DOUBLE PRECISION NOT NULL DEFAULT 1500,

    season_points INTEGER NOT NULL DEFAULT 0,
    season_total_games INTEGER NOT NULL DEFAULT 0,
    season_average_position DOUBLE PRECISION NOT NULL DEFAULT 0,
    season_hanchan_first INTEGER NOT NULL DEFAULT 0,
    season_hanchan_second INTEGER NOT NULL DEFAULT 0,
    season_hanchan_third INTEGER NOT NULL DEFAULT 0,
    season_hanchan_fourth INTEGER NOT NULL DEFAULT 0,
    season_tonpuusen_first INTEGER NOT NULL DEFAULT 0,
    season_tonpuusen_second INTEGER NOT NULL DEFAULT 0,
    season_tonpuusen_third INTEGER NOT NULL DEFAULT 0,
    season_tonpuusen_fourth INTEGER NOT NULL DEFAULT 0,

    last_game_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT player_aggregates_player_mode_key UNIQUE (player_id, is_sanma)
);

CREATE INDEX IF NOT EXISTS idx_aggregates_dan ON player_aggregates(is_sanma, dan_points DESC) WHERE NOT deleted;
CREATE INDEX IF NOT EXISTS idx_aggregates_season ON player_aggregates(is_sanma, season_points DESC) WHERE NOT deleted;
CREATE INDEX IF NOT EXISTS idx_aggregates_last_game ON player_aggregates(last_game_at);
`

const migration001Down = `
DROP TABLE IF EXISTS player_aggregates;
DROP TABLE IF EXISTS players;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS seasons (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    status VARCHAR(20) NOT NULL DEFAULT 'open',
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    end_date TIMESTAMP WITH TIME ZONE,
    closed_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_season_status CHECK (status IN ('open', 'closed'))
);

-- Frozen standings rows, written once at season close.
CREATE TABLE IF NOT EXISTS season_results (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    season_id BIGINT NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
    player_id BIGINT NOT NULL REFERENCES players(id),
    is_sanma BOOLEAN NOT NULL DEFAULT FALSE,
    position INTEGER NOT NULL,
    points INTEGER NOT NULL,
    total_games INTEGER NOT NULL,
    average_position DOUBLE PRECISION NOT NULL DEFAULT 0,
    hanchan_first INTEGER NOT NULL DEFAULT 0,
    hanchan_second INTEGER NOT NULL DEFAULT 0,
    hanchan_third INTEGER NOT NULL DEFAULT 0,
    hanchan_fourth INTEGER NOT NULL DEFAULT 0,
    tonpuusen_first INTEGER NOT NULL DEFAULT 0,
    tonpuusen_second INTEGER NOT NULL DEFAULT 0,
    tonpuusen_third INTEGER NOT NULL DEFAULT 0,
    tonpuusen_fourth INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT season_results_unique UNIQUE (season_id, player_id, is_sanma)
);

CREATE INDEX IF NOT EXISTS idx_season_results_season ON season_results(season_id, is_sanma, position);
`

const migration002Down = `
DROP TABLE IF EXISTS season_results;
DROP TABLE IF EXISTS seasons;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS tournaments (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name VARCHAR(150) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
    is_sanma BOOLEAN NOT NULL DEFAULT FALSE,
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    end_date TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_tournament_status CHECK (status IN ('scheduled', 'active', 'completed'))
);

-- Per-session point entries; a player accumulates several per tournament.
-- Only 'season' records contribute to finalization standings; 'bonus' rows
-- are prize adjustments kept out of the standings.
CREATE TABLE IF NOT EXISTS tournament_point_records (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    tournament_id BIGINT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
    player_id BIGINT NOT NULL REFERENCES players(id),
    kind VARCHAR(20) NOT NULL DEFAULT 'season',
    points DOUBLE PRECISION NOT NULL,
    games_played INTEGER NOT NULL DEFAULT 1,
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_point_kind CHECK (kind IN ('season', 'bonus'))
);

CREATE INDEX IF NOT EXISTS idx_point_records_tournament ON tournament_point_records(tournament_id) WHERE NOT deleted;

-- Frozen standings rows, written once at finalization.
CREATE TABLE IF NOT EXISTS tournament_results (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    tournament_id BIGINT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
    player_id BIGINT NOT NULL REFERENCES players(id),
    position INTEGER NOT NULL,
    total_points DOUBLE PRECISION NOT NULL,
    games_played INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT tournament_results_unique UNIQUE (tournament_id, player_id)
);

CREATE INDEX IF NOT EXISTS idx_tournament_results ON tournament_results(tournament_id, position);
`

const migration003Down = `
DROP TABLE IF EXISTS tournament_results;
DROP TABLE IF EXISTS tournament_point_records;
DROP TABLE IF EXISTS tournaments;
`

const migration004Up = `
-- Ranking configuration: tier thresholds and rate-adjustment rules. Edited
-- rarely through the admin surface, cached aggressively, so both tables sit
-- under the same version gate as everything else.

CREATE TABLE IF NOT EXISTS tiers (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE,
    min_points INTEGER NOT NULL,
    max_points INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_tier_band CHECK (min_points <= max_points)
);

CREATE TABLE IF NOT EXISTS rate_rules (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    max_games INTEGER NOT NULL,
    weight DOUBLE PRECISION NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rate_weight CHECK (weight > 0)
);
`

const migration004Down = `
DROP TABLE IF EXISTS rate_rules;
DROP TABLE IF EXISTS tiers;
`
