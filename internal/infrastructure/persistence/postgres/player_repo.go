package postgres

import (
	"context"

	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

// PlayerRepository implements player.Repository against the durable store.
type PlayerRepository struct {
	conn *Connection
}

// NewPlayerRepository creates a new player repository.
func NewPlayerRepository(conn *Connection) *PlayerRepository {
	return &PlayerRepository{conn: conn}
}

const aggregateColumns = `
	a.id, a.player_id, a.is_sanma, p.display_name,
	a.total_games,
	a.hanchan_first, a.hanchan_second, a.hanchan_third, a.hanchan_fourth,
	a.tonpuusen_first, a.tonpuusen_second, a.tonpuusen_third, a.tonpuusen_fourth,
	a.dan_points, a.rate_points, a.max_rate,
	a.season_points, a.season_total_games, a.season_average_position,
	a.season_hanchan_first, a.season_hanchan_second, a.season_hanchan_third, a.season_hanchan_fourth,
	a.season_tonpuusen_first, a.season_tonpuusen_second, a.season_tonpuusen_third, a.season_tonpuusen_fourth,
	a.last_game_at, a.version, a.deleted, a.updated_at`

// ListAggregates returns all non-deleted aggregates for one mode with the
// player's display name joined in.
func (r *PlayerRepository) ListAggregates(ctx context.Context, sanma bool) ([]*player.Aggregate, error) {
	query := `
		SELECT` + aggregateColumns + `
		FROM player_aggregates a
		JOIN players p ON p.id = a.player_id
		WHERE a.is_sanma = $1 AND NOT a.deleted AND NOT p.deleted`

	rows, err := r.conn.Query(ctx, query, sanma)
	if err != nil {
		return nil, shared.WrapError("player", "ListAggregates", shared.ErrStoreFailure, "query failed", err)
	}
	defer rows.Close()

	var aggregates []*player.Aggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, shared.WrapError("player", "ListAggregates", shared.ErrStoreFailure, "scan failed", err)
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

// GetAggregate returns a single aggregate row by id.
func (r *PlayerRepository) GetAggregate(ctx context.Context, id int64) (*player.Aggregate, error) {
	query := `
		SELECT` + aggregateColumns + `
		FROM player_aggregates a
		JOIN players p ON p.id = a.player_id
		WHERE a.id = $1`

	a, err := scanAggregate(r.conn.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.ErrAggregateNotFound
	}
	if err != nil {
		return nil, shared.WrapError("player", "GetAggregate", shared.ErrStoreFailure, "query failed", err)
	}
	return a, nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAggregate(row rowScanner) (*player.Aggregate, error) {
	var a player.Aggregate
	err := row.Scan(
		&a.ID, &a.PlayerID, &a.IsSanma, &a.DisplayName,
		&a.TotalGames,
		&a.Hanchan.First, &a.Hanchan.Second, &a.Hanchan.Third, &a.Hanchan.Fourth,
		&a.Tonpuusen.First, &a.Tonpuusen.Second, &a.Tonpuusen.Third, &a.Tonpuusen.Fourth,
		&a.DanPoints, &a.RatePoints, &a.MaxRate,
		&a.SeasonPoints, &a.SeasonTotalGames, &a.SeasonAveragePosition,
		&a.SeasonHanchan.First, &a.SeasonHanchan.Second, &a.SeasonHanchan.Third, &a.SeasonHanchan.Fourth,
		&a.SeasonTonpuusen.First, &a.SeasonTonpuusen.Second, &a.SeasonTonpuusen.Third, &a.SeasonTonpuusen.Fourth,
		&a.LastGameAt, &a.Version, &a.Deleted, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
