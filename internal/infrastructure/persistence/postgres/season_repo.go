package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/camr-club/ranking-hub/internal/application/command"
	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/internal/domain/season"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

// SeasonRepository implements command.SeasonUnitOfWork: it runs the whole
// season-close body inside one database transaction with the affected rows
// locked.
type SeasonRepository struct {
	conn *Connection
}

// NewSeasonRepository creates a new season repository.
func NewSeasonRepository(conn *Connection) *SeasonRepository {
	return &SeasonRepository{conn: conn}
}

// WithinTx runs fn inside a transaction exposing the season-close surface.
func (r *SeasonRepository) WithinTx(ctx context.Context, fn func(tx command.SeasonTx) error) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&seasonTx{tx: tx})
	})
}

type seasonTx struct {
	tx pgx.Tx
}

func (t *seasonTx) GetSeasonForUpdate(ctx context.Context, id int64) (*season.Season, error) {
	var s season.Season
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, status, start_date, end_date, closed_at, version, created_at, updated_at
		FROM seasons
		WHERE id = $1 AND NOT deleted
		FOR UPDATE`, id,
	).Scan(&s.ID, &s.Name, &s.Status, &s.StartDate, &s.EndDate, &s.ClosedAt, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrSeasonNotFound
	}
	if err != nil {
		return nil, shared.WrapError("season", "GetForUpdate", shared.ErrStoreFailure, "query failed", err)
	}
	return &s, nil
}

func (t *seasonTx) ListAggregatesForUpdate(ctx context.Context) ([]*player.Aggregate, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT`+aggregateColumns+`
		FROM player_aggregates a
		JOIN players p ON p.id = a.player_id
		WHERE NOT a.deleted
		FOR UPDATE OF a`)
	if err != nil {
		return nil, shared.WrapError("season", "ListAggregatesForUpdate", shared.ErrStoreFailure, "query failed", err)
	}
	defer rows.Close()

	var aggregates []*player.Aggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, shared.WrapError("season", "ListAggregatesForUpdate", shared.ErrStoreFailure, "scan failed", err)
		}
		aggregates = append(aggregates, a)
	}
	return aggregates, rows.Err()
}

func (t *seasonTx) InsertSeasonResults(ctx context.Context, results []*season.Result) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(`
			INSERT INTO season_results (
				season_id, player_id, is_sanma, position, points, total_games, average_position,
				hanchan_first, hanchan_second, hanchan_third, hanchan_fourth,
				tonpuusen_first, tonpuusen_second, tonpuusen_third, tonpuusen_fourth
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			res.SeasonID, res.PlayerID, res.IsSanma, res.Position, res.Points, res.TotalGames, res.AveragePosition,
			res.Hanchan.First, res.Hanchan.Second, res.Hanchan.Third, res.Hanchan.Fourth,
			res.Tonpuusen.First, res.Tonpuusen.Second, res.Tonpuusen.Third, res.Tonpuusen.Fourth,
		)
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return shared.WrapError("season", "InsertResults", shared.ErrStoreFailure, "insert failed", err)
		}
	}
	return nil
}

func (t *seasonTx) ResetSeasonCounters(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE player_aggregates SET
			season_points = 0,
			season_total_games = 0,
			season_average_position = 0,
			season_hanchan_first = 0, season_hanchan_second = 0,
			season_hanchan_third = 0, season_hanchan_fourth = 0,
			season_tonpuusen_first = 0, season_tonpuusen_second = 0,
			season_tonpuusen_third = 0, season_tonpuusen_fourth = 0,
			version = version + 1,
			updated_at = NOW()
		WHERE NOT deleted`)
	if err != nil {
		return shared.WrapError("season", "ResetCounters", shared.ErrStoreFailure, "reset failed", err)
	}
	return nil
}

func (t *seasonTx) OpenSeason(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE seasons SET
			status = $1, closed_at = NULL,
			version = version + 1, updated_at = NOW()
		WHERE id = $2 AND NOT deleted`,
		season.StatusOpen, id)
	if err != nil {
		return shared.WrapError("season", "Open", shared.ErrStoreFailure, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSeasonNotFound
	}
	return nil
}

func (t *seasonTx) UpdateSeason(ctx context.Context, s *season.Season) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE seasons SET
			status = $1, end_date = $2, closed_at = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`,
		s.Status, s.EndDate, s.ClosedAt, s.ID, s.Version)
	if err != nil {
		return shared.WrapError("season", "Update", shared.ErrStoreFailure, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		// The row is locked by GetSeasonForUpdate, so a mismatch here means
		// the caller's copy is stale.
		return shared.NewDomainError("season", "Update", shared.ErrOptimisticLock, "season was modified concurrently")
	}
	return nil
}
