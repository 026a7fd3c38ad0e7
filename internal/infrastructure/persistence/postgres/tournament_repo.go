package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/camr-club/ranking-hub/internal/application/command"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
	"github.com/camr-club/ranking-hub/internal/domain/tournament"
)

// TournamentRepository implements command.TournamentUnitOfWork.
type TournamentRepository struct {
	conn *Connection
}

// NewTournamentRepository creates a new tournament repository.
func NewTournamentRepository(conn *Connection) *TournamentRepository {
	return &TournamentRepository{conn: conn}
}

// WithinTx runs fn inside a transaction exposing the finalization surface.
func (r *TournamentRepository) WithinTx(ctx context.Context, fn func(tx command.TournamentTx) error) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&tournamentTx{tx: tx})
	})
}

type tournamentTx struct {
	tx pgx.Tx
}

func (t *tournamentTx) GetTournamentForUpdate(ctx context.Context, id int64) (*tournament.Tournament, error) {
	var tr tournament.Tournament
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, status, is_sanma, start_date, end_date, completed_at, version, created_at, updated_at
		FROM tournaments
		WHERE id = $1 AND NOT deleted
		FOR UPDATE`, id,
	).Scan(&tr.ID, &tr.Name, &tr.Status, &tr.IsSanma, &tr.StartDate, &tr.EndDate, &tr.CompletedAt,
		&tr.Version, &tr.CreatedAt, &tr.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrTournamentNotFound
	}
	if err != nil {
		return nil, shared.WrapError("tournament", "GetForUpdate", shared.ErrStoreFailure, "query failed", err)
	}
	return &tr, nil
}

// ListPointRecords loads only season-kind records: bonus adjustments never
// contribute to standings.
func (t *tournamentTx) ListPointRecords(ctx context.Context, tournamentID int64) ([]*tournament.PointRecord, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, tournament_id, player_id, kind, points, games_played, recorded_at
		FROM tournament_point_records
		WHERE tournament_id = $1 AND kind = $2 AND NOT deleted`,
		tournamentID, tournament.PointKindSeason)
	if err != nil {
		return nil, shared.WrapError("tournament", "ListPointRecords", shared.ErrStoreFailure, "query failed", err)
	}
	defer rows.Close()

	var records []*tournament.PointRecord
	for rows.Next() {
		var rec tournament.PointRecord
		if err := rows.Scan(&rec.ID, &rec.TournamentID, &rec.PlayerID, &rec.Kind, &rec.Points, &rec.GamesPlayed, &rec.RecordedAt); err != nil {
			return nil, shared.WrapError("tournament", "ListPointRecords", shared.ErrStoreFailure, "scan failed", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (t *tournamentTx) DeleteTournamentResults(ctx context.Context, tournamentID int64) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM tournament_results
		WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return shared.WrapError("tournament", "DeleteResults", shared.ErrStoreFailure, "delete failed", err)
	}
	return nil
}

func (t *tournamentTx) InsertTournamentResults(ctx context.Context, results []*tournament.Result) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(`
			INSERT INTO tournament_results (tournament_id, player_id, position, total_points, games_played)
			VALUES ($1, $2, $3, $4, $5)`,
			res.TournamentID, res.PlayerID, res.Position, res.TotalPoints, res.GamesPlayed)
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return shared.WrapError("tournament", "InsertResults", shared.ErrStoreFailure, "insert failed", err)
		}
	}
	return nil
}

func (t *tournamentTx) UpdateTournament(ctx context.Context, tr *tournament.Tournament) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE tournaments SET
			status = $1, end_date = $2, completed_at = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`,
		tr.Status, tr.EndDate, tr.CompletedAt, tr.ID, tr.Version)
	if err != nil {
		return shared.WrapError("tournament", "Update", shared.ErrStoreFailure, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("tournament", "Update", shared.ErrOptimisticLock, "tournament was modified concurrently")
	}
	return nil
}
