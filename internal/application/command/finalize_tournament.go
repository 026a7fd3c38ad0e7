package command

import (
	"context"

	"github.com/camr-club/ranking-hub/internal/domain/tournament"
	"github.com/camr-club/ranking-hub/pkg/logger"
	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

// TournamentTx is the transactional surface tournament finalization runs
// against.
type TournamentTx interface {
	// GetTournamentForUpdate loads and row-locks the tournament.
	GetTournamentForUpdate(ctx context.Context, id int64) (*tournament.Tournament, error)

	// ListPointRecords loads every point record of the tournament.
	ListPointRecords(ctx context.Context, tournamentID int64) ([]*tournament.PointRecord, error)

	// DeleteTournamentResults drops any previously frozen standings rows so a
	// re-finalization replaces them instead of duplicating.
	DeleteTournamentResults(ctx context.Context, tournamentID int64) error

	// InsertTournamentResults writes the frozen standings rows.
	InsertTournamentResults(ctx context.Context, results []*tournament.Result) error

	// UpdateTournament persists the completed tournament entity.
	UpdateTournament(ctx context.Context, t *tournament.Tournament) error
}

// TournamentUnitOfWork opens a transaction around a finalization body.
type TournamentUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx TournamentTx) error) error
}

// FinalizeTournamentHandler executes the atomic tournament finalization.
type FinalizeTournamentHandler struct {
	uow    TournamentUnitOfWork
	caches Invalidator
	log    *logger.Logger
	clock  timeutil.Clock
}

// NewFinalizeTournamentHandler builds the handler.
func NewFinalizeTournamentHandler(uow TournamentUnitOfWork, caches Invalidator, log *logger.Logger, clock timeutil.Clock) *FinalizeTournamentHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &FinalizeTournamentHandler{
		uow:    uow,
		caches: caches,
		log:    log.With(logger.Component("finalize_tournament")),
		clock:  clock,
	}
}

// FinalizeTournamentResult summarizes a committed finalization.
type FinalizeTournamentResult struct {
	TournamentID int64                `json:"tournament_id"`
	Standings    []*tournament.Result `json:"standings"`
}

// Handle finalizes one tournament: compute standings from its point records
// and freeze them as result rows. A tournament with zero contributing point
// records fails fast before any write. Re-finalizing replaces the previous
// standings atomically. A failure anywhere rolls the whole finalization back;
// the ranking caches are invalidated only after the commit.
func (h *FinalizeTournamentHandler) Handle(ctx context.Context, tournamentID int64) (*FinalizeTournamentResult, error) {
	var standings []*tournament.Result

	err := h.uow.WithinTx(ctx, func(tx TournamentTx) error {
		t, err := tx.GetTournamentForUpdate(ctx, tournamentID)
		if err != nil {
			return err
		}

		records, err := tx.ListPointRecords(ctx, tournamentID)
		if err != nil {
			return err
		}
		standings, err = tournament.ComputeStandings(tournamentID, records)
		if err != nil {
			return err
		}

		t.Complete(h.clock.Now())
		if err := tx.DeleteTournamentResults(ctx, tournamentID); err != nil {
			return err
		}
		if err := tx.InsertTournamentResults(ctx, standings); err != nil {
			return err
		}
		return tx.UpdateTournament(ctx, t)
	})
	if err != nil {
		h.log.Error("tournament finalization failed", logger.TournamentID(tournamentID), logger.Err(err))
		return nil, err
	}

	h.log.Info("tournament finalized",
		logger.TournamentID(tournamentID),
		logger.Int("standings_rows", len(standings)))
	h.caches.InvalidateRanking(ctx)
	return &FinalizeTournamentResult{TournamentID: tournamentID, Standings: standings}, nil
}
