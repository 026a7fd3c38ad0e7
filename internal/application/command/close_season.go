package command

import (
	"context"

	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/internal/domain/season"
	"github.com/camr-club/ranking-hub/pkg/logger"
	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

// SeasonTx is the transactional surface season close runs against. All five
// calls happen inside one database transaction; any error rolls the whole
// close back.
type SeasonTx interface {
	// GetSeasonForUpdate loads and row-locks the season.
	GetSeasonForUpdate(ctx context.Context, id int64) (*season.Season, error)

	// ListAggregatesForUpdate loads and row-locks every aggregate row, both
	// modes, including rows without season activity.
	ListAggregatesForUpdate(ctx context.Context) ([]*player.Aggregate, error)

	// InsertSeasonResults writes the frozen standings rows.
	InsertSeasonResults(ctx context.Context, results []*season.Result) error

	// ResetSeasonCounters zeroes the season window on every aggregate row.
	ResetSeasonCounters(ctx context.Context) error

	// UpdateSeason persists the closed season entity.
	UpdateSeason(ctx context.Context, s *season.Season) error

	// OpenSeason flips the successor season to open in the same transaction.
	OpenSeason(ctx context.Context, id int64) error
}

// SeasonUnitOfWork opens a transaction around a season-close body.
type SeasonUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx SeasonTx) error) error
}

// CloseSeasonHandler executes the atomic season-close workflow.
type CloseSeasonHandler struct {
	uow    SeasonUnitOfWork
	caches Invalidator
	log    *logger.Logger
	clock  timeutil.Clock
}

// NewCloseSeasonHandler builds the handler.
func NewCloseSeasonHandler(uow SeasonUnitOfWork, caches Invalidator, log *logger.Logger, clock timeutil.Clock) *CloseSeasonHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &CloseSeasonHandler{
		uow:    uow,
		caches: caches,
		log:    log.With(logger.Component("close_season")),
		clock:  clock,
	}
}

// CloseSeasonResult summarizes a committed close.
type CloseSeasonResult struct {
	SeasonID       int64 `json:"season_id"`
	SnapshotRows   int   `json:"snapshot_rows"`
	AggregateRows  int   `json:"aggregate_rows"`
	OpenedSeasonID int64 `json:"opened_season_id,omitempty"`
}

// Handle closes one season: snapshot the standings of every aggregate with
// season activity, zero the season counters on all aggregates, and mark the
// season closed. When openSeasonID is non-zero the successor season is opened
// in the same transaction. Either every step commits or none does. The
// ranking caches are invalidated only after the commit.
func (h *CloseSeasonHandler) Handle(ctx context.Context, seasonID, openSeasonID int64) (*CloseSeasonResult, error) {
	var result CloseSeasonResult

	err := h.uow.WithinTx(ctx, func(tx SeasonTx) error {
		s, err := tx.GetSeasonForUpdate(ctx, seasonID)
		if err != nil {
			return err
		}
		if err := s.Close(h.clock.Now()); err != nil {
			return err
		}

		aggregates, err := tx.ListAggregatesForUpdate(ctx)
		if err != nil {
			return err
		}

		results := season.BuildResults(seasonID, aggregates)
		if err := tx.InsertSeasonResults(ctx, results); err != nil {
			return err
		}
		if err := tx.ResetSeasonCounters(ctx); err != nil {
			return err
		}
		if err := tx.UpdateSeason(ctx, s); err != nil {
			return err
		}
		if openSeasonID != 0 {
			if err := tx.OpenSeason(ctx, openSeasonID); err != nil {
				return err
			}
		}

		result = CloseSeasonResult{
			SeasonID:       seasonID,
			SnapshotRows:   len(results),
			AggregateRows:  len(aggregates),
			OpenedSeasonID: openSeasonID,
		}
		return nil
	})
	if err != nil {
		h.log.Error("season close failed", logger.SeasonID(seasonID), logger.Err(err))
		return nil, err
	}

	h.log.Info("season closed",
		logger.SeasonID(seasonID),
		logger.Int("snapshot_rows", result.SnapshotRows),
		logger.Int("aggregate_rows", result.AggregateRows))
	h.caches.InvalidateRanking(ctx)
	return &result, nil
}
