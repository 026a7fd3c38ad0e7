package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/internal/domain/season"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
	"github.com/camr-club/ranking-hub/pkg/logger"
)

// seasonState is the durable state behind the fake unit of work.
type seasonState struct {
	seasons    map[int64]*season.Season
	aggregates []*player.Aggregate
	results    []*season.Result
}

// fakeSeasonUow stages every mutation and applies it only when the body
// returns nil, mimicking transaction rollback.
type fakeSeasonUow struct {
	state     *seasonState
	insertErr error
	resetErr  error
}

type fakeSeasonTx struct {
	uow *fakeSeasonUow

	season       *season.Season
	results      []*season.Result
	resetDone    bool
	updateSeason *season.Season
	openedID     int64
}

func (u *fakeSeasonUow) WithinTx(_ context.Context, fn func(tx SeasonTx) error) error {
	tx := &fakeSeasonTx{uow: u}
	if err := fn(tx); err != nil {
		return err
	}

	// Commit.
	u.state.results = append(u.state.results, tx.results...)
	if tx.resetDone {
		for _, a := range u.state.aggregates {
			a.ResetSeason()
		}
	}
	if tx.updateSeason != nil {
		u.state.seasons[tx.updateSeason.ID] = tx.updateSeason
	}
	if tx.openedID != 0 {
		u.state.seasons[tx.openedID].Status = season.StatusOpen
		u.state.seasons[tx.openedID].ClosedAt = nil
	}
	return nil
}

func (tx *fakeSeasonTx) GetSeasonForUpdate(_ context.Context, id int64) (*season.Season, error) {
	s, ok := tx.uow.state.seasons[id]
	if !ok {
		return nil, shared.ErrSeasonNotFound
	}
	clone := *s
	tx.season = &clone
	return tx.season, nil
}

func (tx *fakeSeasonTx) ListAggregatesForUpdate(context.Context) ([]*player.Aggregate, error) {
	return tx.uow.state.aggregates, nil
}

func (tx *fakeSeasonTx) InsertSeasonResults(_ context.Context, results []*season.Result) error {
	if tx.uow.insertErr != nil {
		return tx.uow.insertErr
	}
	tx.results = results
	return nil
}

func (tx *fakeSeasonTx) ResetSeasonCounters(context.Context) error {
	if tx.uow.resetErr != nil {
		return tx.uow.resetErr
	}
	tx.resetDone = true
	return nil
}

func (tx *fakeSeasonTx) UpdateSeason(_ context.Context, s *season.Season) error {
	tx.updateSeason = s
	return nil
}

func (tx *fakeSeasonTx) OpenSeason(_ context.Context, id int64) error {
	if _, ok := tx.uow.state.seasons[id]; !ok {
		return shared.ErrSeasonNotFound
	}
	tx.openedID = id
	return nil
}

type tickClock struct {
	now time.Time
}

func (c tickClock) Now() time.Time { return c.now }

func closeFixture(t *testing.T) (*CloseSeasonHandler, *seasonState, *fakeSeasonUow, *spyCaches) {
	t.Helper()

	open, err := season.NewSeason("Temporada 2025", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	open.ID = 1

	state := &seasonState{
		seasons: map[int64]*season.Season{1: open},
		aggregates: []*player.Aggregate{
			{ID: 10, PlayerID: 10, SeasonPoints: 42, SeasonTotalGames: 5, DanPoints: 900, TotalGames: 80},
			{ID: 11, PlayerID: 11, SeasonPoints: 17, SeasonTotalGames: 3, DanPoints: 1200, TotalGames: 200},
			{ID: 12, PlayerID: 12, DanPoints: 400, TotalGames: 40}, // idle this season
		},
	}
	uow := &fakeSeasonUow{state: state}
	caches := &spyCaches{}
	log := logger.New(logger.Options{Output: discard{}, Level: logger.LevelError})
	clock := tickClock{now: time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)}
	return NewCloseSeasonHandler(uow, caches, log, clock), state, uow, caches
}

func TestCloseSeason(t *testing.T) {
	ctx := context.Background()
	handler, state, _, caches := closeFixture(t)

	result, err := handler.Handle(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SnapshotRows)
	assert.Equal(t, 3, result.AggregateRows)

	// Snapshot covers only the two aggregates with season activity.
	require.Len(t, state.results, 2)
	assert.Equal(t, int64(10), state.results[0].PlayerID)
	assert.Equal(t, 42, state.results[0].Points)
	assert.Equal(t, 1, state.results[0].Position)
	assert.Equal(t, int64(11), state.results[1].PlayerID)
	assert.Equal(t, 2, state.results[1].Position)

	// Season counters are zeroed, lifetime counters untouched.
	for _, a := range state.aggregates {
		assert.False(t, a.HasSeasonActivity())
	}
	assert.Equal(t, 900, state.aggregates[0].DanPoints)
	assert.Equal(t, 80, state.aggregates[0].TotalGames)

	assert.Equal(t, season.StatusClosed, state.seasons[1].Status)
	assert.Equal(t, 1, caches.rankings)
}

func TestCloseSeasonOpensSuccessor(t *testing.T) {
	ctx := context.Background()
	handler, state, _, _ := closeFixture(t)

	next, err := season.NewSeason("Temporada 2025-2", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	next.ID = 2
	next.Status = season.StatusClosed
	state.seasons[2] = next

	result, err := handler.Handle(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.OpenedSeasonID)
	assert.Equal(t, season.StatusClosed, state.seasons[1].Status)
	assert.Equal(t, season.StatusOpen, state.seasons[2].Status)
}

func TestCloseSeasonUnknownSuccessorRollsBack(t *testing.T) {
	ctx := context.Background()
	handler, state, _, _ := closeFixture(t)

	_, err := handler.Handle(ctx, 1, 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// The whole close rolls back with the failed successor open.
	assert.Empty(t, state.results)
	assert.Equal(t, season.StatusOpen, state.seasons[1].Status)
}

func TestCloseSeasonNotOpen(t *testing.T) {
	ctx := context.Background()
	handler, state, _, caches := closeFixture(t)

	_, err := handler.Handle(ctx, 1, 0)
	require.NoError(t, err)

	// A second close hits the precondition and changes nothing further.
	_, err = handler.Handle(ctx, 1, 0)
	assert.ErrorIs(t, err, shared.ErrPrecondition)
	assert.Len(t, state.results, 2)
	assert.Equal(t, 1, caches.rankings)
}

func TestCloseSeasonUnknownSeason(t *testing.T) {
	ctx := context.Background()
	handler, _, _, _ := closeFixture(t)

	_, err := handler.Handle(ctx, 99, 0)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCloseSeasonRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	handler, state, uow, caches := closeFixture(t)
	uow.resetErr = errors.New("deadlock detected")

	_, err := handler.Handle(ctx, 1, 0)
	require.Error(t, err)

	// Nothing committed: no snapshot, counters intact, season still open.
	assert.Empty(t, state.results)
	assert.True(t, state.aggregates[0].HasSeasonActivity())
	assert.Equal(t, season.StatusOpen, state.seasons[1].Status)
	assert.Equal(t, 0, caches.rankings)

	// The close succeeds once the store recovers.
	uow.resetErr = nil
	result, err := handler.Handle(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SnapshotRows)
}
