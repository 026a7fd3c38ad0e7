package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camr-club/ranking-hub/internal/domain/shared"
	"github.com/camr-club/ranking-hub/internal/domain/tournament"
	"github.com/camr-club/ranking-hub/pkg/logger"
)

type tournamentState struct {
	tournaments map[int64]*tournament.Tournament
	records     []*tournament.PointRecord
	results     []*tournament.Result
}

// fakeTournamentUow stages mutations and applies them only on a nil body
// error, mimicking rollback.
type fakeTournamentUow struct {
	state     *tournamentState
	insertErr error
}

type fakeTournamentTx struct {
	uow *fakeTournamentUow

	results    []*tournament.Result
	updated    *tournament.Tournament
	deletedFor int64
}

func (u *fakeTournamentUow) WithinTx(_ context.Context, fn func(tx TournamentTx) error) error {
	tx := &fakeTournamentTx{uow: u}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.deletedFor != 0 {
		kept := u.state.results[:0]
		for _, res := range u.state.results {
			if res.TournamentID != tx.deletedFor {
				kept = append(kept, res)
			}
		}
		u.state.results = kept
	}
	u.state.results = append(u.state.results, tx.results...)
	if tx.updated != nil {
		u.state.tournaments[tx.updated.ID] = tx.updated
	}
	return nil
}

func (tx *fakeTournamentTx) GetTournamentForUpdate(_ context.Context, id int64) (*tournament.Tournament, error) {
	t, ok := tx.uow.state.tournaments[id]
	if !ok {
		return nil, shared.ErrTournamentNotFound
	}
	clone := *t
	return &clone, nil
}

func (tx *fakeTournamentTx) ListPointRecords(_ context.Context, tournamentID int64) ([]*tournament.PointRecord, error) {
	var out []*tournament.PointRecord
	for _, r := range tx.uow.state.records {
		if r.TournamentID == tournamentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tx *fakeTournamentTx) DeleteTournamentResults(_ context.Context, tournamentID int64) error {
	tx.deletedFor = tournamentID
	return nil
}

func (tx *fakeTournamentTx) InsertTournamentResults(_ context.Context, results []*tournament.Result) error {
	if tx.uow.insertErr != nil {
		return tx.uow.insertErr
	}
	tx.results = results
	return nil
}

func (tx *fakeTournamentTx) UpdateTournament(_ context.Context, t *tournament.Tournament) error {
	tx.updated = t
	return nil
}

func finalizeFixture(t *testing.T) (*FinalizeTournamentHandler, *tournamentState, *fakeTournamentUow, *spyCaches) {
	t.Helper()

	tr, err := tournament.NewTournament("Torneo Otoño", false, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	tr.ID = 5
	tr.Status = tournament.StatusActive

	state := &tournamentState{
		tournaments: map[int64]*tournament.Tournament{5: tr},
		records: []*tournament.PointRecord{
			{TournamentID: 5, PlayerID: 1, Points: 12.5, GamesPlayed: 2},
			{TournamentID: 5, PlayerID: 2, Points: 30.0, GamesPlayed: 3},
			{TournamentID: 5, PlayerID: 1, Points: 20.0, GamesPlayed: 2},
			{TournamentID: 9, PlayerID: 3, Points: 99.0, GamesPlayed: 1}, // other tournament
		},
	}
	uow := &fakeTournamentUow{state: state}
	caches := &spyCaches{}
	log := logger.New(logger.Options{Output: discard{}, Level: logger.LevelError})
	clock := tickClock{now: time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)}
	return NewFinalizeTournamentHandler(uow, caches, log, clock), state, uow, caches
}

func TestFinalizeTournament(t *testing.T) {
	ctx := context.Background()
	handler, state, _, caches := finalizeFixture(t)

	result, err := handler.Handle(ctx, 5)
	require.NoError(t, err)
	require.Len(t, result.Standings, 2)

	assert.Equal(t, int64(1), result.Standings[0].PlayerID)
	assert.InDelta(t, 32.5, result.Standings[0].TotalPoints, 1e-9)
	assert.Equal(t, 4, result.Standings[0].GamesPlayed)
	assert.Equal(t, 1, result.Standings[0].Position)
	assert.Equal(t, int64(2), result.Standings[1].PlayerID)
	assert.Equal(t, 2, result.Standings[1].Position)

	finalized := state.tournaments[5]
	assert.True(t, finalized.IsCompleted())
	require.NotNil(t, finalized.EndDate)
	assert.Equal(t, time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC), *finalized.EndDate)
	assert.Len(t, state.results, 2)
	assert.Equal(t, 1, caches.rankings)
}

func TestRefinalizeReplacesResults(t *testing.T) {
	ctx := context.Background()
	handler, state, _, _ := finalizeFixture(t)

	_, err := handler.Handle(ctx, 5)
	require.NoError(t, err)
	require.Len(t, state.results, 2)

	// A correction comes in after the first finalization.
	state.records = append(state.records,
		&tournament.PointRecord{TournamentID: 5, PlayerID: 3, Points: 50.0, GamesPlayed: 1})

	result, err := handler.Handle(ctx, 5)
	require.NoError(t, err)
	require.Len(t, result.Standings, 3)
	assert.Equal(t, int64(3), result.Standings[0].PlayerID)

	// Old rows fully replaced, no duplicates.
	require.Len(t, state.results, 3)
	seen := map[int64]bool{}
	for _, res := range state.results {
		assert.False(t, seen[res.PlayerID])
		seen[res.PlayerID] = true
	}
}

func TestFinalizeTournamentNoRecords(t *testing.T) {
	ctx := context.Background()
	handler, state, _, caches := finalizeFixture(t)
	state.records = nil

	_, err := handler.Handle(ctx, 5)
	assert.ErrorIs(t, err, shared.ErrTournamentNoResults)

	// Fail-fast: the tournament stays active and nothing is written.
	assert.False(t, state.tournaments[5].IsCompleted())
	assert.Empty(t, state.results)
	assert.Equal(t, 0, caches.rankings)
}

func TestFinalizeTournamentUnknown(t *testing.T) {
	ctx := context.Background()
	handler, _, _, _ := finalizeFixture(t)

	_, err := handler.Handle(ctx, 42)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFinalizeTournamentRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	handler, state, uow, caches := finalizeFixture(t)
	uow.insertErr = errors.New("disk full")

	_, err := handler.Handle(ctx, 5)
	require.Error(t, err)
	assert.False(t, state.tournaments[5].IsCompleted())
	assert.Empty(t, state.results)
	assert.Equal(t, 0, caches.rankings)

	uow.insertErr = nil
	result, err := handler.Handle(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, result.Standings, 2)
}
