package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

func TestNewTournament(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tr, err := NewTournament("Torneo Otoño", false, start)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, tr.Status)
	assert.False(t, tr.IsCompleted())

	_, err = NewTournament("", false, start)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestTournamentComplete(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)

	tr, err := NewTournament("Torneo Otoño", false, start)
	require.NoError(t, err)

	tr.Complete(now)
	assert.Equal(t, StatusCompleted, tr.Status)
	require.NotNil(t, tr.EndDate)
	assert.Equal(t, now, *tr.EndDate)

	// Re-completing is idempotent: the end date from the first completion
	// survives a re-finalization.
	tr.Complete(now.Add(time.Hour))
	assert.Equal(t, StatusCompleted, tr.Status)
	assert.Equal(t, now, *tr.EndDate)
}

func TestTournamentCompleteKeepsEndDate(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)

	tr, err := NewTournament("Torneo Otoño", false, start)
	require.NoError(t, err)
	tr.EndDate = &end

	tr.Complete(now)
	assert.Equal(t, end, *tr.EndDate)
}

func TestComputeStandings(t *testing.T) {
	records := []*PointRecord{
		{PlayerID: 1, Points: 12.5, GamesPlayed: 2},
		{PlayerID: 2, Points: 30.0, GamesPlayed: 3},
		{PlayerID: 1, Points: 20.0, GamesPlayed: 2},
		{PlayerID: 3, Points: -4.3, GamesPlayed: 1},
	}

	results, err := ComputeStandings(5, records)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(1), results[0].PlayerID)
	assert.InDelta(t, 32.5, results[0].TotalPoints, 1e-9)
	assert.Equal(t, 4, results[0].GamesPlayed)
	assert.Equal(t, 1, results[0].Position)

	assert.Equal(t, int64(2), results[1].PlayerID)
	assert.Equal(t, 2, results[1].Position)

	assert.Equal(t, int64(3), results[2].PlayerID)
	assert.InDelta(t, -4.3, results[2].TotalPoints, 1e-9)
	assert.Equal(t, 3, results[2].Position)
}

func TestComputeStandingsTieBreak(t *testing.T) {
	records := []*PointRecord{
		{PlayerID: 8, Points: 15, GamesPlayed: 1},
		{PlayerID: 2, Points: 15, GamesPlayed: 1},
	}

	results, err := ComputeStandings(1, records)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].PlayerID)
	assert.Equal(t, int64(8), results[1].PlayerID)
}

func TestComputeStandingsRounding(t *testing.T) {
	records := []*PointRecord{
		{PlayerID: 1, Points: 0.1, GamesPlayed: 1},
		{PlayerID: 1, Points: 0.2, GamesPlayed: 1},
	}

	results, err := ComputeStandings(1, records)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.3, results[0].TotalPoints)
}

func TestComputeStandingsEmpty(t *testing.T) {
	_, err := ComputeStandings(1, nil)
	assert.ErrorIs(t, err, shared.ErrTournamentNoResults)
}
