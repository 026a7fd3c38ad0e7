package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camr-club/ranking-hub/internal/domain/player"
)

func testTiers(t *testing.T) *TierTable {
	t.Helper()
	table, err := NewTierTable([]Tier{
		{ID: 3, Name: "Shodan", MinPoints: 1000, MaxPoints: 1399},
		{ID: 1, Name: "Kyuu", MinPoints: 0, MaxPoints: 999},
		{ID: 4, Name: "Nidan", MinPoints: 1400, MaxPoints: 9999},
	})
	require.NoError(t, err)
	return table
}

func gameAt(t time.Time) *time.Time {
	return &t
}

func TestNewTierTableEmpty(t *testing.T) {
	_, err := NewTierTable(nil)
	assert.ErrorIs(t, err, ErrNoTiers)
}

func TestTierResolve(t *testing.T) {
	table := testTiers(t)

	assert.Equal(t, "Kyuu", table.Resolve(0).Name)
	assert.Equal(t, "Kyuu", table.Resolve(999).Name)
	assert.Equal(t, "Shodan", table.Resolve(1000).Name)
	assert.Equal(t, "Nidan", table.Resolve(1400).Name)

	// Below every band falls back to the lowest tier.
	assert.Equal(t, "Kyuu", table.Resolve(-250).Name)
}

func TestTierNext(t *testing.T) {
	table := testTiers(t)

	next, ok := table.Next(table.Resolve(500))
	require.True(t, ok)
	assert.Equal(t, "Shodan", next.Name)

	_, ok = table.Next(table.Resolve(2000))
	assert.False(t, ok)
}

func TestWeightFor(t *testing.T) {
	rules := []RateRule{
		{MaxGames: 400, Weight: 0.8},
		{MaxGames: 100, Weight: 1.0},
	}

	assert.InDelta(t, 1.0, WeightFor(rules, 50), 1e-9)
	assert.InDelta(t, 1.0, WeightFor(rules, 100), 1e-9)
	assert.InDelta(t, 0.8, WeightFor(rules, 250), 1e-9)
	assert.InDelta(t, 0.8, WeightFor(rules, 5000), 1e-9)
	assert.InDelta(t, 1.0, WeightFor(nil, 10), 1e-9)
}

func TestIsActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	withSeasonGames := &player.Aggregate{SeasonTotalGames: 3}
	assert.True(t, IsActive(withSeasonGames, now))

	recentGame := &player.Aggregate{LastGameAt: gameAt(now.AddDate(0, -6, 0))}
	assert.True(t, IsActive(recentGame, now))

	staleGame := &player.Aggregate{LastGameAt: gameAt(now.AddDate(-2, 0, 0))}
	assert.False(t, IsActive(staleGame, now))

	neverPlayed := &player.Aggregate{}
	assert.False(t, IsActive(neverPlayed, now))
}

func TestBuildViewOrderingAndPositions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	table := testTiers(t)

	aggregates := []*player.Aggregate{
		{PlayerID: 7, DisplayName: "Lucia", DanPoints: 1200, LastGameAt: gameAt(now.AddDate(0, -1, 0))},
		{PlayerID: 3, DisplayName: "Marco", DanPoints: 1500, LastGameAt: gameAt(now.AddDate(0, -1, 0))},
		{PlayerID: 9, DisplayName: "Ana", DanPoints: 1500, LastGameAt: gameAt(now.AddDate(0, -2, 0))},
		{PlayerID: 4, DisplayName: "Borrado", DanPoints: 9000, Deleted: true},
	}

	view := BuildView(ViewKey{Scope: ScopeGeneral, Population: PopulationAll}, aggregates, table, now)

	require.Len(t, view.Entries, 3)
	// Tied on 1500 points: the lower player id ranks first.
	assert.Equal(t, int64(3), view.Entries[0].PlayerID)
	assert.Equal(t, int64(9), view.Entries[1].PlayerID)
	assert.Equal(t, int64(7), view.Entries[2].PlayerID)
	for i, entry := range view.Entries {
		assert.Equal(t, i+1, entry.Position)
	}
}

func TestBuildViewPopulationFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	table := testTiers(t)

	// A: fewer points but played last month. B: more points, idle two years.
	aggregates := []*player.Aggregate{
		{PlayerID: 1, DisplayName: "A", DanPoints: 1200, LastGameAt: gameAt(now.AddDate(0, -1, 0))},
		{PlayerID: 2, DisplayName: "B", DanPoints: 1500, LastGameAt: gameAt(now.AddDate(-2, 0, 0))},
	}

	active := BuildView(ViewKey{Scope: ScopeGeneral, Population: PopulationActive}, aggregates, table, now)
	require.Len(t, active.Entries, 1)
	assert.Equal(t, int64(1), active.Entries[0].PlayerID)
	assert.Equal(t, 1, active.Entries[0].Position)

	all := BuildView(ViewKey{Scope: ScopeGeneral, Population: PopulationAll}, aggregates, table, now)
	require.Len(t, all.Entries, 2)
	assert.Equal(t, int64(2), all.Entries[0].PlayerID)
	assert.Equal(t, int64(1), all.Entries[1].PlayerID)
}

func TestBuildViewSeasonScope(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	table := testTiers(t)

	aggregates := []*player.Aggregate{
		{PlayerID: 1, DanPoints: 2000, SeasonPoints: 10, SeasonTotalGames: 2, SeasonAveragePosition: 2.5},
		{PlayerID: 2, DanPoints: 500, SeasonPoints: 40, SeasonTotalGames: 8, SeasonAveragePosition: 1.9},
	}

	view := BuildView(ViewKey{Scope: ScopeSeason, Population: PopulationAll}, aggregates, table, now)

	require.Len(t, view.Entries, 2)
	// Season scope ranks by season points, not lifetime dan.
	assert.Equal(t, int64(2), view.Entries[0].PlayerID)
	assert.Equal(t, 40, view.Entries[0].Points)
	assert.Equal(t, 8, view.Entries[0].SeasonGames)
	assert.InDelta(t, 1.9, view.Entries[0].AveragePos, 1e-9)

	// Tier still resolves against lifetime dan points.
	assert.Equal(t, "Kyuu", view.Entries[0].TierName)
	assert.Equal(t, "Nidan", view.Entries[1].TierName)
	assert.True(t, view.Entries[1].AtHighestTier)
}

func TestBuildViewModeFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	aggregates := []*player.Aggregate{
		{PlayerID: 1, DanPoints: 100, IsSanma: false},
		{PlayerID: 1, DanPoints: 300, IsSanma: true},
	}

	sanma := BuildView(ViewKey{Scope: ScopeGeneral, Population: PopulationAll, Sanma: true}, aggregates, nil, now)
	require.Len(t, sanma.Entries, 1)
	assert.Equal(t, 300, sanma.Entries[0].Points)
}

func TestAllViewKeys(t *testing.T) {
	keys := AllViewKeys()
	require.Len(t, keys, 8)

	seen := make(map[string]bool, 8)
	for _, k := range keys {
		seen[k.String()] = true
	}
	assert.Len(t, seen, 8)
	assert.True(t, seen["ranking:general:activos:4p"])
	assert.True(t, seen["ranking:temporada:todos:3p"])
}
