// Package player contains the player aggregate model: one row of running
// totals per (player, game-mode) pair. Aggregates are mutated on every
// recorded game result and reset by season close; they are never hard-deleted.
package player

import (
	"fmt"
	"time"
)

// PlacementCounts holds per-placement totals for one game-length submode.
// Fourth stays zero for sanma aggregates.
type PlacementCounts struct {
	First  int `json:"first"`
	Second int `json:"second"`
	Third  int `json:"third"`
	Fourth int `json:"fourth"`
}

// Total returns the number of games covered by the counts.
func (p PlacementCounts) Total() int {
	return p.First + p.Second + p.Third + p.Fourth
}

// IsZero reports whether no games are recorded.
func (p PlacementCounts) IsZero() bool {
	return p == PlacementCounts{}
}

// Aggregate is one row of per-player running statistics for a single
// game-mode (4-player or sanma). Lifetime counters accumulate forever;
// season counters mirror them for the current season window and are reset
// to zero by season close.
type Aggregate struct {
	ID       int64 `json:"id"`
	PlayerID int64 `json:"player_id"`

	// IsSanma selects the 3-player variant; each player has one aggregate
	// row per supported mode.
	IsSanma bool `json:"is_sanma"`

	// DisplayName is denormalized from the player row by list queries.
	DisplayName string `json:"display_name"`

	// Lifetime window.
	TotalGames int             `json:"total_games"`
	Hanchan    PlacementCounts `json:"hanchan"`
	Tonpuusen  PlacementCounts `json:"tonpuusen"`
	DanPoints  int             `json:"dan_points"`
	RatePoints float64         `json:"rate_points"`
	MaxRate    float64         `json:"max_rate"`

	// Season window. Always a subset of the lifetime window; zero right
	// after a season close.
	SeasonPoints          int             `json:"season_points"`
	SeasonTotalGames      int             `json:"season_total_games"`
	SeasonAveragePosition float64         `json:"season_average_position"`
	SeasonHanchan         PlacementCounts `json:"season_hanchan"`
	SeasonTonpuusen       PlacementCounts `json:"season_tonpuusen"`

	// LastGameAt is the time of the most recent recorded game, nil for a
	// player with no games yet. Drives the activity-window predicate.
	LastGameAt *time.Time `json:"last_game_at,omitempty"`

	Version   int       `json:"version"`
	Deleted   bool      `json:"deleted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAggregate creates a fresh aggregate row for a player/mode pair.
// Rows are created alongside the player entity, one per supported mode.
func NewAggregate(playerID int64, sanma bool, displayName string) *Aggregate {
	return &Aggregate{
		PlayerID:    playerID,
		IsSanma:     sanma,
		DisplayName: displayName,
		Version:     1,
	}
}

// HasSeasonActivity reports whether any season-window counter is non-zero.
// Season close snapshots only rows for which this holds.
func (a *Aggregate) HasSeasonActivity() bool {
	return a.SeasonPoints != 0 ||
		a.SeasonTotalGames != 0 ||
		!a.SeasonHanchan.IsZero() ||
		!a.SeasonTonpuusen.IsZero()
}

// ResetSeason zeroes every season-window counter. Lifetime counters are
// untouched.
func (a *Aggregate) ResetSeason() {
	a.SeasonPoints = 0
	a.SeasonTotalGames = 0
	a.SeasonAveragePosition = 0
	a.SeasonHanchan = PlacementCounts{}
	a.SeasonTonpuusen = PlacementCounts{}
}

// Mode returns a short mode label for keys and logging.
func (a *Aggregate) Mode() string {
	if a.IsSanma {
		return "3p"
	}
	return "4p"
}

// String returns a compact representation for logging.
func (a *Aggregate) String() string {
	return fmt.Sprintf(
		"Aggregate{Player: %d, Mode: %s, Dan: %d, SeasonPts: %d, Games: %d}",
		a.PlayerID, a.Mode(), a.DanPoints, a.SeasonPoints, a.TotalGames,
	)
}
