package ranking

import (
	"fmt"
	"sort"
	"time"

	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

// Scope selects which points column a view ranks by.
type Scope string

const (
	// ScopeGeneral ranks by lifetime dan points.
	ScopeGeneral Scope = "general"
	// ScopeSeason ranks by current-season points.
	ScopeSeason Scope = "temporada"
)

// Population selects which players a view includes.
type Population string

const (
	// PopulationActive includes only players passing the activity predicate.
	PopulationActive Population = "activos"
	// PopulationAll includes every non-deleted player.
	PopulationAll Population = "todos"
)

// ViewKey identifies one of the 8 precomputed ranking views.
type ViewKey struct {
	Scope      Scope
	Population Population
	Sanma      bool
}

// String returns the canonical key string, also used as KV cache key suffix.
func (k ViewKey) String() string {
	mode := "4p"
	if k.Sanma {
		mode = "3p"
	}
	return fmt.Sprintf("ranking:%s:%s:%s", k.Scope, k.Population, mode)
}

// AllViewKeys enumerates the full fixed set of views, in a stable order.
func AllViewKeys() []ViewKey {
	keys := make([]ViewKey, 0, 8)
	for _, scope := range []Scope{ScopeGeneral, ScopeSeason} {
		for _, pop := range []Population{PopulationActive, PopulationAll} {
			for _, sanma := range []bool{false, true} {
				keys = append(keys, ViewKey{Scope: scope, Population: pop, Sanma: sanma})
			}
		}
	}
	return keys
}

// Entry is one row of a ranked view.
type Entry struct {
	Position    int     `json:"position"`
	PlayerID    int64   `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Points      int     `json:"points"`
	TotalGames  int     `json:"total_games"`
	RatePoints  float64 `json:"rate_points"`
	MaxRate     float64 `json:"max_rate"`

	// Tier fields come from the general-scope dan points regardless of the
	// view's scope; a season view still shows each player's lifetime tier.
	TierName      string  `json:"tier_name"`
	PointsToNext  int     `json:"points_to_next"`
	AtHighestTier bool    `json:"at_highest_tier"`
	AveragePos    float64 `json:"average_position,omitempty"`
	SeasonGames   int     `json:"season_games,omitempty"`
}

// View is one fully materialized ranking: a sorted, positioned entry list
// plus the time it was assembled. Views are immutable once built.
type View struct {
	Key     ViewKey   `json:"key"`
	Entries []Entry   `json:"entries"`
	BuiltAt time.Time `json:"built_at"`
}

// IsActive is the single activity predicate every view applies identically:
// a player counts as active with at least one season game, or with a recorded
// game inside the trailing-year window ending now.
func IsActive(a *player.Aggregate, now time.Time) bool {
	if a.SeasonTotalGames > 0 {
		return true
	}
	if a.LastGameAt == nil {
		return false
	}
	return a.LastGameAt.After(timeutil.TrailingYearStart(now))
}

// scopePoints returns the points column the scope ranks by.
func scopePoints(a *player.Aggregate, scope Scope) int {
	if scope == ScopeSeason {
		return a.SeasonPoints
	}
	return a.DanPoints
}

// BuildView assembles one ranking view from aggregate rows. Deleted rows are
// skipped, the population filter applied, rows sorted by scope points
// descending with the lower player id winning ties, and 1-based positions
// assigned in final order. Tier fields always resolve against lifetime dan
// points.
func BuildView(key ViewKey, aggregates []*player.Aggregate, tiers *TierTable, now time.Time) *View {
	entries := make([]Entry, 0, len(aggregates))

	filtered := make([]*player.Aggregate, 0, len(aggregates))
	for _, a := range aggregates {
		if a.Deleted || a.IsSanma != key.Sanma {
			continue
		}
		if key.Population == PopulationActive && !IsActive(a, now) {
			continue
		}
		filtered = append(filtered, a)
	}

	sort.Slice(filtered, func(i, j int) bool {
		pi, pj := scopePoints(filtered[i], key.Scope), scopePoints(filtered[j], key.Scope)
		if pi != pj {
			return pi > pj
		}
		return filtered[i].PlayerID < filtered[j].PlayerID
	})

	for i, a := range filtered {
		entry := Entry{
			Position:    i + 1,
			PlayerID:    a.PlayerID,
			DisplayName: a.DisplayName,
			Points:      scopePoints(a, key.Scope),
			TotalGames:  a.TotalGames,
			RatePoints:  a.RatePoints,
			MaxRate:     a.MaxRate,
		}
		if key.Scope == ScopeSeason {
			entry.AveragePos = a.SeasonAveragePosition
			entry.SeasonGames = a.SeasonTotalGames
		}
		if tiers != nil {
			tier := tiers.Resolve(a.DanPoints)
			entry.TierName = tier.Name
			if next, ok := tiers.Next(tier); ok {
				entry.PointsToNext = next.MinPoints - a.DanPoints
			} else {
				entry.AtHighestTier = true
			}
		}
		entries = append(entries, entry)
	}

	return &View{Key: key, Entries: entries, BuiltAt: now}
}
