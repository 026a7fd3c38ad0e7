// Package season contains the season entity and the pure snapshot assembly
// used by season close. A season is a club-defined window of play; closing it
// freezes the standings into immutable result rows and zeroes the season
// counters on every aggregate.
package season

import (
	"sort"
	"strings"
	"time"

	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

// Status is the lifecycle state of a season.
type Status string

const (
	// StatusOpen accepts game results and counter updates.
	StatusOpen Status = "open"
	// StatusClosed is terminal: standings are frozen into result rows.
	StatusClosed Status = "closed"
)

// Season is one club season window.
type Season struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewSeason creates an open season starting at the given date.
func NewSeason(name string, startDate time.Time) (*Season, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("season", "Create", shared.ErrEmptyValue, "season name cannot be empty")
	}
	return &Season{
		Name:      strings.TrimSpace(name),
		Status:    StatusOpen,
		StartDate: startDate,
		Version:   1,
	}, nil
}

// IsOpen reports whether the season still accepts play.
func (s *Season) IsOpen() bool {
	return s.Status == StatusOpen
}

// Close transitions the season to closed. Fails on anything but an open
// season, so a double close surfaces as a precondition error.
func (s *Season) Close(now time.Time) error {
	if !s.IsOpen() {
		return shared.ErrSeasonNotOpen
	}
	s.Status = StatusClosed
	s.ClosedAt = &now
	if s.EndDate == nil {
		s.EndDate = &now
	}
	return nil
}

// Result is one frozen standings row of a closed season. Result rows are
// written once at close time and never updated.
type Result struct {
	ID              int64                  `json:"id"`
	SeasonID        int64                  `json:"season_id"`
	PlayerID        int64                  `json:"player_id"`
	IsSanma         bool                   `json:"is_sanma"`
	Position        int                    `json:"position"`
	Points          int                    `json:"points"`
	TotalGames      int                    `json:"total_games"`
	AveragePosition float64                `json:"average_position"`
	Hanchan         player.PlacementCounts `json:"hanchan"`
	Tonpuusen       player.PlacementCounts `json:"tonpuusen"`
	CreatedAt       time.Time              `json:"created_at"`
}

// BuildResults assembles the frozen standings rows for a closing season.
// Only aggregates with season activity contribute; the rest of the roster is
// left out of the snapshot entirely. Rows are ordered by season points
// descending per mode, lower player id first on ties, with 1-based positions.
func BuildResults(seasonID int64, aggregates []*player.Aggregate) []*Result {
	byMode := map[bool][]*player.Aggregate{}
	for _, a := range aggregates {
		if a.Deleted || !a.HasSeasonActivity() {
			continue
		}
		byMode[a.IsSanma] = append(byMode[a.IsSanma], a)
	}

	var results []*Result
	for _, sanma := range []bool{false, true} {
		mode := byMode[sanma]
		sort.Slice(mode, func(i, j int) bool {
			if mode[i].SeasonPoints != mode[j].SeasonPoints {
				return mode[i].SeasonPoints > mode[j].SeasonPoints
			}
			return mode[i].PlayerID < mode[j].PlayerID
		})
		for i, a := range mode {
			results = append(results, &Result{
				SeasonID:        seasonID,
				PlayerID:        a.PlayerID,
				IsSanma:         sanma,
				Position:        i + 1,
				Points:          a.SeasonPoints,
				TotalGames:      a.SeasonTotalGames,
				AveragePosition: a.SeasonAveragePosition,
				Hanchan:         a.SeasonHanchan,
				Tonpuusen:       a.SeasonTonpuusen,
			})
		}
	}
	return results
}
