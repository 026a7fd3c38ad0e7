// Package tournament contains the tournament entity, its point records, and
// the pure standings computation used by finalization.
package tournament

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

// Status is the lifecycle state of a tournament.
type Status string

const (
	// StatusScheduled is a tournament announced but not yet playing.
	StatusScheduled Status = "scheduled"
	// StatusActive is a tournament currently accepting point records.
	StatusActive Status = "active"
	// StatusCompleted is terminal: standings are frozen.
	StatusCompleted Status = "completed"
)

// Tournament is one club tournament.
type Tournament struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	IsSanma     bool       `json:"is_sanma"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTournament creates a scheduled tournament.
func NewTournament(name string, sanma bool, startDate time.Time) (*Tournament, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("tournament", "Create", shared.ErrEmptyValue, "tournament name cannot be empty")
	}
	return &Tournament{
		Name:      strings.TrimSpace(name),
		Status:    StatusScheduled,
		IsSanma:   sanma,
		StartDate: startDate,
		Version:   1,
	}, nil
}

// IsCompleted reports whether standings are already frozen.
func (t *Tournament) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Complete transitions the tournament to completed. Re-completing is allowed:
// finalization replaces the frozen standings atomically, so the transition is
// idempotent. EndDate defaults to now only when unset.
func (t *Tournament) Complete(now time.Time) {
	t.Status = StatusCompleted
	t.CompletedAt = &now
	if t.EndDate == nil {
		t.EndDate = &now
	}
}

// PointKind distinguishes standings-contributing season records from bonus
// adjustments that stay out of the standings.
type PointKind string

const (
	PointKindSeason PointKind = "season"
	PointKindBonus  PointKind = "bonus"
)

// PointRecord is one per-session point entry for a player in a tournament.
// A player accumulates several records over the tournament's sessions.
type PointRecord struct {
	ID           int64     `json:"id"`
	TournamentID int64     `json:"tournament_id"`
	PlayerID     int64     `json:"player_id"`
	Kind         PointKind `json:"kind"`
	Points       float64   `json:"points"`
	GamesPlayed  int       `json:"games_played"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Result is one frozen standings row of a completed tournament.
type Result struct {
	ID           int64     `json:"id"`
	TournamentID int64     `json:"tournament_id"`
	PlayerID     int64     `json:"player_id"`
	Position     int       `json:"position"`
	TotalPoints  float64   `json:"total_points"`
	GamesPlayed  int       `json:"games_played"`
	CreatedAt    time.Time `json:"created_at"`
}

// round1 rounds to one decimal, half away from zero. Point sheets are kept
// to a single decimal so summed standings are too.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ComputeStandings groups point records per player, sums points and games,
// and assigns 1-based positions by total points descending with the lower
// player id winning ties. Returns ErrTournamentNoResults when no record
// contributes.
func ComputeStandings(tournamentID int64, records []*PointRecord) ([]*Result, error) {
	totals := map[int64]*Result{}
	for _, rec := range records {
		r, ok := totals[rec.PlayerID]
		if !ok {
			r = &Result{TournamentID: tournamentID, PlayerID: rec.PlayerID}
			totals[rec.PlayerID] = r
		}
		r.TotalPoints += rec.Points
		r.GamesPlayed += rec.GamesPlayed
	}

	if len(totals) == 0 {
		return nil, shared.ErrTournamentNoResults
	}

	results := make([]*Result, 0, len(totals))
	for _, r := range totals {
		r.TotalPoints = round1(r.TotalPoints)
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalPoints != results[j].TotalPoints {
			return results[i].TotalPoints > results[j].TotalPoints
		}
		return results[i].PlayerID < results[j].PlayerID
	})
	for i, r := range results {
		r.Position = i + 1
	}
	return results, nil
}
