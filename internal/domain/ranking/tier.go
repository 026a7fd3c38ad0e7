// Package ranking contains the derived ranking model: the 8 fixed precomputed
// views (scope × population × mode), the tier-threshold lookup, and the single
// activity predicate every view applies identically.
package ranking

import (
	"errors"
	"sort"
)

// Tier is a named skill band resolved from a dan-points value.
// Bands are inclusive on both ends.
type Tier struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	MinPoints int    `json:"min_points"`
	MaxPoints int    `json:"max_points"`
	Version   int    `json:"version"`
}

// Contains reports whether the points value falls inside the band.
func (t Tier) Contains(points int) bool {
	return points >= t.MinPoints && points <= t.MaxPoints
}

// ErrNoTiers is returned when a tier table is built from an empty set.
var ErrNoTiers = errors.New("ranking: tier table is empty")

// TierTable is a sorted tier-threshold lookup. Built once from the config
// rows and cached; invalidated independently of the ranking views.
type TierTable struct {
	tiers []Tier // ascending by MinPoints
}

// NewTierTable builds a table from unordered tier rows.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinPoints < sorted[j].MinPoints
	})

	return &TierTable{tiers: sorted}, nil
}

// Resolve returns the smallest tier whose band contains the points value,
// falling back to the lowest tier when nothing matches (negative totals from
// bulk corrections end up below every band).
func (t *TierTable) Resolve(points int) Tier {
	for _, tier := range t.tiers {
		if tier.Contains(points) {
			return tier
		}
	}
	return t.tiers[0]
}

// Next returns the tier above the given one, or false when it is the highest.
func (t *TierTable) Next(tier Tier) (Tier, bool) {
	for i, candidate := range t.tiers {
		if candidate.ID == tier.ID {
			if i+1 < len(t.tiers) {
				return t.tiers[i+1], true
			}
			return Tier{}, false
		}
	}
	return Tier{}, false
}

// Lowest returns the lowest tier.
func (t *TierTable) Lowest() Tier {
	return t.tiers[0]
}

// Len returns the number of tiers in the table.
func (t *TierTable) Len() int {
	return len(t.tiers)
}

// RateRule is one row of the rate-adjustment config table: games played up to
// MaxGames weigh rate deltas by Weight. A small lookup cached alongside the
// tier table.
type RateRule struct {
	ID       int64   `json:"id"`
	MaxGames int     `json:"max_games"`
	Weight   float64 `json:"weight"`
	Version  int     `json:"version"`
}

// WeightFor returns the adjustment weight for a games-played total, falling
// back to the last rule's weight beyond the table.
func WeightFor(rules []RateRule, totalGames int) float64 {
	if len(rules) == 0 {
		return 1.0
	}

	sorted := make([]RateRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MaxGames < sorted[j].MaxGames
	})

	for _, rule := range sorted {
		if totalGames <= rule.MaxGames {
			return rule.Weight
		}
	}
	return sorted[len(sorted)-1].Weight
}
