package postgres

import (
	"github.com/camr-club/ranking-hub/internal/application/command"
)

// Resource describes one gated table: which payload fields map to which
// columns, which fields must stay unique, and which caches its mutations
// invalidate. The registry is the only place identifiers enter SQL text, so
// user input never reaches a query as an identifier.
type Resource struct {
	Name  string
	Table string

	// Columns maps accepted payload fields to column names. A payload field
	// outside this map rejects the whole update.
	Columns map[string]string

	// Unique lists payload fields checked for duplicates before the write.
	Unique []string

	InvalidatesRanking bool
	InvalidatesConfigs bool
}

// Registry is the fixed catalog of gated resources, built once at startup.
type Registry struct {
	resources map[string]Resource
}

// NewRegistry returns the catalog of every resource the write gate serves.
func NewRegistry() *Registry {
	resources := []Resource{
		{
			Name:  "players",
			Table: "players",
			Columns: map[string]string{
				"display_name": "display_name",
				"full_name":    "full_name",
				"email":        "email",
			},
			Unique:             []string{"display_name", "email"},
			InvalidatesRanking: true,
		},
		{
			Name:  "aggregates",
			Table: "player_aggregates",
			Columns: map[string]string{
				"total_games":             "total_games",
				"dan_points":              "dan_points",
				"rate_points":             "rate_points",
				"max_rate":                "max_rate",
				"season_points":           "season_points",
				"season_total_games":      "season_total_games",
				"season_average_position": "season_average_position",
				"last_game_at":            "last_game_at",
			},
			InvalidatesRanking: true,
		},
		{
			Name:  "seasons",
			Table: "seasons",
			Columns: map[string]string{
				"name":       "name",
				"start_date": "start_date",
				"end_date":   "end_date",
			},
			Unique: []string{"name"},
		},
		{
			Name:  "tournaments",
			Table: "tournaments",
			Columns: map[string]string{
				"name":       "name",
				"status":     "status",
				"start_date": "start_date",
				"end_date":   "end_date",
			},
		},
		{
			Name:  "point_records",
			Table: "tournament_point_records",
			Columns: map[string]string{
				"kind":         "kind",
				"points":       "points",
				"games_played": "games_played",
			},
		},
		{
			Name:  "tiers",
			Table: "tiers",
			Columns: map[string]string{
				"name":       "name",
				"min_points": "min_points",
				"max_points": "max_points",
			},
			Unique:             []string{"name"},
			InvalidatesRanking: true,
			InvalidatesConfigs: true,
		},
		{
			Name:  "rate_rules",
			Table: "rate_rules",
			Columns: map[string]string{
				"max_games": "max_games",
				"weight":    "weight",
			},
			InvalidatesRanking: true,
			InvalidatesConfigs: true,
		},
	}

	byName := make(map[string]Resource, len(resources))
	for _, r := range resources {
		byName[r.Name] = r
	}
	return &Registry{resources: byName}
}

// Get resolves a resource by name.
func (r *Registry) Get(name string) (Resource, bool) {
	res, ok := r.resources[name]
	return res, ok
}

// Traits implements command.Catalog.
func (r *Registry) Traits(name string) (command.ResourceTraits, bool) {
	res, ok := r.resources[name]
	if !ok {
		return command.ResourceTraits{}, false
	}
	return command.ResourceTraits{
		InvalidatesRanking: res.InvalidatesRanking,
		InvalidatesConfigs: res.InvalidatesConfigs,
	}, true
}
