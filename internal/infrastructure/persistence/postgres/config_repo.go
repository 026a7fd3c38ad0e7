package postgres

import (
	"context"

	"github.com/camr-club/ranking-hub/internal/domain/ranking"
	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

// ConfigRepository implements ranking.ConfigRepository.
type ConfigRepository struct {
	conn *Connection
}

// NewConfigRepository creates a new config repository.
func NewConfigRepository(conn *Connection) *ConfigRepository {
	return &ConfigRepository{conn: conn}
}

// ListTiers returns all non-deleted tier rows.
func (r *ConfigRepository) ListTiers(ctx context.Context) ([]ranking.Tier, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, name, min_points, max_points, version FROM tiers WHERE NOT deleted`)
	if err != nil {
		return nil, shared.WrapError("ranking", "ListTiers", shared.ErrStoreFailure, "query failed", err)
	}
	defer rows.Close()

	var tiers []ranking.Tier
	for rows.Next() {
		var t ranking.Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.MinPoints, &t.MaxPoints, &t.Version); err != nil {
			return nil, shared.WrapError("ranking", "ListTiers", shared.ErrStoreFailure, "scan failed", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ListRateRules returns all non-deleted rate-adjustment rows.
func (r *ConfigRepository) ListRateRules(ctx context.Context) ([]ranking.RateRule, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, max_games, weight, version FROM rate_rules WHERE NOT deleted`)
	if err != nil {
		return nil, shared.WrapError("ranking", "ListRateRules", shared.ErrStoreFailure, "query failed", err)
	}
	defer rows.Close()

	var rules []ranking.RateRule
	for rows.Next() {
		var r ranking.RateRule
		if err := rows.Scan(&r.ID, &r.MaxGames, &r.Weight, &r.Version); err != nil {
			return nil, shared.WrapError("ranking", "ListRateRules", shared.ErrStoreFailure, "scan failed", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
