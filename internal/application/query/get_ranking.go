// Package query implements the read-side application services. Reads never
// touch the durable store directly; everything goes through the ranking
// cache.
package query

import (
	"context"

	"github.com/camr-club/ranking-hub/internal/domain/ranking"
	"github.com/camr-club/ranking-hub/internal/infrastructure/cache"
	"github.com/camr-club/ranking-hub/internal/infrastructure/persistence/kv"
)

// RankingService serves the 8 precomputed ranking views by name.
type RankingService struct {
	cache *cache.RankingCache
}

// NewRankingService builds the service.
func NewRankingService(c *cache.RankingCache) *RankingService {
	return &RankingService{cache: c}
}

// View resolves an arbitrary view key. The named accessors below are thin
// wrappers kept for readability at the call sites.
func (s *RankingService) View(ctx context.Context, key ranking.ViewKey) (*ranking.View, error) {
	return s.cache.GetView(ctx, key)
}

// GeneralActive is the lifetime ranking of active 4-player competitors.
func (s *RankingService) GeneralActive(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeGeneral, Population: ranking.PopulationActive})
}

// GeneralAll is the lifetime ranking of all 4-player competitors.
func (s *RankingService) GeneralAll(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeGeneral, Population: ranking.PopulationAll})
}

// GeneralActiveSanma is the lifetime ranking of active sanma competitors.
func (s *RankingService) GeneralActiveSanma(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeGeneral, Population: ranking.PopulationActive, Sanma: true})
}

// GeneralAllSanma is the lifetime ranking of all sanma competitors.
func (s *RankingService) GeneralAllSanma(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeGeneral, Population: ranking.PopulationAll, Sanma: true})
}

// SeasonActive is the season ranking of active 4-player competitors.
func (s *RankingService) SeasonActive(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeSeason, Population: ranking.PopulationActive})
}

// SeasonAll is the season ranking of all 4-player competitors.
func (s *RankingService) SeasonAll(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeSeason, Population: ranking.PopulationAll})
}

// SeasonActiveSanma is the season ranking of active sanma competitors.
func (s *RankingService) SeasonActiveSanma(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeSeason, Population: ranking.PopulationActive, Sanma: true})
}

// SeasonAllSanma is the season ranking of all sanma competitors.
func (s *RankingService) SeasonAllSanma(ctx context.Context) (*ranking.View, error) {
	return s.View(ctx, ranking.ViewKey{Scope: ranking.ScopeSeason, Population: ranking.PopulationAll, Sanma: true})
}

// Tiers returns the cached tier table.
func (s *RankingService) Tiers(ctx context.Context) (*ranking.TierTable, error) {
	return s.cache.TierTable(ctx)
}

// CacheStatus reports the external KV layer's health for the status probe.
func (s *RankingService) CacheStatus(ctx context.Context) kv.Status {
	return s.cache.KVStatus(ctx)
}

// ResetCacheBreaker re-enables a quota-disabled KV layer.
func (s *RankingService) ResetCacheBreaker() {
	s.cache.ResetKV()
}
