// Package cache implements the in-process ranking cache: the 8 precomputed
// views plus the small config lookups, each rebuilt on demand behind
// singleflight so concurrent misses trigger exactly one rebuild.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/camr-club/ranking-hub/internal/domain/player"
	"github.com/camr-club/ranking-hub/internal/domain/ranking"
	"github.com/camr-club/ranking-hub/internal/infrastructure/persistence/kv"
	"github.com/camr-club/ranking-hub/pkg/logger"
	"github.com/camr-club/ranking-hub/pkg/timeutil"
)

const (
	tiersKey     = "config:tiers"
	rateRulesKey = "config:rate_rules"

	// kvTTL bounds staleness of the external copy; in-process invalidation
	// deletes KV keys eagerly, the TTL only covers other instances.
	kvTTL = 12 * time.Hour
)

// RankingCache serves the precomputed ranking views and config lookups.
// Reads go memory first, then the external KV layer, then a full rebuild
// from the durable store. A failed rebuild keeps whatever stale copy was
// already in memory.
type RankingCache struct {
	players player.Repository
	configs ranking.ConfigRepository
	kvc     *kv.Client
	log     *logger.Logger
	clock   timeutil.Clock

	group singleflight.Group

	mu    sync.RWMutex
	views map[ranking.ViewKey]*ranking.View
	// dirty marks views that were invalidated but kept as a stale fallback
	// in case the rebuild fails.
	dirty     map[ranking.ViewKey]bool
	tiers     *ranking.TierTable
	rateRules []ranking.RateRule
}

// NewRankingCache builds an empty cache. kvc may be nil when the external
// layer is disabled.
func NewRankingCache(players player.Repository, configs ranking.ConfigRepository, kvc *kv.Client, log *logger.Logger, clock timeutil.Clock) *RankingCache {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &RankingCache{
		players: players,
		configs: configs,
		kvc:     kvc,
		log:     log.With(logger.Component("ranking_cache")),
		clock:   clock,
		views:   make(map[ranking.ViewKey]*ranking.View),
		dirty:   make(map[ranking.ViewKey]bool),
	}
}

// GetView returns one ranking view, rebuilding it on a miss. Concurrent
// misses for the same view share a single rebuild; misses for different
// views rebuild independently. When a rebuild fails and an invalidated copy
// is still around, the stale copy is served instead of an error.
func (c *RankingCache) GetView(ctx context.Context, key ranking.ViewKey) (*ranking.View, error) {
	if view, ok := c.freshView(key); ok {
		return view, nil
	}

	result, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A racing caller may have repopulated the slot while we waited.
		if view, ok := c.freshView(key); ok {
			return view, nil
		}
		return c.rebuildView(ctx, key)
	})
	if err != nil {
		c.mu.RLock()
		stale, ok := c.views[key]
		c.mu.RUnlock()
		if ok {
			c.log.Warn("serving stale view after failed rebuild",
				logger.ViewKey(key.String()), logger.Err(err))
			return stale, nil
		}
		return nil, err
	}
	return result.(*ranking.View), nil
}

func (c *RankingCache) freshView(key ranking.ViewKey) (*ranking.View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view, ok := c.views[key]
	if !ok || c.dirty[key] {
		return nil, false
	}
	return view, true
}

func (c *RankingCache) isDirty(key ranking.ViewKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty[key]
}

// rebuildView assembles one view from the durable store. The external KV
// copy is only consulted for cold slots: a dirty slot means an in-process
// invalidation happened, and the KV copy may predate it (Del can fail while
// the breaker is open or the provider is flaky), so adopting it would undo
// the invalidation. Dirty slots rebuild from the store and overwrite the KV
// copy.
func (c *RankingCache) rebuildView(ctx context.Context, key ranking.ViewKey) (*ranking.View, error) {
	start := c.clock.Now()

	if !c.isDirty(key) {
		if data, ok := c.kvc.Get(ctx, key.String()); ok {
			var view ranking.View
			if err := json.Unmarshal(data, &view); err == nil {
				c.storeView(key, &view)
				return &view, nil
			}
			c.log.Warn("discarding undecodable cached view", logger.ViewKey(key.String()))
		}
	}

	tiers, err := c.TierTable(ctx)
	if err != nil {
		return nil, err
	}
	aggregates, err := c.players.ListAggregates(ctx, key.Sanma)
	if err != nil {
		c.log.Error("view rebuild failed", logger.ViewKey(key.String()), logger.Err(err))
		return nil, err
	}

	view := ranking.BuildView(key, aggregates, tiers, c.clock.Now())
	c.storeView(key, view)

	if data, err := json.Marshal(view); err == nil {
		c.kvc.Set(ctx, key.String(), data, kvTTL)
	}

	c.log.Debug("view rebuilt",
		logger.ViewKey(key.String()),
		logger.Int("entries", len(view.Entries)),
		logger.Latency(c.clock.Now().Sub(start)))
	return view, nil
}

func (c *RankingCache) storeView(key ranking.ViewKey, view *ranking.View) {
	c.mu.Lock()
	c.views[key] = view
	delete(c.dirty, key)
	c.mu.Unlock()
}

// TierTable returns the cached tier lookup, loading it on first use.
func (c *RankingCache) TierTable(ctx context.Context) (*ranking.TierTable, error) {
	c.mu.RLock()
	table := c.tiers
	c.mu.RUnlock()
	if table != nil {
		return table, nil
	}

	result, err, _ := c.group.Do(tiersKey, func() (any, error) {
		c.mu.RLock()
		cached := c.tiers
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		rows, err := c.configs.ListTiers(ctx)
		if err != nil {
			return nil, err
		}
		table, err := ranking.NewTierTable(rows)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.tiers = table
		c.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ranking.TierTable), nil
}

// RateRules returns the cached rate-adjustment rows, loading them on first use.
func (c *RankingCache) RateRules(ctx context.Context) ([]ranking.RateRule, error) {
	c.mu.RLock()
	rules := c.rateRules
	c.mu.RUnlock()
	if rules != nil {
		return rules, nil
	}

	result, err, _ := c.group.Do(rateRulesKey, func() (any, error) {
		c.mu.RLock()
		cached := c.rateRules
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		rows, err := c.configs.ListRateRules(ctx)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []ranking.RateRule{}
		}

		c.mu.Lock()
		c.rateRules = rows
		c.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]ranking.RateRule), nil
}

// InvalidateRanking marks all 8 views stale and drops their KV copies. The
// in-memory copies stay around as a fallback for failed rebuilds. The config
// lookups are untouched; they have their own invalidation.
func (c *RankingCache) InvalidateRanking(ctx context.Context) {
	c.mu.Lock()
	for key := range c.views {
		c.dirty[key] = true
	}
	c.mu.Unlock()

	for _, key := range ranking.AllViewKeys() {
		c.kvc.Del(ctx, key.String())
	}
	c.log.Info("ranking views invalidated")
}

// InvalidateConfigs drops the tier table and rate rules, leaving the 8
// ranking views untouched. Writes that change baked-in tier fields (tiers,
// rate rules) carry both invalidation traits, so the write gate calls
// InvalidateRanking alongside this one.
func (c *RankingCache) InvalidateConfigs(ctx context.Context) {
	c.mu.Lock()
	c.tiers = nil
	c.rateRules = nil
	c.mu.Unlock()
	c.log.Info("config lookups invalidated")
}

// EnsureReady warms every view and both config lookups. Called at startup so
// the first request after boot does not pay the rebuild cost.
func (c *RankingCache) EnsureReady(ctx context.Context) error {
	if _, err := c.TierTable(ctx); err != nil {
		return err
	}
	if _, err := c.RateRules(ctx); err != nil {
		return err
	}
	for _, key := range ranking.AllViewKeys() {
		if _, err := c.GetView(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// KVStatus reports the external cache layer's health.
func (c *RankingCache) KVStatus(ctx context.Context) kv.Status {
	return c.kvc.Status(ctx)
}

// ResetKV re-enables the external cache layer after a manual quota raise.
func (c *RankingCache) ResetKV() {
	c.kvc.Reset()
}
