// Package command implements the write-side application services: the
// version-gated mutation path and the two finalization workflows. Every
// mutation in the system funnels through this package so cache invalidation
// and optimistic-lock rules are applied in exactly one place.
package command

import (
	"context"
	"encoding/json"

	"github.com/camr-club/ranking-hub/internal/domain/shared"
	"github.com/camr-club/ranking-hub/pkg/logger"
)

// versionKeys are the payload fields accepted as the expected version.
var versionKeys = []string{"version", "_version"}

// VersionFromPayload extracts the caller-supplied expected version from an
// update payload. Returns false when no version field is present or the
// value is not a whole number.
func VersionFromPayload(payload map[string]any) (int, bool) {
	for _, key := range versionKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			if v == float64(int(v)) {
				return int(v), true
			}
			return 0, false
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return 0, false
			}
			return int(n), true
		default:
			return 0, false
		}
	}
	return 0, false
}

// stripVersion returns a copy of the payload without the version fields, so
// the stored column list never includes them.
func stripVersion(payload map[string]any) map[string]any {
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		fields[k] = v
	}
	for _, key := range versionKeys {
		delete(fields, key)
	}
	return fields
}

// VersionedStore is the persistence primitive the gate drives: a single
// atomic compare-and-set per row, matching on id AND version.
type VersionedStore interface {
	// UpdateVersioned applies fields to one row iff its version equals
	// expected, bumping the version by exactly one. A version mismatch (or
	// a soft-deleted row) yields a shared.LockConflictError; nothing is
	// written in that case.
	UpdateVersioned(ctx context.Context, resource string, id int64, expected int, fields map[string]any) error

	// SoftDeleteVersioned marks one row deleted under the same gate.
	SoftDeleteVersioned(ctx context.Context, resource string, id int64, expected int) error

	// Restore clears the deleted flag without a version check. Restoring
	// is an admin repair action; the row cannot be concurrently edited
	// while hidden.
	Restore(ctx context.Context, resource string, id int64) error
}

// ResourceTraits describes which caches a resource's mutations invalidate.
type ResourceTraits struct {
	InvalidatesRanking bool
	InvalidatesConfigs bool
}

// Catalog resolves resource names to their traits. The persistence layer's
// resource registry implements this.
type Catalog interface {
	Traits(resource string) (ResourceTraits, bool)
}

// Invalidator is the cache surface the gate touches after a committed write.
type Invalidator interface {
	InvalidateRanking(ctx context.Context)
	InvalidateConfigs(ctx context.Context)
}

// WriteGate is the single entry point for row mutations. It refuses
// versionless updates up front, delegates the compare-and-set to the store,
// and invalidates the affected caches only after the write succeeded.
type WriteGate struct {
	store   VersionedStore
	catalog Catalog
	caches  Invalidator
	log     *logger.Logger
}

// NewWriteGate builds the gate.
func NewWriteGate(store VersionedStore, catalog Catalog, caches Invalidator, log *logger.Logger) *WriteGate {
	return &WriteGate{
		store:   store,
		catalog: catalog,
		caches:  caches,
		log:     log.With(logger.Component("write_gate")),
	}
}

// Update applies a payload to one row. The payload must carry the expected
// version under "version" or "_version"; its remaining fields become the
// column updates.
func (g *WriteGate) Update(ctx context.Context, resource string, id int64, payload map[string]any) error {
	traits, ok := g.catalog.Traits(resource)
	if !ok {
		return shared.NewDomainError("write", "Update", shared.ErrInvalidInput, "unknown resource "+resource)
	}

	expected, ok := VersionFromPayload(payload)
	if !ok {
		return shared.NewDomainError("write", "Update", shared.ErrMissingVersion,
			"update to "+resource+" requires the expected version")
	}

	fields := stripVersion(payload)
	if len(fields) == 0 {
		return shared.NewDomainError("write", "Update", shared.ErrInvalidInput, "no fields to update")
	}

	if err := g.store.UpdateVersioned(ctx, resource, id, expected, fields); err != nil {
		return err
	}

	g.log.Info("row updated",
		logger.Resource(resource), logger.Int64("id", id), logger.Version(expected+1))
	g.invalidate(ctx, traits)
	return nil
}

// Delete soft-deletes one row under the version gate.
func (g *WriteGate) Delete(ctx context.Context, resource string, id int64, expected int) error {
	traits, ok := g.catalog.Traits(resource)
	if !ok {
		return shared.NewDomainError("write", "Delete", shared.ErrInvalidInput, "unknown resource "+resource)
	}

	if err := g.store.SoftDeleteVersioned(ctx, resource, id, expected); err != nil {
		return err
	}

	g.log.Info("row soft-deleted", logger.Resource(resource), logger.Int64("id", id))
	g.invalidate(ctx, traits)
	return nil
}

// Restore un-deletes one row. No version is required.
func (g *WriteGate) Restore(ctx context.Context, resource string, id int64) error {
	traits, ok := g.catalog.Traits(resource)
	if !ok {
		return shared.NewDomainError("write", "Restore", shared.ErrInvalidInput, "unknown resource "+resource)
	}

	if err := g.store.Restore(ctx, resource, id); err != nil {
		return err
	}

	g.log.Info("row restored", logger.Resource(resource), logger.Int64("id", id))
	g.invalidate(ctx, traits)
	return nil
}

// invalidate fires each cache invalidation the resource is flagged for. The
// two invalidations are independent; config-bearing resources (tiers, rate
// rules) carry both traits because tier fields are baked into view entries.
func (g *WriteGate) invalidate(ctx context.Context, traits ResourceTraits) {
	if traits.InvalidatesConfigs {
		g.caches.InvalidateConfigs(ctx)
	}
	if traits.InvalidatesRanking {
		g.caches.InvalidateRanking(ctx)
	}
}
