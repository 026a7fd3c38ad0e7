package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/camr-club/ranking-hub/internal/domain/shared"
)

// Gate implements command.VersionedStore on top of the resource registry.
// The core primitive is a single UPDATE matching on id AND version: the
// database decides the race, no read-modify-write window exists.
type Gate struct {
	conn     *Connection
	registry *Registry
}

// NewGate builds the gate.
func NewGate(conn *Connection, registry *Registry) *Gate {
	return &Gate{conn: conn, registry: registry}
}

// UpdateVersioned applies fields to one row iff its version matches.
func (g *Gate) UpdateVersioned(ctx context.Context, resource string, id int64, expected int, fields map[string]any) error {
	res, ok := g.registry.Get(resource)
	if !ok {
		return shared.NewDomainError("postgres", "UpdateVersioned", shared.ErrInvalidInput, "unknown resource "+resource)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := res.Columns[name]; !ok {
			return shared.NewDomainError("postgres", "UpdateVersioned", shared.ErrInvalidInput,
				fmt.Sprintf("field %q is not writable on %s", name, resource))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if err := g.checkUnique(ctx, res, id, fields); err != nil {
		return err
	}

	setClauses := make([]string, 0, len(names)+2)
	args := make([]any, 0, len(names)+2)
	for i, name := range names {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", res.Columns[name], i+1))
		args = append(args, fields[name])
	}
	setClauses = append(setClauses,
		"version = version + 1",
		fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d AND version = $%d AND NOT deleted",
		res.Table, strings.Join(setClauses, ", "), len(args)+1, len(args)+2,
	)
	args = append(args, id, expected)

	tag, err := g.conn.Exec(ctx, query, args...)
	if err != nil {
		if IsUniqueViolation(err) {
			// A concurrent insert slipped past the precheck.
			return &shared.DuplicateKeyError{Resource: resource, Field: strings.Join(res.Unique, ","), Value: ""}
		}
		return shared.WrapError("postgres", "UpdateVersioned", shared.ErrStoreFailure, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return g.conflict(ctx, res, resource, id)
	}
	return nil
}

// SoftDeleteVersioned marks one row deleted under the same version gate.
func (g *Gate) SoftDeleteVersioned(ctx context.Context, resource string, id int64, expected int) error {
	res, ok := g.registry.Get(resource)
	if !ok {
		return shared.NewDomainError("postgres", "SoftDeleteVersioned", shared.ErrInvalidInput, "unknown resource "+resource)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET deleted = TRUE, version = version + 1, updated_at = $1 WHERE id = $2 AND version = $3 AND NOT deleted",
		res.Table,
	)
	tag, err := g.conn.Exec(ctx, query, time.Now().UTC(), id, expected)
	if err != nil {
		return shared.WrapError("postgres", "SoftDeleteVersioned", shared.ErrStoreFailure, "soft delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return g.conflict(ctx, res, resource, id)
	}
	return nil
}

// Restore clears the deleted flag. No version check: the row cannot be
// concurrently edited while hidden.
func (g *Gate) Restore(ctx context.Context, resource string, id int64) error {
	res, ok := g.registry.Get(resource)
	if !ok {
		return shared.NewDomainError("postgres", "Restore", shared.ErrInvalidInput, "unknown resource "+resource)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET deleted = FALSE, version = version + 1, updated_at = $1 WHERE id = $2 AND deleted",
		res.Table,
	)
	tag, err := g.conn.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return shared.WrapError("postgres", "Restore", shared.ErrStoreFailure, "restore failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError(resource, "Restore", shared.ErrNotFound, "no deleted row to restore")
	}
	return nil
}

// checkUnique pre-checks the unique fields present in the payload so the
// caller gets a field-scoped error instead of a raw constraint violation.
func (g *Gate) checkUnique(ctx context.Context, res Resource, id int64, fields map[string]any) error {
	for _, field := range res.Unique {
		value, ok := fields[field]
		if !ok || value == nil {
			continue
		}

		query := fmt.Sprintf(
			"SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND id <> $2 AND NOT deleted)",
			res.Table, res.Columns[field],
		)
		var exists bool
		if err := g.conn.QueryRow(ctx, query, value, id).Scan(&exists); err != nil {
			return shared.WrapError("postgres", "checkUnique", shared.ErrStoreFailure, "uniqueness check failed", err)
		}
		if exists {
			return &shared.DuplicateKeyError{
				Resource: res.Name,
				Field:    field,
				Value:    fmt.Sprintf("%v", value),
			}
		}
	}
	return nil
}

// conflict distinguishes a missing row from a version mismatch and loads the
// row's current version for the conflict payload.
func (g *Gate) conflict(ctx context.Context, res Resource, resource string, id int64) error {
	query := fmt.Sprintf("SELECT version, deleted, updated_at FROM %s WHERE id = $1", res.Table)

	var version int
	var deleted bool
	var updatedAt time.Time
	err := g.conn.QueryRow(ctx, query, id).Scan(&version, &deleted, &updatedAt)
	if IsNoRows(err) {
		return shared.NewDomainError(resource, "Update", shared.ErrNotFound, "row not found")
	}
	if err != nil {
		return shared.WrapError("postgres", "conflict", shared.ErrStoreFailure, "conflict lookup failed", err)
	}

	return &shared.LockConflictError{
		Resource:       resource,
		ID:             id,
		CurrentVersion: version,
		LastModified:   updatedAt,
	}
}
