package player

import (
	"context"
)

// Repository defines read access to player aggregates.
// The write path never goes through here: every mutation in the system uses
// the version-gated update primitive of the persistence layer.
type Repository interface {
	// ListAggregates returns all non-deleted aggregates for one mode, with
	// display names populated. Order is unspecified; ranking assembly sorts.
	ListAggregates(ctx context.Context, sanma bool) ([]*Aggregate, error)

	// GetAggregate returns a single aggregate row by id.
	GetAggregate(ctx context.Context, id int64) (*Aggregate, error)
}
