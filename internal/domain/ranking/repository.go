package ranking

import (
	"context"
)

// ConfigRepository defines read access to the ranking configuration tables.
type ConfigRepository interface {
	// ListTiers returns all tier rows, order unspecified.
	ListTiers(ctx context.Context) ([]Tier, error)

	// ListRateRules returns all rate-adjustment rows, order unspecified.
	ListRateRules(ctx context.Context) ([]RateRule, error)
}
