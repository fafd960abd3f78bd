package cache

import (
	"context"

	"dppapi/internal/model"
)

// StatusCache is a display-only cache of derived aggregate statuses. It is
// never the source of truth: every mutation recomputes the status from the
// document collection and overwrites the cached value.
type StatusCache interface {
	// GetAggregate returns the cached status and whether it was present.
	GetAggregate(ctx context.Context, entityID string) (model.AggregateStatus, bool, error)
	// SetAggregate stores the status under the cache TTL.
	SetAggregate(ctx context.Context, entityID string, status model.AggregateStatus) error
	Close() error
}
