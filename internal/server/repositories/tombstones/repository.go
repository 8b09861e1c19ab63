// Package tombstones persists deletion records for the change feed.
package tombstones

import (
	"context"

	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

type Repository interface {
	// Create inserts t and fills ID.
	Create(ctx context.Context, t *models.Tombstone) error

	// ListDeletedSince pages tombstones with deleted >= q.Since, newest first.
	ListDeletedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Tombstone], error)
}
