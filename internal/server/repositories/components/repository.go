// Package components declares and implements persistence for map components.
package components

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// Repository stores Component rows. Reads fill Component.Publish from the
// owning map.
type Repository interface {
	// Create inserts c and fills ID. Order and parent constraint violations
	// come back as *common.ValidationError.
	Create(ctx context.Context, c *models.Component) error
	GetByID(ctx context.Context, id int64) (*models.Component, error)

	// ListByMap returns every component of the map ordered by tree index.
	ListByMap(ctx context.Context, mapID int64) ([]*models.Component, error)

	// Update persists the editable fields and Modified.
	Update(ctx context.Context, c *models.Component) error

	// UpdateChildCount stores a refreshed count; Modified moves to at.
	UpdateChildCount(ctx context.Context, id, count int64, at time.Time) error

	// DeleteSubtree removes the component with all of its descendants and
	// returns the number of rows removed.
	DeleteSubtree(ctx context.Context, id int64) (int64, error)
	DeleteByMap(ctx context.Context, mapID int64) error

	// ListModifiedSince pages components with modified >= q.Since, newest first.
	ListModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Component], error)

	// FindByURI returns the components referencing an external record.
	FindByURI(ctx context.Context, uri string, publishedOnly bool) ([]*models.Component, error)

	// SiblingIndexTaken reports whether another component under the same
	// (map, parent) already holds index. excludeID 0 excludes nothing.
	SiblingIndexTaken(ctx context.Context, mapID int64, parentID *int64, index, excludeID int64) (bool, error)

	// NextTreeIndex is one past the highest tree index used in the map.
	NextTreeIndex(ctx context.Context, mapID int64) (int64, error)

	// CountBefore returns how many components of the map sort before index
	// and the sum of their child counts.
	CountBefore(ctx context.Context, mapID, index int64) (preceding int64, objects int64, err error)
}
