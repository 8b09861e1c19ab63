// Package records holds the mirrored maps and components.
package records

import (
	"context"

	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

type Repository interface {
	UpsertMap(ctx context.Context, m *models.Map) error
	UpsertComponent(ctx context.Context, c *models.Component) error
	// DeleteMap removes the map and every component that belongs to it.
	DeleteMap(ctx context.Context, id int64) error
	DeleteComponent(ctx context.Context, id int64) error
	GetComponent(ctx context.Context, id int64) (*models.Component, error)
	ListComponents(ctx context.Context, mapID int64) ([]*models.Component, error)
	Counts(ctx context.Context) (maps int64, components int64, err error)
}
