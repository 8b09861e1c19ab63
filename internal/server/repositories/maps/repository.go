// Package maps declares and implements persistence for arrangement maps.
package maps

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// Repository stores Map rows.
type Repository interface {
	// Create inserts m and fills ID, Created and Modified.
	Create(ctx context.Context, m *models.Map) error

	// GetByID returns common.ErrorNotFound for an unknown id.
	GetByID(ctx context.Context, id int64) (*models.Map, error)

	// LockByID reads the map and holds a row lock until the surrounding
	// transaction ends. Writes to a map's components serialize on it.
	LockByID(ctx context.Context, id int64) (*models.Map, error)

	// Update persists Title, Publish and Modified.
	Update(ctx context.Context, m *models.Map) error

	// Touch advances Modified after a change to an owned component.
	Touch(ctx context.Context, id int64, at time.Time) error

	Delete(ctx context.Context, id int64) error

	// ListModifiedSince pages maps with modified >= q.Since, newest first.
	ListModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Map], error)
}
