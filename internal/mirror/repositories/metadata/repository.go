// Package metadata stores small key/value settings of the local mirror, such
// as the sync cursor.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) for an absent key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
