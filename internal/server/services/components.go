package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/metrics"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/components"
	"github.com/dmitrijs2005/cartographer/internal/server/tree"
)

// CreateComponent validates and stores a new component. Without an explicit
// order the component is appended after every component of its map. A
// non-empty external reference triggers a count refresh after commit.
func (s *CatalogService) CreateComponent(ctx context.Context, in ComponentInput) (*models.Component, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	c := &models.Component{
		MapID:    *in.Map,
		Level:    models.DefaultLevel,
		ParentID: in.Parent,
	}
	applyScalars(c, in)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mapRepo := s.repomanager.Maps(tx)
		repo := s.repomanager.Components(tx)

		locked, err := lockMaps(ctx, mapRepo, "map", c.MapID)
		if err != nil {
			return err
		}
		c.Publish = locked[c.MapID].Publish

		if c.ParentID != nil {
			if err := checkParent(ctx, repo, c.MapID, *c.ParentID); err != nil {
				return err
			}
		}

		if in.Order != nil {
			c.TreeIndex = *in.Order
			if err := checkSiblingIndex(ctx, repo, c); err != nil {
				return err
			}
		} else {
			if c.TreeIndex, err = repo.NextTreeIndex(ctx, c.MapID); err != nil {
				return err
			}
		}

		now := s.now()
		c.Created, c.Modified = now, now
		if err := repo.Create(ctx, c); err != nil {
			return err
		}
		return mapRepo.Touch(ctx, c.MapID, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "component created", "component", c.ID, "map", c.MapID, "order", c.TreeIndex)

	return s.refreshAfterWrite(ctx, c), nil
}

// GetComponent returns the component with its ancestors and children.
func (s *CatalogService) GetComponent(ctx context.Context, id int64) (*ComponentDetail, error) {
	repo := s.repomanager.Components(s.db)

	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	siblings, err := repo.ListByMap(ctx, c.MapID)
	if err != nil {
		return nil, err
	}

	arena := tree.NewArena(siblings)
	ancestors, err := arena.Ancestors(id)
	if err != nil {
		return nil, fmt.Errorf("component %d: %w", id, err)
	}
	return &ComponentDetail{Component: c, Ancestors: ancestors, Children: arena.Children(id)}, nil
}

// UpdateComponent revalidates every invariant against the requested state
// before writing anything.
func (s *CatalogService) UpdateComponent(ctx context.Context, id int64, in ComponentInput, full bool) (*models.Component, error) {
	if err := in.validate(full); err != nil {
		return nil, err
	}

	var c *models.Component
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mapRepo := s.repomanager.Maps(tx)
		repo := s.repomanager.Components(tx)

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		targetMap := current.MapID
		if in.Map != nil {
			targetMap = *in.Map
		}
		locked, err := lockMaps(ctx, mapRepo, "map", current.MapID, targetMap)
		if err != nil {
			return err
		}
		// re-read under the lock
		if current, err = repo.GetByID(ctx, id); err != nil {
			return err
		}

		owned, err := repo.ListByMap(ctx, current.MapID)
		if err != nil {
			return err
		}
		arena := tree.NewArena(owned)
		moved := targetMap != current.MapID
		if moved && len(arena.Children(id)) > 0 {
			return common.NewValidationError("map", "A component with children cannot be moved to another map.")
		}

		next := *current
		next.MapID = targetMap
		next.Publish = locked[targetMap].Publish
		applyScalars(&next, in)
		if in.ParentSet {
			next.ParentID = in.Parent
		}
		if moved && !in.ParentSet {
			// the old parent stays behind
			next.ParentID = nil
		}

		if next.ParentID != nil {
			if err := checkParent(ctx, repo, targetMap, *next.ParentID); err != nil {
				return err
			}
			if !moved && arena.WouldCycle(id, *next.ParentID) {
				return common.NewValidationError("parent", "A component cannot be its own ancestor.")
			}
		}

		placeChanged := moved || !sameParent(current.ParentID, next.ParentID)
		switch {
		case in.Order != nil:
			next.TreeIndex = *in.Order
			if err := checkSiblingIndex(ctx, repo, &next); err != nil {
				return err
			}
		case placeChanged:
			taken, err := repo.SiblingIndexTaken(ctx, next.MapID, next.ParentID, next.TreeIndex, id)
			if err != nil {
				return err
			}
			if taken {
				if next.TreeIndex, err = repo.NextTreeIndex(ctx, next.MapID); err != nil {
					return err
				}
			}
		}

		now := s.now()
		next.Modified = now
		if err := repo.Update(ctx, &next); err != nil {
			return err
		}
		for mapID := range locked {
			if err := mapRepo.Touch(ctx, mapID, now); err != nil {
				return err
			}
		}
		c = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "component updated", "component", c.ID, "map", c.MapID)

	return s.refreshAfterWrite(ctx, c), nil
}

// DeleteComponent removes the component and its whole subtree, writing a
// tombstone per removed row first.
func (s *CatalogService) DeleteComponent(ctx context.Context, id int64) error {
	var removed int
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mapRepo := s.repomanager.Maps(tx)
		repo := s.repomanager.Components(tx)
		tombstoneRepo := s.repomanager.Tombstones(tx)

		c, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := mapRepo.LockByID(ctx, c.MapID); err != nil {
			return err
		}
		owned, err := repo.ListByMap(ctx, c.MapID)
		if err != nil {
			return err
		}

		subtree := append([]*models.Component{c}, tree.NewArena(owned).Descendants(id)...)
		now := s.now()
		for _, d := range subtree {
			if err := tombstoneRepo.Create(ctx, tombstoneFor(d, now)); err != nil {
				return err
			}
		}
		if _, err := repo.DeleteSubtree(ctx, id); err != nil {
			return err
		}
		removed = len(subtree)
		return mapRepo.Touch(ctx, c.MapID, now)
	})
	if err != nil {
		return err
	}

	metrics.TombstonesWritten.WithLabelValues("component").Add(float64(removed))
	s.logger.Info(ctx, "component deleted", "component", id, "removed", removed)
	return nil
}

// ObjectsBefore is the number of external objects preceding the component in
// its map: one per component with a lower order index plus their cached
// child counts. The external system is never consulted.
func (s *CatalogService) ObjectsBefore(ctx context.Context, id int64) (int64, error) {
	repo := s.repomanager.Components(s.db)

	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	preceding, objects, err := repo.CountBefore(ctx, c.MapID, c.TreeIndex)
	if err != nil {
		return 0, err
	}
	return tree.Position{Preceding: preceding, Objects: objects}.ObjectsBefore(), nil
}

// RefreshCount asks the external system how many published objects sit under
// the component's reference and caches the answer. Nothing is written when
// the count is unchanged.
func (s *CatalogService) RefreshCount(ctx context.Context, id int64) (*models.Component, error) {
	repo := s.repomanager.Components(s.db)

	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ArchivesSpaceURI == "" {
		return c, nil
	}

	count, err := s.archive.CountMatching(ctx, c.ArchivesSpaceURI)
	if err != nil {
		metrics.CountRefreshes.WithLabelValues(metrics.StatusError).Inc()
		return c, err
	}
	metrics.CountRefreshes.WithLabelValues(metrics.StatusOK).Inc()
	if count == c.ChildCount {
		return c, nil
	}

	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Components(tx).UpdateChildCount(ctx, id, count, now); err != nil {
			return err
		}
		return s.repomanager.Maps(tx).Touch(ctx, c.MapID, now)
	})
	if err != nil {
		return c, err
	}

	c.ChildCount, c.Modified = count, now
	s.logger.Debug(ctx, "child count refreshed", "component", id, "count", count)
	return c, nil
}

// refreshAfterWrite runs the count refresh for a freshly written component.
// Failures are logged and the cached count stays as it was.
func (s *CatalogService) refreshAfterWrite(ctx context.Context, c *models.Component) *models.Component {
	if c.ArchivesSpaceURI == "" {
		return c
	}
	refreshed, err := s.RefreshCount(ctx, c.ID)
	if err != nil {
		s.logger.Warn(ctx, "child count refresh failed", "component", c.ID, "uri", c.ArchivesSpaceURI, "error", err)
		return c
	}
	return refreshed
}

func applyScalars(c *models.Component, in ComponentInput) {
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.ArchivesSpaceURI != nil {
		c.ArchivesSpaceURI = *in.ArchivesSpaceURI
	}
	if in.Level != nil {
		c.Level = models.NormalizeLevel(*in.Level)
	}
}

func checkParent(ctx context.Context, repo components.Repository, mapID, parentID int64) error {
	p, err := repo.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewValidationError("parent", "Invalid pk \"%d\" - object does not exist.", parentID)
		}
		return err
	}
	if p.MapID != mapID {
		return common.NewValidationError("parent", "Parent component belongs to a different map.")
	}
	return nil
}

func checkSiblingIndex(ctx context.Context, repo components.Repository, c *models.Component) error {
	taken, err := repo.SiblingIndexTaken(ctx, c.MapID, c.ParentID, c.TreeIndex, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return common.NewValidationError("order", "Order %d is already used by a sibling.", c.TreeIndex)
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
