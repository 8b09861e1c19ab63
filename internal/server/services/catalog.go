// Package services contains the catalog server's business logic. This file
// implements CatalogService, which owns every write to maps and components:
// validation, per-map serialization, tombstones and modification stamps.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/metrics"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/maps"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cartographer/internal/server/tree"
)

// MapDetail is a map with its components rendered as a nested forest.
type MapDetail struct {
	Map  *models.Map
	Tree []*tree.Node
}

// ComponentDetail is a component with its ancestor chain (nearest first) and
// immediate children.
type ComponentDetail struct {
	Component *models.Component
	Ancestors []*models.Component
	Children  []*models.Component
}

type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	archive     ArchivalClient
	propagator  *Propagator
	logger      logging.Logger
	now         func() time.Time
}

func NewCatalogService(db *sql.DB, m repomanager.RepositoryManager, archive ArchivalClient,
	propagator *Propagator, logger logging.Logger) *CatalogService {
	return &CatalogService{
		db:          db,
		repomanager: m,
		archive:     archive,
		propagator:  propagator,
		logger:      logger.With("module", "catalog"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) CreateMap(ctx context.Context, in MapInput) (*models.Map, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	now := s.now()
	m := &models.Map{
		Title:    strings.TrimSpace(*in.Title),
		Created:  now,
		Modified: now,
	}
	if in.Publish != nil {
		m.Publish = *in.Publish
	}

	if err := s.repomanager.Maps(s.db).Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "map created", "map", m.ID)
	return m, nil
}

func (s *CatalogService) GetMap(ctx context.Context, id int64) (*MapDetail, error) {
	m, err := s.repomanager.Maps(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	components, err := s.repomanager.Components(s.db).ListByMap(ctx, id)
	if err != nil {
		return nil, err
	}

	forest, err := tree.NewArena(components).Build()
	if err != nil {
		return nil, fmt.Errorf("map %d: %w", id, err)
	}
	return &MapDetail{Map: m, Tree: forest}, nil
}

// UpdateMap applies in to the map. When the publish flag flips, the change is
// pushed to the external records after commit; a failure there comes back as
// a *common.PropagationError together with the saved map.
func (s *CatalogService) UpdateMap(ctx context.Context, id int64, in MapInput, full bool) (*models.Map, error) {
	if err := in.validate(full); err != nil {
		return nil, err
	}

	var m *models.Map
	var publishChanged bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Maps(tx)

		var err error
		m, err = repo.LockByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Title != nil {
			m.Title = strings.TrimSpace(*in.Title)
		}
		if in.Publish != nil && *in.Publish != m.Publish {
			m.Publish = *in.Publish
			publishChanged = true
		}
		m.Modified = s.now()
		return repo.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if !publishChanged {
		return m, nil
	}

	s.logger.Info(ctx, "map publish changed", "map", m.ID, "publish", m.Publish)
	components, err := s.repomanager.Components(s.db).ListByMap(ctx, m.ID)
	if err != nil {
		return m, &common.PropagationError{Ref: m.Ref(), Err: err}
	}
	return m, s.propagator.Propagate(ctx, m.Publish, components)
}

// DeleteMap removes the map and all of its components. A tombstone for the
// map and one per component are written first, in the same transaction.
func (s *CatalogService) DeleteMap(ctx context.Context, id int64) error {
	var written int
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mapRepo := s.repomanager.Maps(tx)
		componentRepo := s.repomanager.Components(tx)
		tombstoneRepo := s.repomanager.Tombstones(tx)

		m, err := mapRepo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		owned, err := componentRepo.ListByMap(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tombstoneRepo.Create(ctx, &models.Tombstone{Ref: m.Ref(), Deleted: now}); err != nil {
			return err
		}
		for _, c := range owned {
			if err := tombstoneRepo.Create(ctx, tombstoneFor(c, now)); err != nil {
				return err
			}
		}
		written = len(owned) + 1

		if err := componentRepo.DeleteByMap(ctx, id); err != nil {
			return err
		}
		return mapRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	metrics.TombstonesWritten.WithLabelValues("map").Inc()
	metrics.TombstonesWritten.WithLabelValues("component").Add(float64(written - 1))
	s.logger.Info(ctx, "map deleted", "map", id, "tombstones", written)
	return nil
}

func tombstoneFor(c *models.Component, at time.Time) *models.Tombstone {
	return &models.Tombstone{Ref: c.Ref(), ArchivesSpaceURI: c.ArchivesSpaceURI, Deleted: at}
}

// lockMaps takes row locks in ascending id order so two writers touching the
// same pair of maps cannot deadlock. A missing map is reported against field.
func lockMaps(ctx context.Context, m maps.Repository, field string, ids ...int64) (map[int64]*models.Map, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[int64]*models.Map, len(sorted))
	for _, id := range sorted {
		if _, ok := locked[id]; ok {
			continue
		}
		mp, err := m.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.NewValidationError(field, "Invalid pk \"%d\" - object does not exist.", id)
			}
			return nil, err
		}
		locked[id] = mp
	}
	return locked, nil
}
