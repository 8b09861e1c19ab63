package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/repomanager"
)

// SyncService answers the read-only "changed since" and deletion feeds that
// downstream clients poll. It takes no locks and never calls the external
// system.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	archive     ArchivalClient
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, archive ArchivalClient) *SyncService {
	return &SyncService{db: db, repomanager: m, archive: archive}
}

// MapsModifiedSince returns maps with modified >= q.Since, newest first.
func (s *SyncService) MapsModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Map], error) {
	return s.repomanager.Maps(s.db).ListModifiedSince(ctx, q)
}

// ComponentsModifiedSince returns components with modified >= q.Since. With
// q.PublishedOnly only components of published maps are included.
func (s *SyncService) ComponentsModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Component], error) {
	return s.repomanager.Components(s.db).ListModifiedSince(ctx, q)
}

// DeletedSince returns tombstones with deleted >= q.Since, newest first.
func (s *SyncService) DeletedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Tombstone], error) {
	return s.repomanager.Tombstones(s.db).ListDeletedSince(ctx, q)
}

// FindByURI returns every component whose external reference equals uri.
func (s *SyncService) FindByURI(ctx context.Context, uri string, publishedOnly bool) ([]*models.Component, error) {
	return s.repomanager.Components(s.db).FindByURI(ctx, uri, publishedOnly)
}

// FetchResource passes a resource lookup through to the external system.
func (s *SyncService) FetchResource(ctx context.Context, resourceID string) (map[string]any, error) {
	return s.archive.FetchResource(ctx, resourceID)
}
