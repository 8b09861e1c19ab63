package services

import (
	"context"

	"github.com/dmitrijs2005/cartographer/internal/archivesspace"
)

// ArchivalClient is the external system of record. *archivesspace.Client
// implements it.
type ArchivalClient interface {
	// Fetch returns common.ErrorNotFound when the record is absent.
	Fetch(ctx context.Context, uri string) (archivesspace.Record, error)
	Update(ctx context.Context, uri string, rec archivesspace.Record) error
	// CountMatching counts published descendants of the record at uri.
	CountMatching(ctx context.Context, uri string) (int64, error)
	FetchResource(ctx context.Context, resourceID string) (archivesspace.Record, error)
}
