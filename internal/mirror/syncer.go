// Package mirror keeps a local SQLite copy of the catalog current by polling
// its "changed since" feeds and the deletion feed.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/mirror/repositories/metadata"
	"github.com/dmitrijs2005/cartographer/internal/mirror/repositories/records"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/tree"
	"golang.org/x/sync/errgroup"
)

// CursorKey is the metadata key holding the cursor: the newest server
// timestamp, in Unix seconds, seen by the last successful sync.
const CursorKey = "last_sync"

const detailConcurrency = 8

// Source is the remote catalog. *client.Client implements it.
type Source interface {
	Maps(ctx context.Context, since int64, published bool) ([]*models.Map, error)
	// ComponentChanges lists changed components as stubs carrying only
	// ID, MapID and Modified.
	ComponentChanges(ctx context.Context, since int64, published bool) ([]*models.Component, error)
	Component(ctx context.Context, id int64) (*models.Component, error)
	Deleted(ctx context.Context, since int64) ([]*models.Tombstone, error)
}

// Result summarizes one sync run.
type Result struct {
	Since      int64
	Next       int64
	Maps       int
	Components int
	Deleted    int
}

type Syncer struct {
	db        *sql.DB
	source    Source
	published bool
	logger    logging.Logger
	now       func() time.Time
}

func NewSyncer(db *sql.DB, source Source, published bool, logger logging.Logger) *Syncer {
	return &Syncer{
		db:        db,
		source:    source,
		published: published,
		logger:    logger.With("module", "mirror"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Cursor returns the stored cursor, 0 before the first sync.
func (s *Syncer) Cursor(ctx context.Context) (int64, error) {
	return readCursor(ctx, metadata.NewSQLiteRepository(s.db))
}

// Reset forgets the cursor so the next sync starts from the epoch.
func (s *Syncer) Reset(ctx context.Context) error {
	return metadata.NewSQLiteRepository(s.db).Delete(ctx, CursorKey)
}

func readCursor(ctx context.Context, repo metadata.Repository) (int64, error) {
	raw, err := repo.Get(ctx, CursorKey)
	if err != nil || raw == nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cursor %q: %w", raw, err)
	}
	return v, nil
}

// Sync pulls everything changed since the stored cursor and applies it in one
// transaction. The cursor only advances when the whole run succeeds, and only
// to timestamps the server itself reported, so the local clock never moves it.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	since, err := s.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	started := s.now()

	maps, err := s.source.Maps(ctx, since, s.published)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	listed, components, err := s.fetchComponents(ctx, since)
	if err != nil {
		return nil, err
	}
	deleted, err := s.source.Deleted(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list deletions: %w", err)
	}

	next := nextCursor(since, maps, listed, deleted)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)
		for _, m := range maps {
			if err := repo.UpsertMap(ctx, m); err != nil {
				return err
			}
		}
		for _, c := range components {
			if err := repo.UpsertComponent(ctx, c); err != nil {
				return err
			}
		}
		for _, t := range deleted {
			if err := s.applyTombstone(ctx, repo, t); err != nil {
				return err
			}
		}
		return metadata.NewSQLiteRepository(tx).Set(ctx, CursorKey, []byte(strconv.FormatInt(next, 10)))
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Since: since, Next: next, Maps: len(maps), Components: len(components), Deleted: len(deleted)}
	s.logger.Info(ctx, "sync complete", "since", since, "next", next, "maps", res.Maps,
		"components", res.Components, "deleted", res.Deleted, "took", s.now().Sub(started))
	return res, nil
}

// nextCursor is the newest timestamp found in the feeds, floored to the
// second. Feeds match inclusively, so rows sharing that second are read
// again next time rather than lost.
func nextCursor(since int64, maps []*models.Map, listed []*models.Component, deleted []*models.Tombstone) int64 {
	next := since
	seen := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if u := t.Unix(); u > next {
			next = u
		}
	}
	for _, m := range maps {
		seen(m.Modified)
	}
	for _, c := range listed {
		seen(c.Modified)
	}
	for _, t := range deleted {
		seen(t.Deleted)
	}
	return next
}

// fetchComponents loads the detail of every changed component. A component
// that vanished in between is skipped; its tombstone arrives with the
// deletion feed.
func (s *Syncer) fetchComponents(ctx context.Context, since int64) (listed, details []*models.Component, err error) {
	listed, err = s.source.ComponentChanges(ctx, since, s.published)
	if err != nil {
		return nil, nil, fmt.Errorf("list components: %w", err)
	}

	details = make([]*models.Component, len(listed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, stub := range listed {
		id := stub.ID
		g.Go(func() error {
			c, err := s.source.Component(gctx, id)
			if errors.Is(err, common.ErrorNotFound) {
				s.logger.Debug(gctx, "component gone before fetch", "id", id)
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch component %d: %w", id, err)
			}
			details[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]*models.Component, 0, len(details))
	for _, c := range details {
		if c != nil {
			out = append(out, c)
		}
	}
	return listed, out, nil
}

func (s *Syncer) applyTombstone(ctx context.Context, repo records.Repository, t *models.Tombstone) error {
	if id, ok := refID(t.Ref, common.MapRefPrefix); ok {
		return repo.DeleteMap(ctx, id)
	}
	if id, ok := refID(t.Ref, common.ComponentRefPrefix); ok {
		return repo.DeleteComponent(ctx, id)
	}
	s.logger.Warn(ctx, "unknown tombstone ref", "ref", t.Ref)
	return nil
}

// refID extracts the id from a locator such as "/api/maps/12/".
func refID(ref, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(ref, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(rest, "/"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ObjectsBefore answers the position query from the mirrored rows.
func (s *Syncer) ObjectsBefore(ctx context.Context, componentID int64) (int64, error) {
	repo := records.NewSQLiteRepository(s.db)
	c, err := repo.GetComponent(ctx, componentID)
	if err != nil {
		return 0, err
	}
	siblings, err := repo.ListComponents(ctx, c.MapID)
	if err != nil {
		return 0, err
	}
	return tree.PositionOf(siblings, c).ObjectsBefore(), nil
}

// Tree renders the mirrored components of a map as a nested forest.
func (s *Syncer) Tree(ctx context.Context, mapID int64) ([]*tree.Node, error) {
	components, err := records.NewSQLiteRepository(s.db).ListComponents(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return tree.NewArena(components).Build()
}

// OutlineEntry is one line of a map outline.
type OutlineEntry struct {
	Depth     int
	Component *models.Component
}

// Outline lists the mirrored components of a map in reading order with
// their nesting depth, roots at depth 0.
func (s *Syncer) Outline(ctx context.Context, mapID int64) ([]OutlineEntry, error) {
	components, err := records.NewSQLiteRepository(s.db).ListComponents(ctx, mapID)
	if err != nil {
		return nil, err
	}
	arena := tree.NewArena(components)
	order, err := arena.PreOrder()
	if err != nil {
		return nil, err
	}
	out := make([]OutlineEntry, 0, len(order))
	for _, c := range order {
		d, err := arena.Depth(c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, OutlineEntry{Depth: d, Component: c})
	}
	return out, nil
}
