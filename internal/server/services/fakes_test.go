package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cartographer/internal/archivesspace"
	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/components"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/maps"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/tombstones"
)

// -------- in-memory store behind the repository interfaces --------

type store struct {
	maps       map[int64]*models.Map
	components map[int64]*models.Component
	tombstones []*models.Tombstone
	nextID     int64

	// log records write calls in order, e.g. "tombstone /api/maps/1/".
	log []string

	tombstoneErr error
	locked       []int64
}

func newStore() *store {
	return &store{maps: map[int64]*models.Map{}, components: map[int64]*models.Component{}}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) addMap(title string, publish bool) *models.Map {
	m := &models.Map{ID: s.id(), Title: title, Publish: publish}
	s.maps[m.ID] = m
	return m
}

func (s *store) addComponent(mapID int64, parent *int64, idx, childCount int64, uri string) *models.Component {
	c := &models.Component{
		ID: s.id(), Title: fmt.Sprintf("c%d", idx), MapID: mapID, ParentID: parent,
		TreeIndex: idx, ChildCount: childCount, ArchivesSpaceURI: uri, Level: models.DefaultLevel,
	}
	s.components[c.ID] = c
	return c
}

func (s *store) copyComponent(c *models.Component) *models.Component {
	cp := *c
	if m, ok := s.maps[c.MapID]; ok {
		cp.Publish = m.Publish
	}
	return &cp
}

type fakeMaps struct {
	maps.Repository
	s *store
}

func (f *fakeMaps) Create(ctx context.Context, m *models.Map) error {
	m.ID = f.s.id()
	cp := *m
	f.s.maps[m.ID] = &cp
	return nil
}

func (f *fakeMaps) GetByID(ctx context.Context, id int64) (*models.Map, error) {
	m, ok := f.s.maps[id]
	if !ok {
		return nil, fmt.Errorf("map %d: %w", id, common.ErrorNotFound)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMaps) LockByID(ctx context.Context, id int64) (*models.Map, error) {
	m, err := f.GetByID(ctx, id)
	if err == nil {
		f.s.locked = append(f.s.locked, id)
	}
	return m, err
}

func (f *fakeMaps) Update(ctx context.Context, m *models.Map) error {
	cp := *m
	f.s.maps[m.ID] = &cp
	return nil
}

func (f *fakeMaps) Touch(ctx context.Context, id int64, at time.Time) error {
	f.s.maps[id].Modified = at
	f.s.log = append(f.s.log, fmt.Sprintf("touch %d", id))
	return nil
}

func (f *fakeMaps) Delete(ctx context.Context, id int64) error {
	delete(f.s.maps, id)
	f.s.log = append(f.s.log, fmt.Sprintf("delete map %d", id))
	return nil
}

func (f *fakeMaps) ListModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Map], error) {
	page := &models.Page[*models.Map]{}
	for _, m := range f.s.maps {
		if !m.Modified.Before(q.Since) && (!q.PublishedOnly || m.Publish) {
			cp := *m
			page.Items = append(page.Items, &cp)
		}
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

type fakeComponents struct {
	components.Repository
	s *store
}

func (f *fakeComponents) Create(ctx context.Context, c *models.Component) error {
	c.ID = f.s.id()
	cp := *c
	f.s.components[c.ID] = &cp
	f.s.log = append(f.s.log, fmt.Sprintf("create component %d", c.ID))
	return nil
}

func (f *fakeComponents) GetByID(ctx context.Context, id int64) (*models.Component, error) {
	c, ok := f.s.components[id]
	if !ok {
		return nil, fmt.Errorf("component %d: %w", id, common.ErrorNotFound)
	}
	return f.s.copyComponent(c), nil
}

func (f *fakeComponents) ListByMap(ctx context.Context, mapID int64) ([]*models.Component, error) {
	var out []*models.Component
	for _, c := range f.s.components {
		if c.MapID == mapID {
			out = append(out, f.s.copyComponent(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TreeIndex != out[j].TreeIndex {
			return out[i].TreeIndex < out[j].TreeIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeComponents) Update(ctx context.Context, c *models.Component) error {
	cp := *c
	f.s.components[c.ID] = &cp
	return nil
}

func (f *fakeComponents) UpdateChildCount(ctx context.Context, id, count int64, at time.Time) error {
	f.s.components[id].ChildCount = count
	f.s.components[id].Modified = at
	return nil
}

func (f *fakeComponents) DeleteSubtree(ctx context.Context, id int64) (int64, error) {
	var n int64
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range f.s.components {
			if c.ParentID != nil && *c.ParentID == cur {
				queue = append(queue, c.ID)
			}
		}
		delete(f.s.components, cur)
		n++
	}
	f.s.log = append(f.s.log, fmt.Sprintf("delete subtree %d", id))
	return n, nil
}

func (f *fakeComponents) DeleteByMap(ctx context.Context, mapID int64) error {
	for id, c := range f.s.components {
		if c.MapID == mapID {
			delete(f.s.components, id)
		}
	}
	f.s.log = append(f.s.log, fmt.Sprintf("delete components of %d", mapID))
	return nil
}

func (f *fakeComponents) ListModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Component], error) {
	page := &models.Page[*models.Component]{}
	for _, c := range f.s.components {
		cp := f.s.copyComponent(c)
		if !c.Modified.Before(q.Since) && (!q.PublishedOnly || cp.Publish) {
			page.Items = append(page.Items, cp)
		}
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

func (f *fakeComponents) FindByURI(ctx context.Context, uri string, publishedOnly bool) ([]*models.Component, error) {
	var out []*models.Component
	for _, c := range f.s.components {
		cp := f.s.copyComponent(c)
		if c.ArchivesSpaceURI == uri && (!publishedOnly || cp.Publish) {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *fakeComponents) SiblingIndexTaken(ctx context.Context, mapID int64, parentID *int64, index, excludeID int64) (bool, error) {
	for _, c := range f.s.components {
		if c.MapID == mapID && sameParent(c.ParentID, parentID) && c.TreeIndex == index && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeComponents) NextTreeIndex(ctx context.Context, mapID int64) (int64, error) {
	var next int64
	for _, c := range f.s.components {
		if c.MapID == mapID && c.TreeIndex >= next {
			next = c.TreeIndex + 1
		}
	}
	return next, nil
}

func (f *fakeComponents) CountBefore(ctx context.Context, mapID, index int64) (int64, int64, error) {
	var preceding, objects int64
	for _, c := range f.s.components {
		if c.MapID == mapID && c.TreeIndex < index {
			preceding++
			objects += c.ChildCount
		}
	}
	return preceding, objects, nil
}

type fakeTombstones struct {
	tombstones.Repository
	s *store
}

func (f *fakeTombstones) Create(ctx context.Context, t *models.Tombstone) error {
	if f.s.tombstoneErr != nil {
		return f.s.tombstoneErr
	}
	t.ID = f.s.id()
	cp := *t
	f.s.tombstones = append(f.s.tombstones, &cp)
	f.s.log = append(f.s.log, "tombstone "+t.Ref)
	return nil
}

func (f *fakeTombstones) ListDeletedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Tombstone], error) {
	page := &models.Page[*models.Tombstone]{}
	for _, t := range f.s.tombstones {
		if !t.Deleted.Before(q.Since) {
			page.Items = append(page.Items, t)
		}
	}
	page.Total = int64(len(page.Items))
	return page, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	s *store
}

func (f *fakeRepoManager) Maps(db dbx.DBTX) maps.Repository { return &fakeMaps{s: f.s} }
func (f *fakeRepoManager) Components(db dbx.DBTX) components.Repository {
	return &fakeComponents{s: f.s}
}
func (f *fakeRepoManager) Tombstones(db dbx.DBTX) tombstones.Repository {
	return &fakeTombstones{s: f.s}
}

// -------- fake archival system --------

type fakeArchive struct {
	mu      sync.Mutex
	records map[string]archivesspace.Record
	counts  map[string]int64

	failFetch  map[string]error
	failUpdate map[string]error
	// blockFetch holds Fetch of a uri until its context is done
	blockFetch map[string]bool
	emptyFetch map[string]bool
	countErr   error

	updates []string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		records:    map[string]archivesspace.Record{},
		counts:     map[string]int64{},
		failFetch:  map[string]error{},
		failUpdate: map[string]error{},
		blockFetch: map[string]bool{},
		emptyFetch: map[string]bool{},
	}
}

func (f *fakeArchive) Fetch(ctx context.Context, uri string) (archivesspace.Record, error) {
	f.mu.Lock()
	block := f.blockFetch[uri]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emptyFetch[uri] {
		return nil, nil
	}
	if err := f.failFetch[uri]; err != nil {
		return nil, err
	}
	rec, ok := f.records[uri]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := archivesspace.Record{}
	for k, v := range rec {
		cp[k] = v
	}
	return cp, nil
}

func (f *fakeArchive) Update(ctx context.Context, uri string, rec archivesspace.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdate[uri]; err != nil {
		return err
	}
	f.records[uri] = rec
	f.updates = append(f.updates, uri)
	return nil
}

func (f *fakeArchive) CountMatching(ctx context.Context, uri string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[uri], nil
}

func (f *fakeArchive) FetchResource(ctx context.Context, id string) (archivesspace.Record, error) {
	return f.Fetch(ctx, "/repositories/2/resources/"+id)
}

// -------- wiring --------

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc     *CatalogService
	store   *store
	archive *fakeArchive
	mock    sqlmock.Sqlmock
	db      *sql.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New err: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := newStore()
	archive := newFakeArchive()
	svc := NewCatalogService(db, &fakeRepoManager{s: st}, archive, NewPropagator(archive, 1, logging.Nop()), logging.Nop())
	svc.now = func() time.Time { return fixedNow }
	return &harness{svc: svc, store: st, archive: archive, mock: mock, db: db}
}

func (h *harness) expectCommit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func ptr[T any](v T) *T { return &v }
