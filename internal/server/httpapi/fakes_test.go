package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var stamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	Catalog

	maps       map[int64]*models.Map
	components map[int64]*models.Component

	updateMapErr error
	writeErr     error
	before       int64

	gotMapInput       services.MapInput
	gotComponentInput services.ComponentInput
	gotFull           bool
	deleted           []int64
	refreshed         []int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		maps:       map[int64]*models.Map{},
		components: map[int64]*models.Component{},
	}
}

func (f *fakeCatalog) CreateMap(_ context.Context, in services.MapInput) (*models.Map, error) {
	f.gotMapInput = in
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	m := &models.Map{ID: int64(len(f.maps) + 1), Created: stamp, Modified: stamp}
	if in.Title != nil {
		m.Title = *in.Title
	}
	if in.Publish != nil {
		m.Publish = *in.Publish
	}
	f.maps[m.ID] = m
	return m, nil
}

func (f *fakeCatalog) GetMap(_ context.Context, id int64) (*services.MapDetail, error) {
	m, ok := f.maps[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &services.MapDetail{Map: m}, nil
}

func (f *fakeCatalog) UpdateMap(_ context.Context, id int64, in services.MapInput, full bool) (*models.Map, error) {
	f.gotMapInput, f.gotFull = in, full
	m, ok := f.maps[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if in.Publish != nil {
		m.Publish = *in.Publish
	}
	return m, f.updateMapErr
}

func (f *fakeCatalog) DeleteMap(_ context.Context, id int64) error {
	if _, ok := f.maps[id]; !ok {
		return common.ErrorNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalog) CreateComponent(_ context.Context, in services.ComponentInput) (*models.Component, error) {
	f.gotComponentInput = in
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	c := &models.Component{ID: int64(len(f.components) + 1), MapID: *in.Map, ParentID: in.Parent, Level: models.DefaultLevel}
	if in.Title != nil {
		c.Title = *in.Title
	}
	f.components[c.ID] = c
	return c, nil
}

func (f *fakeCatalog) GetComponent(_ context.Context, id int64) (*services.ComponentDetail, error) {
	c, ok := f.components[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	d := &services.ComponentDetail{Component: c}
	for p := c.ParentID; p != nil; {
		parent := f.components[*p]
		d.Ancestors = append(d.Ancestors, parent)
		p = parent.ParentID
	}
	for _, other := range f.components {
		if other.ParentID != nil && *other.ParentID == id {
			d.Children = append(d.Children, other)
		}
	}
	return d, nil
}

func (f *fakeCatalog) UpdateComponent(_ context.Context, id int64, in services.ComponentInput, full bool) (*models.Component, error) {
	f.gotComponentInput, f.gotFull = in, full
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	c, ok := f.components[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if in.Title != nil {
		c.Title = *in.Title
	}
	return c, nil
}

func (f *fakeCatalog) DeleteComponent(_ context.Context, id int64) error {
	if _, ok := f.components[id]; !ok {
		return common.ErrorNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalog) ObjectsBefore(_ context.Context, id int64) (int64, error) {
	if _, ok := f.components[id]; !ok {
		return 0, common.ErrorNotFound
	}
	return f.before, nil
}

func (f *fakeCatalog) RefreshCount(_ context.Context, id int64) (*models.Component, error) {
	c, ok := f.components[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	f.refreshed = append(f.refreshed, id)
	return c, f.writeErr
}

type fakeFeeds struct {
	Feeds

	maps       []*models.Map
	components []*models.Component
	tombstones []*models.Tombstone
	record     map[string]any
	fetchErr   error

	gotQuery models.ListQuery
	gotURI   string
}

func pageOf[T any](items []T, q models.ListQuery) *models.Page[T] {
	start := min(q.Offset, len(items))
	end := min(start+q.Limit, len(items))
	return &models.Page[T]{Items: items[start:end], Total: int64(len(items))}
}

func (f *fakeFeeds) MapsModifiedSince(_ context.Context, q models.ListQuery) (*models.Page[*models.Map], error) {
	f.gotQuery = q
	return pageOf(f.maps, q), nil
}

func (f *fakeFeeds) ComponentsModifiedSince(_ context.Context, q models.ListQuery) (*models.Page[*models.Component], error) {
	f.gotQuery = q
	return pageOf(f.components, q), nil
}

func (f *fakeFeeds) DeletedSince(_ context.Context, q models.ListQuery) (*models.Page[*models.Tombstone], error) {
	f.gotQuery = q
	return pageOf(f.tombstones, q), nil
}

func (f *fakeFeeds) FindByURI(_ context.Context, uri string, _ bool) ([]*models.Component, error) {
	f.gotURI = uri
	var out []*models.Component
	for _, c := range f.components {
		if c.ArchivesSpaceURI == uri {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeFeeds) FetchResource(_ context.Context, _ string) (map[string]any, error) {
	return f.record, f.fetchErr
}

type fakeExporter struct {
	result *services.SnapshotResult
	err    error
	gotID  int64
}

func (f *fakeExporter) Export(_ context.Context, mapID int64) (*services.SnapshotResult, error) {
	f.gotID = mapID
	return f.result, f.err
}

type testAPI struct {
	server   *HTTPServer
	catalog  *fakeCatalog
	feeds    *fakeFeeds
	exporter *fakeExporter
}

func newTestAPI(secret string) *testAPI {
	api := &testAPI{catalog: newFakeCatalog(), feeds: &fakeFeeds{}, exporter: &fakeExporter{}}
	api.server = NewHTTPServer("127.0.0.1:0", logging.Nop(), api.catalog, api.feeds, api.exporter, secret)
	return api
}

func (a *testAPI) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }
