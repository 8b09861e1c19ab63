// Package httpapi exposes the catalog over HTTP with gin: CRUD for maps and
// components, the sync feeds downstream clients poll, and /metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Catalog is the write side and the detail reads.
type Catalog interface {
	CreateMap(ctx context.Context, in services.MapInput) (*models.Map, error)
	GetMap(ctx context.Context, id int64) (*services.MapDetail, error)
	UpdateMap(ctx context.Context, id int64, in services.MapInput, full bool) (*models.Map, error)
	DeleteMap(ctx context.Context, id int64) error

	CreateComponent(ctx context.Context, in services.ComponentInput) (*models.Component, error)
	GetComponent(ctx context.Context, id int64) (*services.ComponentDetail, error)
	UpdateComponent(ctx context.Context, id int64, in services.ComponentInput, full bool) (*models.Component, error)
	DeleteComponent(ctx context.Context, id int64) error
	ObjectsBefore(ctx context.Context, id int64) (int64, error)
	RefreshCount(ctx context.Context, id int64) (*models.Component, error)
}

// Feeds is the read-only sync surface.
type Feeds interface {
	MapsModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Map], error)
	ComponentsModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Component], error)
	DeletedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Tombstone], error)
	FindByURI(ctx context.Context, uri string, publishedOnly bool) ([]*models.Component, error)
	FetchResource(ctx context.Context, resourceID string) (map[string]any, error)
}

type Exporter interface {
	Export(ctx context.Context, mapID int64) (*services.SnapshotResult, error)
}

type HTTPServer struct {
	address      string
	catalog      Catalog
	feeds        Feeds
	exporter     Exporter
	logger       logging.Logger
	editorSecret []byte
	router       *gin.Engine
}

// NewHTTPServer builds the router. An empty editorSecret leaves the write
// routes open.
func NewHTTPServer(a string, l logging.Logger, catalog Catalog, feeds Feeds, exporter Exporter, editorSecret string) *HTTPServer {
	s := &HTTPServer{
		address:  a,
		logger:   l.With("module", "http_server"),
		catalog:  catalog,
		feeds:    feeds,
		exporter: exporter,
	}
	if editorSecret != "" {
		s.editorSecret = []byte(editorSecret)
	}
	s.router = s.routes()
	return s
}

func (s *HTTPServer) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestID, s.accessLog, s.observe)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	api.GET("/maps/", func(c *gin.Context) { s.listMaps(c) })
	api.GET("/maps/:id/", func(c *gin.Context) { s.getMap(c) })
	api.GET("/components/", func(c *gin.Context) { s.listComponents(c) })
	api.GET("/components/:id/", func(c *gin.Context) { s.getComponent(c) })
	api.GET("/components/:id/objects_before/", func(c *gin.Context) { s.objectsBefore(c) })
	api.GET("/delete-feed/", func(c *gin.Context) { s.deleteFeed(c) })
	api.GET("/find-by-uri/", func(c *gin.Context) { s.findByURI(c) })
	api.GET("/fetch-resource/:resource_id", func(c *gin.Context) { s.fetchResource(c) })

	write := api.Group("/", s.editorOnly)

	write.POST("/maps/", func(c *gin.Context) { s.createMap(c) })
	write.PUT("/maps/:id/", func(c *gin.Context) { s.updateMap(c, true) })
	write.PATCH("/maps/:id/", func(c *gin.Context) { s.updateMap(c, false) })
	write.DELETE("/maps/:id/", func(c *gin.Context) { s.deleteMap(c) })
	write.POST("/maps/:id/export/", func(c *gin.Context) { s.exportMap(c) })

	write.POST("/components/", func(c *gin.Context) { s.createComponent(c) })
	write.PUT("/components/:id/", func(c *gin.Context) { s.updateComponent(c, true) })
	write.PATCH("/components/:id/", func(c *gin.Context) { s.updateComponent(c, false) })
	write.DELETE("/components/:id/", func(c *gin.Context) { s.deleteComponent(c) })
	write.POST("/components/:id/refresh_count/", func(c *gin.Context) { s.refreshCount(c) })

	return router
}

// Handler exposes the router, mostly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
