package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cartographer/internal/archivesspace"
	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) deleteFeed(c *gin.Context) {
	q, p, err := listQuery(c, "deleted_since")
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := s.feeds.DeletedSince(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEnvelope(c, p, page.Total, newTombstones(page.Items)))
}

// findByURI lists, as full details, every component whose external
// reference equals ?uri=.
func (s *HTTPServer) findByURI(c *gin.Context) {
	uri, ok := c.GetQuery("uri")
	if !ok {
		writeError(c, &common.MissingParameterError{Name: "uri"})
		return
	}
	p, err := parsePage(c)
	if err != nil {
		writeError(c, err)
		return
	}
	_, published := c.GetQuery("published")

	ctx := c.Request.Context()
	found, err := s.feeds.FindByURI(ctx, uri, published)
	if err != nil {
		writeError(c, err)
		return
	}

	results := make([]componentDetailJSON, 0, len(found))
	for _, comp := range paginate(found, p) {
		d, err := s.catalog.GetComponent(ctx, comp.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		results = append(results, newComponentDetail(d))
	}
	c.JSON(http.StatusOK, newEnvelope(c, p, int64(len(found)), results))
}

// fetchResource passes an archival resource through untouched. A missing
// resource answers 404 with the backend's message; any other failure 500
// with the error text.
func (s *HTTPServer) fetchResource(c *gin.Context) {
	id := c.Param("resource_id")

	record, err := s.feeds.FetchResource(c.Request.Context(), id)
	if err == nil {
		c.JSON(http.StatusOK, record)
		return
	}

	_ = c.Error(err)
	var apiErr *archivesspace.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		c.JSON(http.StatusNotFound, apiErr.Message)
		return
	}
	c.JSON(http.StatusInternalServerError, err.Error())
}

var _ Feeds = (*services.SyncService)(nil)
var _ Catalog = (*services.CatalogService)(nil)
var _ Exporter = (*services.SnapshotExporter)(nil)
