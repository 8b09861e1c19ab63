package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/gin-gonic/gin"
)

type mapBody struct {
	Title   *string `json:"title"`
	Publish *bool   `json:"publish"`
}

func (b mapBody) input() services.MapInput {
	return services.MapInput{Title: b.Title, Publish: b.Publish}
}

func (s *HTTPServer) listMaps(c *gin.Context) {
	q, p, err := listQuery(c, "modified_since")
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := s.feeds.MapsModifiedSince(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEnvelope(c, p, page.Total, newMapList(page.Items)))
}

func (s *HTTPServer) getMap(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	s.renderMap(c, http.StatusOK, id)
}

func (s *HTTPServer) renderMap(c *gin.Context, status int, id int64) {
	d, err := s.catalog.GetMap(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, newMapDetail(d.Map, d.Tree))
}

func (s *HTTPServer) createMap(c *gin.Context) {
	var body mapBody
	if !bindBody(c, &body) {
		return
	}

	m, err := s.catalog.CreateMap(c.Request.Context(), body.input())
	if err != nil {
		writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "map created", "id", m.ID)
	c.JSON(http.StatusCreated, newMapDetail(m, nil))
}

func (s *HTTPServer) updateMap(c *gin.Context, full bool) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var body mapBody
	if !bindBody(c, &body) {
		return
	}

	if _, err := s.catalog.UpdateMap(c.Request.Context(), id, body.input(), full); err != nil {
		writeError(c, err)
		return
	}
	s.renderMap(c, http.StatusOK, id)
}

func (s *HTTPServer) deleteMap(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.catalog.DeleteMap(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "map deleted", "id", id)
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) exportMap(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := s.exporter.Export(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
