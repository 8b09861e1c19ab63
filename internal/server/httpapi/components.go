package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/gin-gonic/gin"
)

// componentBody keeps parent raw so an explicit null can be told apart from
// an absent key.
type componentBody struct {
	Title            *string         `json:"title"`
	ArchivesSpaceURI *string         `json:"archivesspace_uri"`
	Level            *string         `json:"level"`
	Map              *int64          `json:"map"`
	Parent           json.RawMessage `json:"parent"`
	Order            *int64          `json:"order"`
}

func (b componentBody) input() (services.ComponentInput, error) {
	in := services.ComponentInput{
		Title:            b.Title,
		ArchivesSpaceURI: b.ArchivesSpaceURI,
		Level:            b.Level,
		Map:              b.Map,
		Order:            b.Order,
	}
	if len(b.Parent) == 0 {
		return in, nil
	}

	in.ParentSet = true
	if string(b.Parent) == "null" {
		return in, nil
	}
	var parent int64
	if err := json.Unmarshal(b.Parent, &parent); err != nil {
		return in, common.NewValidationError("parent", "Incorrect type. Expected pk value, received %s.", string(b.Parent))
	}
	in.Parent = &parent
	return in, nil
}

func (s *HTTPServer) listComponents(c *gin.Context) {
	q, p, err := listQuery(c, "modified_since")
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := s.feeds.ComponentsModifiedSince(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEnvelope(c, p, page.Total, newComponentList(page.Items)))
}

func (s *HTTPServer) getComponent(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	s.renderComponent(c, http.StatusOK, id)
}

func (s *HTTPServer) renderComponent(c *gin.Context, status int, id int64) {
	d, err := s.catalog.GetComponent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, newComponentDetail(d))
}

func (s *HTTPServer) createComponent(c *gin.Context) {
	var body componentBody
	if !bindBody(c, &body) {
		return
	}
	in, err := body.input()
	if err != nil {
		writeError(c, err)
		return
	}

	created, err := s.catalog.CreateComponent(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "component created", "id", created.ID, "map", created.MapID)
	s.renderComponent(c, http.StatusCreated, created.ID)
}

func (s *HTTPServer) updateComponent(c *gin.Context, full bool) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var body componentBody
	if !bindBody(c, &body) {
		return
	}
	in, err := body.input()
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := s.catalog.UpdateComponent(c.Request.Context(), id, in, full); err != nil {
		writeError(c, err)
		return
	}
	s.renderComponent(c, http.StatusOK, id)
}

func (s *HTTPServer) deleteComponent(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.catalog.DeleteComponent(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "component deleted", "id", id)
	c.Status(http.StatusNoContent)
}

func (s *HTTPServer) objectsBefore(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	n, err := s.catalog.ObjectsBefore(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *HTTPServer) refreshCount(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := s.catalog.RefreshCount(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	s.renderComponent(c, http.StatusOK, id)
}
