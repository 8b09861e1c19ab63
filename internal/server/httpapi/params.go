package httpapi

import (
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/timex"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// pageRequest is a 1-based page number and its size.
type pageRequest struct {
	Page int
	Size int
}

func (p pageRequest) offset() int {
	return (p.Page - 1) * p.Size
}

func parsePage(c *gin.Context) (pageRequest, error) {
	p := pageRequest{Page: 1, Size: defaultPageSize}

	if raw, ok := c.GetQuery("page"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, common.NewValidationError("page", "Invalid page.")
		}
		p.Page = n
	}
	if raw, ok := c.GetQuery("page_size"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, common.NewValidationError("page_size", "A valid positive integer is required.")
		}
		p.Size = min(n, maxPageSize)
	}
	return p, nil
}

// parseCursor reads an integer Unix timestamp. Absent means the epoch.
func parseCursor(c *gin.Context, name string) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, common.NewValidationError(name, "A valid integer is required.")
	}
	return n, nil
}

// listQuery combines the cursor, the published flag and the page.
func listQuery(c *gin.Context, cursor string) (models.ListQuery, pageRequest, error) {
	p, err := parsePage(c)
	if err != nil {
		return models.ListQuery{}, p, err
	}
	since, err := parseCursor(c, cursor)
	if err != nil {
		return models.ListQuery{}, p, err
	}
	_, published := c.GetQuery("published")

	return models.ListQuery{
		Since:         timex.FromUnix(since),
		PublishedOnly: published,
		Limit:         p.Size,
		Offset:        p.offset(),
	}, p, nil
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, common.NewValidationError("id", "A valid integer is required.")
	}
	return id, nil
}

// envelope is the paginated list body.
type envelope struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

func newEnvelope(c *gin.Context, p pageRequest, total int64, results any) envelope {
	e := envelope{Count: total, Results: results}
	if int64(p.Page*p.Size) < total {
		next := pageURL(c, p.Page+1)
		e.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(c, p.Page-1)
		e.Previous = &prev
	}
	return e
}

// pageURL rebuilds the request URL pointing at page. Page 1 drops the
// parameter.
func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	q := c.Request.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// paginate slices an in-memory result.
func paginate[T any](items []T, p pageRequest) []T {
	start := p.offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+p.Size, len(items))
	return items[start:end]
}
