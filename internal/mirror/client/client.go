// Package client reads the catalog's sync surface over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
}

func New(baseURL, token string, pageSize int, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}
}

type page[T any] struct {
	Count   int64   `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

type mapItem struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Publish  bool      `json:"publish"`
	Modified time.Time `json:"modified"`
}

type componentItem struct {
	ID       int64     `json:"id"`
	Map      int64     `json:"map"`
	Modified time.Time `json:"modified"`
}

type componentDetail struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Map              int64     `json:"map"`
	Parent           *int64    `json:"parent"`
	Order            int64     `json:"order"`
	Level            string    `json:"level"`
	ArchivesSpaceURI *string   `json:"archivesspace_uri"`
	Publish          bool      `json:"publish"`
	ChildCount       int64     `json:"child_count"`
	Modified         time.Time `json:"modified"`
}

type tombstoneItem struct {
	Ref              string    `json:"ref"`
	ArchivesSpaceURI *string   `json:"archivesspace_uri"`
	Deleted          time.Time `json:"deleted"`
}

// Maps lists maps modified at or after since, following every page.
func (c *Client) Maps(ctx context.Context, since int64, published bool) ([]*models.Map, error) {
	items, err := collect[mapItem](ctx, c, c.listURL("/api/maps/", "modified_since", since, published))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Map, 0, len(items))
	for _, m := range items {
		out = append(out, &models.Map{ID: m.ID, Title: m.Title, Publish: m.Publish, Modified: m.Modified})
	}
	return out, nil
}

// ComponentChanges lists components modified at or after since as stubs
// holding ID, MapID and Modified.
func (c *Client) ComponentChanges(ctx context.Context, since int64, published bool) ([]*models.Component, error) {
	items, err := collect[componentItem](ctx, c, c.listURL("/api/components/", "modified_since", since, published))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Component, 0, len(items))
	for _, it := range items {
		out = append(out, &models.Component{ID: it.ID, MapID: it.Map, Modified: it.Modified})
	}
	return out, nil
}

// Component loads one component's detail.
func (c *Client) Component(ctx context.Context, id int64) (*models.Component, error) {
	var d componentDetail
	if err := c.get(ctx, c.baseURL+models.ComponentRef(id), &d); err != nil {
		return nil, err
	}
	comp := &models.Component{
		ID:         d.ID,
		Title:      d.Title,
		MapID:      d.Map,
		ParentID:   d.Parent,
		TreeIndex:  d.Order,
		Level:      d.Level,
		Publish:    d.Publish,
		ChildCount: d.ChildCount,
		Modified:   d.Modified,
	}
	if d.ArchivesSpaceURI != nil {
		comp.ArchivesSpaceURI = *d.ArchivesSpaceURI
	}
	return comp, nil
}

// Deleted lists tombstones written at or after since.
func (c *Client) Deleted(ctx context.Context, since int64) ([]*models.Tombstone, error) {
	items, err := collect[tombstoneItem](ctx, c, c.listURL("/api/delete-feed/", "deleted_since", since, false))
	if err != nil {
		return nil, err
	}
	out := make([]*models.Tombstone, 0, len(items))
	for _, it := range items {
		t := &models.Tombstone{Ref: it.Ref, Deleted: it.Deleted}
		if it.ArchivesSpaceURI != nil {
			t.ArchivesSpaceURI = *it.ArchivesSpaceURI
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) listURL(path, cursor string, since int64, published bool) string {
	q := url.Values{}
	q.Set(cursor, strconv.FormatInt(since, 10))
	if c.pageSize > 0 {
		q.Set("page_size", strconv.Itoa(c.pageSize))
	}
	if published {
		q.Set("published", "")
	}
	return c.baseURL + path + "?" + q.Encode()
}

// maxWalks bounds how often collect restarts a listing that keeps changing.
const maxWalks = 5

// collect walks next links until the last page. Pages are offsets into a
// newest-first listing: rows only join it at the front, so a row leaving it
// is the one change that shifts later rows past a page boundary. That change
// shows up as a smaller count, and the walk starts over.
func collect[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	for range maxWalks {
		out, stable, err := walk[T](ctx, c, first)
		if err != nil || stable {
			return out, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrListingUnstable, first)
}

func walk[T any](ctx context.Context, c *Client, next string) ([]T, bool, error) {
	var (
		out   []T
		count int64 = -1
	)
	for next != "" {
		var p page[T]
		if err := c.get(ctx, next, &p); err != nil {
			return nil, false, err
		}
		if count == -1 {
			count = p.Count
		} else if p.Count < count {
			return nil, false, nil
		}
		out = append(out, p.Results...)
		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return out, true, nil
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrorNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("GET %s: status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}
