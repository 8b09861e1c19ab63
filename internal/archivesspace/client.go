// Package archivesspace is a small client for the ArchivesSpace backend API,
// covering the calls the catalog needs: fetching and updating records by URI,
// counting published archival objects under a record, and resource lookups.
package archivesspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/metrics"
)

// SessionHeader carries the session token returned by login.
const SessionHeader = "X-ArchivesSpace-Session"

// Record is an ArchivesSpace JSONModel object. Only "publish" is interpreted.
type Record map[string]any

// Publish reports the record's publish attribute.
func (r Record) Publish() bool {
	v, _ := r["publish"].(bool)
	return v
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	RepoID   int
	Timeout  time.Duration
}

// Client is safe for concurrent use. The session is obtained lazily and
// renewed once when the backend rejects it.
type Client struct {
	cfg    Config
	http   *http.Client
	logger logging.Logger

	mu      sync.Mutex
	session string
}

// DefaultTimeout bounds each call when Config.Timeout is not positive.
const DefaultTimeout = 30 * time.Second

func New(cfg Config, logger logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("module", "archivesspace"),
	}
}

// Fetch loads the record at uri, e.g. "/repositories/2/resources/5".
func (c *Client) Fetch(ctx context.Context, uri string) (Record, error) {
	timer := metrics.NewTimer()
	rec, err := c.getRecord(ctx, uri)
	metrics.RecordExternalCall("fetch", err, timer.Duration())
	return rec, err
}

// FetchResource loads a resource of the configured repository by identifier.
func (c *Client) FetchResource(ctx context.Context, resourceID string) (Record, error) {
	timer := metrics.NewTimer()
	uri := fmt.Sprintf("/repositories/%d/resources/%s", c.cfg.RepoID, url.PathEscape(resourceID))
	rec, err := c.getRecord(ctx, uri)
	metrics.RecordExternalCall("fetch_resource", err, timer.Duration())
	return rec, err
}

func (c *Client) getRecord(ctx context.Context, uri string) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, uri, nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update writes rec back to uri.
func (c *Client) Update(ctx context.Context, uri string, rec Record) error {
	timer := metrics.NewTimer()
	err := c.update(ctx, uri, rec)
	metrics.RecordExternalCall("update", err, timer.Duration())
	return err
}

func (c *Client) update(ctx context.Context, uri string, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return c.do(ctx, http.MethodPost, uri, body, nil)
}

type searchResult struct {
	TotalHits int64 `json:"total_hits"`
}

// CountMatching returns the number of published archival objects that belong
// to the resource at uri.
func (c *Client) CountMatching(ctx context.Context, uri string) (int64, error) {
	timer := metrics.NewTimer()
	n, err := c.countMatching(ctx, uri)
	metrics.RecordExternalCall("count", err, timer.Duration())
	return n, err
}

func (c *Client) countMatching(ctx context.Context, uri string) (int64, error) {
	var res searchResult
	if err := c.do(ctx, http.MethodGet, "/search?"+SearchQuery(uri), nil, &res); err != nil {
		return 0, err
	}
	return res.TotalHits, nil
}

// SearchQuery builds the query string matching published archival objects
// whose resource field equals uri.
func SearchQuery(uri string) string {
	escaped := strings.ReplaceAll(uri, "/", `\/`)
	q := url.Values{}
	q.Set("q", "resource:/"+escaped+"/ AND publish:true")
	q.Set("page", "1")
	q.Set("page_size", "1")
	q.Set("fields[]", "uri")
	q.Set("type[]", "archival_object")
	return q.Encode()
}

type loginResponse struct {
	Session string `json:"session"`
}

func (c *Client) login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return c.session, nil
	}

	form := url.Values{"password": {c.cfg.Password}}
	endpoint := c.cfg.BaseURL + "/users/" + url.PathEscape(c.cfg.Username) + "/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError("login", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(resp)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if lr.Session == "" {
		return "", &APIError{Status: resp.StatusCode, Message: "login returned no session"}
	}

	c.session = lr.Session
	c.logger.Debug(ctx, "archivesspace session established", "user", c.cfg.Username)
	return c.session, nil
}

func (c *Client) dropSession(stale string) {
	c.mu.Lock()
	if c.session == stale {
		c.session = ""
	}
	c.mu.Unlock()
}

// do performs an authenticated call, logging in again once if the session
// was rejected.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		session, err := c.login(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set(SessionHeader, session)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return transportError(method+" "+path, err)
		}

		if sessionRejected(resp.StatusCode) && attempt == 0 {
			resp.Body.Close()
			c.logger.Info(ctx, "archivesspace session rejected, logging in again", "status", resp.StatusCode)
			c.dropSession(session)
			continue
		}

		err = decodeResponse(resp, out)
		resp.Body.Close()
		return err
	}
}

func sessionRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusPreconditionFailed
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}
