package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/metrics"
	"github.com/dmitrijs2005/cartographer/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const editorKey = "editor"

// requestID tags the request context so every log line of the request
// carries the same id. A client-supplied X-Request-ID is kept.
func (s *HTTPServer) requestID(c *gin.Context) {
	id := c.GetHeader(common.RequestIDHeaderName)
	if id == "" {
		id = uuid.NewString()
	}
	c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
	c.Header(common.RequestIDHeaderName, id)
	c.Next()
}

func (s *HTTPServer) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()

	ctx := c.Request.Context()
	args := []any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	}
	if len(c.Errors) > 0 {
		args = append(args, "error", c.Errors.String())
	}
	if c.Writer.Status() >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", args...)
		return
	}
	s.logger.Debug(ctx, "request", args...)
}

func (s *HTTPServer) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
}

// editorOnly guards the write routes with a bearer token when an editor
// secret is configured.
func (s *HTTPServer) editorOnly(c *gin.Context) {
	if s.editorSecret == nil {
		c.Next()
		return
	}

	header := c.GetHeader(common.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}

	editor, err := auth.GetEditorFromToken(strings.TrimSpace(token), s.editorSecret)
	if err != nil {
		detail := "Invalid token."
		if errors.Is(err, common.ErrTokenExpired) {
			detail = "Token has expired."
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
		return
	}

	c.Set(editorKey, editor)
	s.logger.Debug(c.Request.Context(), "editor authenticated", "editor", editor)
	c.Next()
}
