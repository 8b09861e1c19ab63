package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto status codes and bodies. A
// propagation failure is matched before not-found since its cause may be a
// missing external record.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *common.ValidationError
	var perr *common.PropagationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{verr.Field: []string{verr.Message}})
	case errors.As(err, &perr):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": perr.Error(), "saved": true})
	case errors.Is(err, common.ErrorMissingParameter):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": err.Error()})
	case errors.Is(err, common.ErrorExternalSystem):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}

// bindError reports a body that could not be decoded.
func bindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error - " + err.Error()})
}

// bindBody decodes a JSON body into dst. An empty body decodes as {}.
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return false
	}
	return true
}
