package archivesspace

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/cartographer/internal/common"
)

// APIError is a non-success answer from the backend. A 404 unwraps to
// common.ErrorNotFound, everything else to common.ErrorExternalSystem.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("archivesspace: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return common.ErrorNotFound
	}
	return common.ErrorExternalSystem
}

// newAPIError reads the backend's {"error": ...} body when there is one.
func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error any `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != nil {
		if s, ok := payload.Error.(string); ok {
			msg = s
		} else {
			b, _ := json.Marshal(payload.Error)
			msg = string(b)
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrorExternalSystem, op, err)
}
