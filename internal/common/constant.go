package common

const (
	// AuthorizationHeaderName carries the editor bearer token on write requests.
	AuthorizationHeaderName = "Authorization"

	// RequestIDHeaderName is echoed back on every API response.
	RequestIDHeaderName = "X-Request-ID"

	MapRefPrefix       = "/api/maps/"
	ComponentRefPrefix = "/api/components/"
)
