package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	ErrListingUnstable = errors.New("listing kept changing while paging")
)
