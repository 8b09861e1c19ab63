package models

import "time"

// ListQuery selects one page of a cursor feed. Since is inclusive; the zero
// time (or the epoch) disables time filtering.
type ListQuery struct {
	Since         time.Time
	PublishedOnly bool
	Limit         int
	Offset        int
}

// Page is one slice of an ordered result plus the size of the whole result.
type Page[T any] struct {
	Items []T
	Total int64
}
