// Package models defines server-side data models persisted in the database.
package models

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
)

// Map is a publishable container for one or more component trees.
type Map struct {
	ID       int64
	Title    string
	Publish  bool
	Created  time.Time
	Modified time.Time
}

// Ref is the canonical locator used in API payloads and tombstones.
func (m *Map) Ref() string {
	return MapRef(m.ID)
}

// Component is a node of a map's arrangement tree, optionally backed by an
// external archival record.
type Component struct {
	ID    int64
	Title string
	// ArchivesSpaceURI is the external reference; "" when unset.
	ArchivesSpaceURI string
	Level            string
	ParentID         *int64
	MapID            int64
	// TreeIndex is the order index. Assigned as one sequence across the map.
	TreeIndex int64
	// ChildCount caches the number of published external objects under
	// ArchivesSpaceURI.
	ChildCount int64
	// Publish mirrors the owning map's flag. Filled on read, never stored.
	Publish  bool
	Created  time.Time
	Modified time.Time
}

func (c *Component) Ref() string {
	return ComponentRef(c.ID)
}

// IsRoot reports whether the component sits at the top of its tree.
func (c *Component) IsRoot() bool {
	return c.ParentID == nil
}

// Tombstone marks a deleted map or component for the deletion feed.
type Tombstone struct {
	ID               int64
	Ref              string
	ArchivesSpaceURI string
	Deleted          time.Time
}

func MapRef(id int64) string {
	return common.MapRefPrefix + strconv.FormatInt(id, 10) + "/"
}

func ComponentRef(id int64) string {
	return common.ComponentRefPrefix + strconv.FormatInt(id, 10) + "/"
}
