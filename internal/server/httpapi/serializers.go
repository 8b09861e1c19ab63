package httpapi

import (
	"time"

	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/dmitrijs2005/cartographer/internal/server/tree"
)

type mapDetailJSON struct {
	ID       int64        `json:"id"`
	Ref      string       `json:"ref"`
	Title    string       `json:"title"`
	Children []*tree.Node `json:"children"`
	Publish  bool         `json:"publish"`
	Created  time.Time    `json:"created"`
	Modified time.Time    `json:"modified"`
}

type mapListJSON struct {
	ID       int64     `json:"id"`
	Ref      string    `json:"ref"`
	Title    string    `json:"title"`
	Publish  bool      `json:"publish"`
	Modified time.Time `json:"modified"`
}

type componentRefJSON struct {
	Title            string  `json:"title"`
	Ref              string  `json:"ref"`
	ArchivesSpaceURI *string `json:"archivesspace_uri"`
	Level            string  `json:"level"`
	Order            int64   `json:"order"`
}

type componentDetailJSON struct {
	ID               int64              `json:"id"`
	Ref              string             `json:"ref"`
	Title            string             `json:"title"`
	Map              int64              `json:"map"`
	Parent           *int64             `json:"parent"`
	Order            int64              `json:"order"`
	Level            string             `json:"level"`
	ArchivesSpaceURI *string            `json:"archivesspace_uri"`
	Publish          bool               `json:"publish"`
	ChildCount       int64              `json:"child_count"`
	Ancestors        []componentRefJSON `json:"ancestors"`
	Children         []componentRefJSON `json:"children"`
	Created          time.Time          `json:"created"`
	Modified         time.Time          `json:"modified"`
}

type componentListJSON struct {
	ID       int64     `json:"id"`
	Ref      string    `json:"ref"`
	Title    string    `json:"title"`
	Map      int64     `json:"map"`
	Modified time.Time `json:"modified"`
}

type tombstoneJSON struct {
	Ref              string    `json:"ref"`
	ArchivesSpaceURI *string   `json:"archivesspace_uri"`
	Deleted          time.Time `json:"deleted"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newMapDetail renders children as null for a map without components.
func newMapDetail(m *models.Map, forest []*tree.Node) mapDetailJSON {
	out := mapDetailJSON{
		ID:       m.ID,
		Ref:      m.Ref(),
		Title:    m.Title,
		Publish:  m.Publish,
		Created:  m.Created,
		Modified: m.Modified,
	}
	if len(forest) > 0 {
		out.Children = forest
	}
	return out
}

func newMapList(items []*models.Map) []mapListJSON {
	out := make([]mapListJSON, 0, len(items))
	for _, m := range items {
		out = append(out, mapListJSON{ID: m.ID, Ref: m.Ref(), Title: m.Title, Publish: m.Publish, Modified: m.Modified})
	}
	return out
}

func newComponentRefs(items []*models.Component) []componentRefJSON {
	out := make([]componentRefJSON, 0, len(items))
	for _, c := range items {
		out = append(out, componentRefJSON{
			Title:            c.Title,
			Ref:              c.Ref(),
			ArchivesSpaceURI: optional(c.ArchivesSpaceURI),
			Level:            c.Level,
			Order:            c.TreeIndex,
		})
	}
	return out
}

func newComponentDetail(d *services.ComponentDetail) componentDetailJSON {
	c := d.Component
	return componentDetailJSON{
		ID:               c.ID,
		Ref:              c.Ref(),
		Title:            c.Title,
		Map:              c.MapID,
		Parent:           c.ParentID,
		Order:            c.TreeIndex,
		Level:            c.Level,
		ArchivesSpaceURI: optional(c.ArchivesSpaceURI),
		Publish:          c.Publish,
		ChildCount:       c.ChildCount,
		Ancestors:        newComponentRefs(d.Ancestors),
		Children:         newComponentRefs(d.Children),
		Created:          c.Created,
		Modified:         c.Modified,
	}
}

func newComponentList(items []*models.Component) []componentListJSON {
	out := make([]componentListJSON, 0, len(items))
	for _, c := range items {
		out = append(out, componentListJSON{ID: c.ID, Ref: c.Ref(), Title: c.Title, Map: c.MapID, Modified: c.Modified})
	}
	return out
}

func newTombstones(items []*models.Tombstone) []tombstoneJSON {
	out := make([]tombstoneJSON, 0, len(items))
	for _, t := range items {
		out = append(out, tombstoneJSON{Ref: t.Ref, ArchivesSpaceURI: optional(t.ArchivesSpaceURI), Deleted: t.Deleted})
	}
	return out
}
