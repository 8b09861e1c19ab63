package tree

import "github.com/dmitrijs2005/cartographer/internal/server/models"

// Position is the linear place of a component among external objects.
type Position struct {
	// Preceding counts components of the same map with a lower order index.
	Preceding int64
	// Objects sums their cached child counts.
	Objects int64
}

// ObjectsBefore is the number of external objects that precede the target:
// one per preceding component plus that component's cached child count.
func (p Position) ObjectsBefore() int64 {
	return p.Preceding + p.Objects
}

// PositionOf compares order indexes flat across the whole map, regardless of
// depth; the order index is a single map-wide sequence.
func PositionOf(components []*models.Component, target *models.Component) Position {
	var p Position
	for _, c := range components {
		if c.MapID != target.MapID || c.TreeIndex >= target.TreeIndex {
			continue
		}
		p.Preceding++
		p.Objects += c.ChildCount
	}
	return p
}
