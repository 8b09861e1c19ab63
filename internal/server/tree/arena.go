// Package tree indexes the components of one arrangement map: sibling order,
// ancestor chains, nested serialization and linear position.
//
// Components are held in an arena keyed by id with parents stored as keys, so
// every walk is iterative and guarded against malformed (cyclic) data.
package tree

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// Arena is an immutable index over a set of components.
type Arena struct {
	nodes    map[int64]*models.Component
	children map[int64][]int64
	roots    []int64
}

// NewArena indexes components. Siblings are ordered by tree index, then id.
func NewArena(components []*models.Component) *Arena {
	a := &Arena{
		nodes:    make(map[int64]*models.Component, len(components)),
		children: make(map[int64][]int64),
	}
	for _, c := range components {
		a.nodes[c.ID] = c
	}
	for _, c := range components {
		if c.ParentID == nil {
			a.roots = append(a.roots, c.ID)
			continue
		}
		a.children[*c.ParentID] = append(a.children[*c.ParentID], c.ID)
	}

	a.sortIDs(a.roots)
	for _, ids := range a.children {
		a.sortIDs(ids)
	}
	return a
}

func (a *Arena) sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := a.nodes[ids[i]], a.nodes[ids[j]]
		if ci.TreeIndex != cj.TreeIndex {
			return ci.TreeIndex < cj.TreeIndex
		}
		return ci.ID < cj.ID
	})
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) Get(id int64) (*models.Component, bool) {
	c, ok := a.nodes[id]
	return c, ok
}

// Roots returns the top-level components in sibling order.
func (a *Arena) Roots() []*models.Component {
	return a.lookup(a.roots)
}

// Children returns the immediate children of id in sibling order.
func (a *Arena) Children(id int64) []*models.Component {
	return a.lookup(a.children[id])
}

func (a *Arena) lookup(ids []int64) []*models.Component {
	out := make([]*models.Component, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.nodes[id])
	}
	return out
}

// Ancestors returns the chain above id, nearest first: parent, grandparent,
// ..., root. The last element always has a nil parent.
func (a *Arena) Ancestors(id int64) ([]*models.Component, error) {
	c, ok := a.nodes[id]
	if !ok {
		return nil, fmt.Errorf("component %d: %w", id, common.ErrorNotFound)
	}

	seen := map[int64]struct{}{id: {}}
	var chain []*models.Component
	for c.ParentID != nil {
		pid := *c.ParentID
		if _, dup := seen[pid]; dup {
			return nil, fmt.Errorf("component %d: %w", id, common.ErrorCycle)
		}
		seen[pid] = struct{}{}

		parent, ok := a.nodes[pid]
		if !ok {
			return nil, fmt.Errorf("parent %d of component %d: %w", pid, c.ID, common.ErrorNotFound)
		}
		chain = append(chain, parent)
		c = parent
	}
	return chain, nil
}

// Depth is the number of ancestors; roots have depth 0.
func (a *Arena) Depth(id int64) (int, error) {
	chain, err := a.Ancestors(id)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// WouldCycle reports whether re-parenting id under parentID would make id
// its own ancestor. parentID is expected to exist in the arena.
func (a *Arena) WouldCycle(id, parentID int64) bool {
	if id == parentID {
		return true
	}
	chain, err := a.Ancestors(parentID)
	if err != nil {
		// an already broken chain can't be trusted either
		return true
	}
	for _, c := range chain {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Descendants returns every component below id in depth-first pre-order.
func (a *Arena) Descendants(id int64) []*models.Component {
	var out []*models.Component
	seen := map[int64]struct{}{id: {}}
	stack := reversed(a.children[id])
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := seen[cur]; dup {
			continue
		}
		seen[cur] = struct{}{}
		out = append(out, a.nodes[cur])
		stack = append(stack, reversed(a.children[cur])...)
	}
	return out
}

// PreOrder walks every tree of the arena depth-first, roots in order.
// Components unreachable from a root (cycles, dangling parents) make it fail.
func (a *Arena) PreOrder() ([]*models.Component, error) {
	out := make([]*models.Component, 0, len(a.nodes))
	seen := make(map[int64]struct{}, len(a.nodes))
	stack := reversed(a.roots)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := seen[cur]; dup {
			return nil, fmt.Errorf("component %d: %w", cur, common.ErrorCycle)
		}
		seen[cur] = struct{}{}
		out = append(out, a.nodes[cur])
		stack = append(stack, reversed(a.children[cur])...)
	}
	if len(out) != len(a.nodes) {
		for id := range a.nodes {
			if _, ok := seen[id]; !ok {
				return nil, fmt.Errorf("component %d unreachable from any root: %w", id, common.ErrorCycle)
			}
		}
	}
	return out, nil
}

func reversed(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
