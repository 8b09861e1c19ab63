package tree

import (
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// Node is one component in the nested map representation. Leaves carry no
// children key at all; a node with children always has a non-empty slice.
type Node struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Ref              string  `json:"ref"`
	Level            string  `json:"level"`
	Parent           *int64  `json:"parent"`
	ArchivesSpaceURI *string `json:"archivesspace_uri"`
	Order            int64   `json:"order"`
	Children         []*Node `json:"children,omitempty"`
}

func newNode(c *models.Component) *Node {
	n := &Node{
		ID:     c.ID,
		Title:  c.Title,
		Ref:    c.Ref(),
		Level:  c.Level,
		Parent: c.ParentID,
		Order:  c.TreeIndex,
	}
	if c.ArchivesSpaceURI != "" {
		uri := c.ArchivesSpaceURI
		n.ArchivesSpaceURI = &uri
	}
	return n
}

// Build renders the arena as a forest: roots by order index, each node's
// children by order index, depth-first pre-order.
func (a *Arena) Build() ([]*Node, error) {
	order, err := a.PreOrder()
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*Node, len(order))
	var forest []*Node
	// pre-order visits every parent before its children and siblings in
	// order, so appending keeps sibling order intact
	for _, c := range order {
		n := newNode(c)
		nodes[c.ID] = n
		if c.ParentID == nil {
			forest = append(forest, n)
			continue
		}
		parent := nodes[*c.ParentID]
		parent.Children = append(parent.Children, n)
	}
	return forest, nil
}

// Flatten lists a forest back in pre-order.
func Flatten(forest []*Node) []*Node {
	var out []*Node
	stack := make([]*Node, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, forest[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}
