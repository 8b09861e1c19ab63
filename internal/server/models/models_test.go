package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefs(t *testing.T) {
	m := &Map{ID: 3}
	c := &Component{ID: 42}

	assert.Equal(t, "/api/maps/3/", m.Ref())
	assert.Equal(t, "/api/components/42/", c.Ref())
	assert.True(t, c.IsRoot())

	parent := int64(1)
	c.ParentID = &parent
	assert.False(t, c.IsRoot())
}

func TestLevels(t *testing.T) {
	assert.Equal(t, "collection", NormalizeLevel(""))
	assert.Equal(t, "series", NormalizeLevel("  Series "))
	assert.True(t, IsValidLevel("subseries"))
	assert.False(t, IsValidLevel("box"))
	assert.Len(t, Levels(), 11)
	assert.Equal(t, "class", Levels()[0])
}
