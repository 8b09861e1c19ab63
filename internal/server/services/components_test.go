package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComponent_AppendsAfterMapMaximum(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", true)
	root := h.store.addComponent(m.ID, nil, 0, 0, "")
	h.store.addComponent(m.ID, &root.ID, 7, 0, "")
	h.expectCommit()

	c, err := h.svc.CreateComponent(context.Background(), ComponentInput{Title: ptr("Series"), Map: &m.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(8), c.TreeIndex)
	assert.Equal(t, "collection", c.Level)
	assert.True(t, c.Publish, "publish comes from the map")
	assert.Equal(t, fixedNow, h.store.maps[m.ID].Modified, "map modified bumped")
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateComponent_RefreshesCount(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	h.archive.counts["/repositories/2/resources/5"] = 12
	h.expectCommit() // create
	h.expectCommit() // count refresh

	c, err := h.svc.CreateComponent(context.Background(), ComponentInput{
		Map: &m.ID, ArchivesSpaceURI: ptr("/repositories/2/resources/5"), Level: ptr("Series"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.ChildCount)
	assert.Equal(t, "series", c.Level)
	assert.Equal(t, int64(12), h.store.components[c.ID].ChildCount)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateComponent_CountFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	h.archive.countErr = errors.New("timeout")
	h.expectCommit()

	c, err := h.svc.CreateComponent(context.Background(), ComponentInput{
		Map: &m.ID, ArchivesSpaceURI: ptr("/repositories/2/resources/5"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.ChildCount)
	assert.Contains(t, h.store.components, c.ID)
}

func TestCreateComponent_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        func(h *harness) ComponentInput
		tx        bool
		wantField string
	}{
		{
			name:      "map required",
			in:        func(h *harness) ComponentInput { return ComponentInput{Title: ptr("x")} },
			wantField: "map",
		},
		{
			name: "unknown level",
			in: func(h *harness) ComponentInput {
				return ComponentInput{Map: ptr(int64(1)), Level: ptr("box")}
			},
			wantField: "level",
		},
		{
			name:      "missing map",
			in:        func(h *harness) ComponentInput { return ComponentInput{Map: ptr(int64(404))} },
			tx:        true,
			wantField: "map",
		},
		{
			name: "parent from another map",
			in: func(h *harness) ComponentInput {
				other := h.store.addMap("Other", false)
				p := h.store.addComponent(other.ID, nil, 0, 0, "")
				return ComponentInput{Map: ptr(int64(1)), Parent: &p.ID, ParentSet: true}
			},
			tx:        true,
			wantField: "parent",
		},
		{
			name: "missing parent",
			in: func(h *harness) ComponentInput {
				return ComponentInput{Map: ptr(int64(1)), Parent: ptr(int64(999)), ParentSet: true}
			},
			tx:        true,
			wantField: "parent",
		},
		{
			name: "sibling order taken",
			in: func(h *harness) ComponentInput {
				h.store.addComponent(1, nil, 3, 0, "")
				return ComponentInput{Map: ptr(int64(1)), Order: ptr(int64(3))}
			},
			tx:        true,
			wantField: "order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.addMap("Papers", false) // id 1
			in := tt.in(h)
			if tt.tx {
				h.expectRollback()
			}
			before := len(h.store.components)

			_, err := h.svc.CreateComponent(context.Background(), in)
			assert.ErrorIs(t, err, common.ErrorValidation)
			assert.Equal(t, tt.wantField, fieldOf(t, err))
			assert.Len(t, h.store.components, before)
			require.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}

func TestCreateComponent_SameOrderUnderDifferentParentsIsAllowed(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	a := h.store.addComponent(m.ID, nil, 0, 0, "")
	h.store.addComponent(m.ID, &a.ID, 1, 0, "")
	h.expectCommit()

	c, err := h.svc.CreateComponent(context.Background(), ComponentInput{Map: &m.ID, Order: ptr(int64(1))})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TreeIndex)
}

func TestGetComponent_AncestorsAndChildren(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", true)
	root := h.store.addComponent(m.ID, nil, 0, 0, "")
	mid := h.store.addComponent(m.ID, &root.ID, 1, 0, "")
	leaf := h.store.addComponent(m.ID, &mid.ID, 2, 0, "")
	leaf2 := h.store.addComponent(m.ID, &mid.ID, 3, 0, "")

	d, err := h.svc.GetComponent(context.Background(), mid.ID)
	require.NoError(t, err)
	assert.True(t, d.Component.Publish)
	require.Len(t, d.Ancestors, 1)
	assert.Equal(t, root.ID, d.Ancestors[0].ID)
	require.Len(t, d.Children, 2)
	assert.Equal(t, leaf.ID, d.Children[0].ID)
	assert.Equal(t, leaf2.ID, d.Children[1].ID)

	d, err = h.svc.GetComponent(context.Background(), leaf.ID)
	require.NoError(t, err)
	require.Len(t, d.Ancestors, 2)
	assert.Equal(t, mid.ID, d.Ancestors[0].ID)
	assert.Equal(t, root.ID, d.Ancestors[1].ID)
	assert.Empty(t, d.Children)
}

func TestUpdateComponent_RejectsCycle(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	root := h.store.addComponent(m.ID, nil, 0, 0, "")
	child := h.store.addComponent(m.ID, &root.ID, 1, 0, "")
	h.expectRollback()

	_, err := h.svc.UpdateComponent(context.Background(), root.ID, ComponentInput{ParentSet: true, Parent: &child.ID}, false)
	assert.Equal(t, "parent", fieldOf(t, err))
	assert.Nil(t, h.store.components[root.ID].ParentID)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestUpdateComponent_RejectsSelfParent(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	c := h.store.addComponent(m.ID, nil, 0, 0, "")
	h.expectRollback()

	_, err := h.svc.UpdateComponent(context.Background(), c.ID, ComponentInput{ParentSet: true, Parent: &c.ID}, false)
	assert.Equal(t, "parent", fieldOf(t, err))
}

func TestUpdateComponent_MoveWithChildrenRejected(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	other := h.store.addMap("Other", false)
	root := h.store.addComponent(m.ID, nil, 0, 0, "")
	h.store.addComponent(m.ID, &root.ID, 1, 0, "")
	h.expectRollback()

	_, err := h.svc.UpdateComponent(context.Background(), root.ID, ComponentInput{Map: &other.ID}, false)
	assert.Equal(t, "map", fieldOf(t, err))
	assert.Equal(t, m.ID, h.store.components[root.ID].MapID)
}

func TestUpdateComponent_MoveLeafToOtherMap(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	other := h.store.addMap("Other", true)
	root := h.store.addComponent(m.ID, nil, 0, 0, "")
	leaf := h.store.addComponent(m.ID, &root.ID, 1, 0, "")
	h.store.addComponent(other.ID, nil, 1, 0, "")
	h.expectCommit()

	got, err := h.svc.UpdateComponent(context.Background(), leaf.ID, ComponentInput{Map: &other.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.MapID)
	assert.Nil(t, got.ParentID)
	assert.True(t, got.Publish)
	assert.Equal(t, int64(2), got.TreeIndex, "taken index moves to the end of the new map")
	assert.Equal(t, fixedNow, h.store.maps[m.ID].Modified)
	assert.Equal(t, fixedNow, h.store.maps[other.ID].Modified)
	assert.Equal(t, []int64{m.ID, other.ID}, h.store.locked)
}

func TestUpdateComponent_ExplicitOrderConflict(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	h.store.addComponent(m.ID, nil, 0, 0, "")
	b := h.store.addComponent(m.ID, nil, 1, 0, "")
	h.expectRollback()

	_, err := h.svc.UpdateComponent(context.Background(), b.ID, ComponentInput{Order: ptr(int64(0))}, false)
	assert.Equal(t, "order", fieldOf(t, err))
}

func TestUpdateComponent_KeepOwnOrder(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	b := h.store.addComponent(m.ID, nil, 4, 0, "")
	h.expectCommit()

	got, err := h.svc.UpdateComponent(context.Background(), b.ID, ComponentInput{Title: ptr("Renamed"), Order: ptr(int64(4))}, false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, int64(4), got.TreeIndex)
}

func TestUpdateComponent_NotFound(t *testing.T) {
	h := newHarness(t)
	h.expectRollback()

	_, err := h.svc.UpdateComponent(context.Background(), 77, ComponentInput{Title: ptr("x")}, false)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDeleteComponent_CascadesWithTombstones(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	root := h.store.addComponent(m.ID, nil, 0, 0, "/repositories/2/resources/1")
	child := h.store.addComponent(m.ID, &root.ID, 1, 0, "/repositories/2/archival_objects/9")
	h.store.addComponent(m.ID, &child.ID, 2, 0, "")
	keep := h.store.addComponent(m.ID, nil, 3, 0, "")
	h.expectCommit()

	require.NoError(t, h.svc.DeleteComponent(context.Background(), root.ID))

	require.Len(t, h.store.tombstones, 3)
	assert.Equal(t, root.Ref(), h.store.tombstones[0].Ref)
	assert.Equal(t, "/repositories/2/resources/1", h.store.tombstones[0].ArchivesSpaceURI)
	assert.Equal(t, child.Ref(), h.store.tombstones[1].Ref)
	assert.Len(t, h.store.components, 1)
	assert.Contains(t, h.store.components, keep.ID)
	assert.Equal(t, fixedNow, h.store.maps[m.ID].Modified)

	// tombstones precede the delete
	assert.Equal(t, "delete subtree 2", h.store.log[len(h.store.log)-2])
	assert.Equal(t, "touch 1", h.store.log[len(h.store.log)-1])
}

func TestObjectsBefore(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	first := h.store.addComponent(m.ID, nil, 0, 2, "")
	h.store.addComponent(m.ID, nil, 1, 0, "")
	third := h.store.addComponent(m.ID, nil, 2, 5, "")

	n, err := h.svc.ObjectsBefore(context.Background(), third.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = h.svc.ObjectsBefore(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = h.svc.ObjectsBefore(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRefreshCount_UnchangedWritesNothing(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	c := h.store.addComponent(m.ID, nil, 0, 3, "/repositories/2/resources/1")
	h.archive.counts["/repositories/2/resources/1"] = 3

	got, err := h.svc.RefreshCount(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ChildCount)
	assert.True(t, h.store.maps[m.ID].Modified.IsZero())
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRefreshCount_ExternalError(t *testing.T) {
	h := newHarness(t)
	m := h.store.addMap("Papers", false)
	c := h.store.addComponent(m.ID, nil, 0, 3, "/repositories/2/resources/1")
	h.archive.countErr = common.ErrorExternalSystem

	_, err := h.svc.RefreshCount(context.Background(), c.ID)
	assert.ErrorIs(t, err, common.ErrorExternalSystem)
	assert.Equal(t, int64(3), h.store.components[c.ID].ChildCount)
}
