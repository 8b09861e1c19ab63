package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/cartographer/internal/archivesspace"
	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(uris ...string) []*models.Component {
	out := make([]*models.Component, 0, len(uris))
	for i, u := range uris {
		out = append(out, &models.Component{ID: int64(i + 1), TreeIndex: int64(i), ArchivesSpaceURI: u})
	}
	return out
}

func seed(a *fakeArchive, uris ...string) {
	for _, u := range uris {
		a.records[u] = archivesspace.Record{"publish": false}
	}
}

func TestPropagate_AllSucceed(t *testing.T) {
	a := newFakeArchive()
	seed(a, "R1", "R2")
	p := NewPropagator(a, 1, logging.Nop())

	require.NoError(t, p.Propagate(context.Background(), true, refs("R1", "", "R2")))
	assert.Equal(t, []string{"R1", "R2"}, a.updates)
	assert.True(t, a.records["R2"].Publish())
}

func TestPropagate_NoReferences(t *testing.T) {
	a := newFakeArchive()
	p := NewPropagator(a, 1, logging.Nop())

	require.NoError(t, p.Propagate(context.Background(), true, refs("", "")))
	assert.Empty(t, a.updates)
}

func TestPropagate_OrderedByIndexThenID(t *testing.T) {
	a := newFakeArchive()
	seed(a, "A", "B", "C")
	p := NewPropagator(a, 1, logging.Nop())

	comps := []*models.Component{
		{ID: 3, TreeIndex: 5, ArchivesSpaceURI: "C"},
		{ID: 2, TreeIndex: 1, ArchivesSpaceURI: "B"},
		{ID: 1, TreeIndex: 1, ArchivesSpaceURI: "A"},
	}
	require.NoError(t, p.Propagate(context.Background(), true, comps))
	assert.Equal(t, []string{"A", "B", "C"}, a.updates)
}

func TestPropagate_FailFastNoRollback(t *testing.T) {
	a := newFakeArchive()
	seed(a, "R1", "R2", "R3")
	a.failUpdate["R2"] = errors.New("boom")
	p := NewPropagator(a, 1, logging.Nop())

	err := p.Propagate(context.Background(), true, refs("R1", "R2", "R3"))

	var pe *common.PropagationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "R2", pe.Ref)
	assert.ErrorIs(t, err, common.ErrorExternalSystem)
	assert.Equal(t, []string{"R1"}, a.updates)
	assert.True(t, a.records["R1"].Publish(), "no rollback")
	assert.False(t, a.records["R3"].Publish())
}

func TestPropagate_MissingRecord(t *testing.T) {
	a := newFakeArchive()
	p := NewPropagator(a, 1, logging.Nop())

	err := p.Propagate(context.Background(), false, refs("gone"))
	assert.ErrorIs(t, err, common.ErrorPropagationIncomplete)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPropagate_ConcurrentReportsRealFailure(t *testing.T) {
	a := newFakeArchive()
	seed(a, "R1", "R2", "R3")
	a.blockFetch["R1"] = true
	boom := errors.New("boom R2")
	a.failFetch["R2"] = boom
	p := NewPropagator(a, 2, logging.Nop())

	err := p.Propagate(context.Background(), true, refs("R1", "R2", "R3"))

	var pe *common.PropagationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "R2", pe.Ref)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.updates)
}

func TestPropagate_CallerCancellationIsReported(t *testing.T) {
	a := newFakeArchive()
	seed(a, "R1")
	a.blockFetch["R1"] = true
	p := NewPropagator(a, 2, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Propagate(ctx, true, refs("R1"))

	var pe *common.PropagationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "R1", pe.Ref)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPropagate_EmptyRecordIsNotOverwritten(t *testing.T) {
	a := newFakeArchive()
	a.emptyFetch["R1"] = true
	p := NewPropagator(a, 1, logging.Nop())

	err := p.Propagate(context.Background(), true, refs("R1"))

	var pe *common.PropagationError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "R1", pe.Ref)
	assert.ErrorIs(t, err, common.ErrorExternalSystem)
	assert.Empty(t, a.updates)
}

func TestNewPropagator_ClampsConcurrency(t *testing.T) {
	p := NewPropagator(newFakeArchive(), 0, logging.Nop())
	assert.Equal(t, 1, p.concurrency)
}
