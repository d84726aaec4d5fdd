package hierarchy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/models"
)

func TestRemove_CountsTasks(t *testing.T) {
	f := newFixture(t)
	r := f.create("R", nil)
	c := f.create("C", &r.ID)
	for _, p := range []models.Project{r, r, c} {
		require.NoError(t, f.store.CreateTask(f.ctx, &models.Task{Owner: f.owner, Description: "t", Project: ptr(p.ID)}))
	}

	res, err := f.svc.remover.remove(f.ctx, f.get(r.ID))
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.TasksRemoved)
	assert.Len(t, res.Removed, 2)
}

func TestRemove_FailurePartWayIsNotRolledBack(t *testing.T) {
	f := newFixture(t)
	r := f.create("R", nil)
	c1 := f.create("C1", &r.ID)
	c2 := f.create("C2", &r.ID)
	f.store.failCall("DeleteProject", 2)

	_, err := f.svc.DeleteProject(f.ctx, f.owner, r.ID)

	var perr *PartiallyAppliedError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "delete project", perr.Op)
	assert.Equal(t, "delete project", perr.Step)
	assert.Equal(t, 1, perr.Applied)
	assert.False(t, perr.RolledBack)
	require.Len(t, perr.Removed, 1)
	assert.Contains(t, []uuid.UUID{c1.ID, c2.ID}, perr.Removed[0])

	assert.NotEqual(t, f.exists(c1.ID), f.exists(c2.ID), "exactly one child was removed")
	assert.True(t, f.exists(r.ID))

	// Retrying finishes the job.
	_, err = f.svc.DeleteProject(f.ctx, f.owner, r.ID)
	require.NoError(t, err)
	assert.False(t, f.exists(c2.ID))
	assert.False(t, f.exists(r.ID))
	requireConsistent(t, f.store, f.owner)
}

func TestRemove_FirstWriteFailure(t *testing.T) {
	f := newFixture(t)
	r := f.create("R", nil)
	c := f.create("C", &r.ID)
	f.store.failCall("RemoveChild", 1)

	_, err := f.svc.DeleteProject(f.ctx, f.owner, c.ID)

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "detach from ancestor", serr.Op)
	assert.True(t, f.exists(c.ID))
	requireConsistent(t, f.store, f.owner)
}

func TestRemove_TerminatesOnCorruptCycle(t *testing.T) {
	f := newFixture(t)
	a := f.create("A", nil)
	b := f.create("B", nil)
	require.NoError(t, f.store.Store.SetAncestor(f.ctx, f.owner, a.ID, &b.ID))
	require.NoError(t, f.store.Store.SetAncestor(f.ctx, f.owner, b.ID, &a.ID))

	res, err := f.svc.remover.remove(f.ctx, f.get(a.ID))
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, res.Removed)
	assert.False(t, f.exists(a.ID))
	assert.False(t, f.exists(b.ID))
}
