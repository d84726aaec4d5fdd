package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/models"
)

func TestProjects(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := uuid.New()

	root := models.Project{Name: "root", Owner: owner}
	require.NoError(t, s.InsertProject(ctx, &root))
	assert.NotEqual(t, uuid.Nil, root.ID)
	assert.NotNil(t, root.Children)

	child := models.Project{Name: "child", Owner: owner, Ancestor: &root.ID}
	require.NoError(t, s.InsertProject(ctx, &child))

	changed, err := s.AddChild(ctx, owner, root.ID, child.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.AddChild(ctx, owner, root.ID, child.ID)
	require.NoError(t, err)
	assert.False(t, changed, "adding twice is a no-op")

	roots, err := s.FindProjects(ctx, owner, models.ProjectFilter{RootsOnly: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)

	under, err := s.FindProjects(ctx, owner, models.ProjectFilter{Ancestor: &root.ID})
	require.NoError(t, err)
	require.Len(t, under, 1)
	assert.Equal(t, child.ID, under[0].ID)

	changed, err = s.RemoveChild(ctx, owner, root.ID, child.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.RemoveChild(ctx, owner, root.ID, child.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	cleared, err := s.ClearAncestor(ctx, owner, child.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, cleared)
	cleared, err = s.ClearAncestor(ctx, owner, child.ID, root.ID)
	require.NoError(t, err)
	assert.True(t, cleared)

	require.NoError(t, s.SetAncestor(ctx, owner, child.ID, nil))
	got, err := s.GetProject(ctx, owner, child.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Ancestor)

	require.NoError(t, s.DeleteProject(ctx, owner, child.ID))
	_, err = s.GetProject(ctx, owner, child.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOwnerScoping(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	p := models.Project{Name: "private", Owner: owner}
	require.NoError(t, s.InsertProject(ctx, &p))

	_, err := s.GetProject(ctx, stranger, p.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.AddChild(ctx, stranger, p.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.SetAncestor(ctx, stranger, p.ID, nil), models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, stranger, p.ID), models.ErrNotFound)

	assert.ErrorIs(t, s.RenameProject(ctx, stranger, p.ID, "mine"), models.ErrNotFound)
	_, err = s.SetChildren(ctx, stranger, p.ID, nil, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, models.ErrNotFound)

	listed, err := s.FindProjects(ctx, stranger, models.ProjectFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	owners, err := s.Owners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{owner}, owners)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := uuid.New()

	p := models.Project{Name: "p", Owner: owner, Children: []uuid.UUID{uuid.New()}}
	require.NoError(t, s.InsertProject(ctx, &p))

	got, err := s.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	got.Children[0] = uuid.New()
	got.Name = "mutated"

	again, err := s.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "p", again.Name)
	assert.Equal(t, p.Children, again.Children)
}

func TestTasks(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := uuid.New()
	project := uuid.New()

	for _, d := range []string{"b", "a", "c"} {
		require.NoError(t, s.CreateTask(ctx, &models.Task{Owner: owner, Description: d, Project: &project}))
	}
	loose := models.Task{Owner: owner, Description: "loose"}
	require.NoError(t, s.CreateTask(ctx, &loose))

	tasks, err := s.ListTasks(ctx, owner, models.TaskQuery{SortBy: "description", Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "b", tasks[0].Description)
	assert.Equal(t, "c", tasks[1].Description)

	tasks, err = s.ListTasks(ctx, owner, models.TaskQuery{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	n, err := s.DeleteTasksByProject(ctx, owner, project)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	tasks, err = s.ListTasks(ctx, owner, models.TaskQuery{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, loose.ID, tasks[0].ID)

	loose.Completed = true
	require.NoError(t, s.SaveTask(ctx, &loose))
	got, err := s.GetTask(ctx, owner, loose.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	require.NoError(t, s.DeleteTask(ctx, owner, loose.ID))
	assert.ErrorIs(t, s.DeleteTask(ctx, owner, loose.ID), models.ErrNotFound)
}

func TestSetChildren_Conditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := uuid.New()
	a, b := uuid.New(), uuid.New()

	p := models.Project{Name: "p", Owner: owner, Children: []uuid.UUID{a}}
	require.NoError(t, s.InsertProject(ctx, &p))

	applied, err := s.SetChildren(ctx, owner, p.ID, []uuid.UUID{b}, []uuid.UUID{})
	require.NoError(t, err)
	assert.False(t, applied, "stale expected list must not overwrite")

	applied, err = s.SetChildren(ctx, owner, p.ID, []uuid.UUID{a}, []uuid.UUID{b, a})
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, s.RenameProject(ctx, owner, p.ID, "renamed"))
	got, err := s.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []uuid.UUID{b, a}, got.Children)
}
