package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"taskhub/memstore"
	"taskhub/models"
)

var errStoreDown = errors.New("store down")

// faultyStore wraps the in-memory store, counts writes that changed
// something, and fails chosen calls.
type faultyStore struct {
	*memstore.Store

	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]map[int]bool
	after  map[string]func()
	writes int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:  memstore.New(),
		calls:  map[string]int{},
		failOn: map[string]map[int]bool{},
		after:  map[string]func(){},
	}
}

// afterCall runs fn once, right after the next call to method returns,
// to simulate a request landing between a read and the write based on it.
func (f *faultyStore) afterCall(method string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.after[method] = fn
}

func (f *faultyStore) done(method string) {
	f.mu.Lock()
	fn := f.after[method]
	delete(f.after, method)
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// failCall makes the nth call (1-based, counted from now) to method fail.
func (f *faultyStore) failCall(method string, nth ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOn[method] == nil {
		f.failOn[method] = map[int]bool{}
	}
	for _, n := range nth {
		f.failOn[method][f.calls[method]+n] = true
	}
}

func (f *faultyStore) resetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = 0
}

func (f *faultyStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *faultyStore) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[method]++
	if f.failOn[method][f.calls[method]] {
		return errStoreDown
	}
	return nil
}

func (f *faultyStore) wrote(changed bool, err error) {
	if err != nil || !changed {
		return
	}
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
}

func (f *faultyStore) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	if err := f.enter("GetProject"); err != nil {
		return nil, err
	}
	defer f.done("GetProject")
	return f.Store.GetProject(ctx, owner, id)
}

func (f *faultyStore) FindProjects(ctx context.Context, owner uuid.UUID, filter models.ProjectFilter) ([]models.Project, error) {
	if err := f.enter("FindProjects"); err != nil {
		return nil, err
	}
	defer f.done("FindProjects")
	return f.Store.FindProjects(ctx, owner, filter)
}

func (f *faultyStore) InsertProject(ctx context.Context, p *models.Project) error {
	if err := f.enter("InsertProject"); err != nil {
		return err
	}
	err := f.Store.InsertProject(ctx, p)
	f.wrote(true, err)
	return err
}

func (f *faultyStore) RenameProject(ctx context.Context, owner, id uuid.UUID, name string) error {
	if err := f.enter("RenameProject"); err != nil {
		return err
	}
	err := f.Store.RenameProject(ctx, owner, id, name)
	f.wrote(true, err)
	return err
}

func (f *faultyStore) SetChildren(ctx context.Context, owner, id uuid.UUID, expected, children []uuid.UUID) (bool, error) {
	if err := f.enter("SetChildren"); err != nil {
		return false, err
	}
	applied, err := f.Store.SetChildren(ctx, owner, id, expected, children)
	f.wrote(applied, err)
	return applied, err
}

func (f *faultyStore) ClearAncestor(ctx context.Context, owner, id, expected uuid.UUID) (bool, error) {
	if err := f.enter("ClearAncestor"); err != nil {
		return false, err
	}
	cleared, err := f.Store.ClearAncestor(ctx, owner, id, expected)
	f.wrote(cleared, err)
	return cleared, err
}

func (f *faultyStore) DeleteProject(ctx context.Context, owner, id uuid.UUID) error {
	if err := f.enter("DeleteProject"); err != nil {
		return err
	}
	err := f.Store.DeleteProject(ctx, owner, id)
	f.wrote(true, err)
	return err
}

func (f *faultyStore) AddChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	if err := f.enter("AddChild"); err != nil {
		return false, err
	}
	changed, err := f.Store.AddChild(ctx, owner, parent, child)
	f.wrote(changed, err)
	return changed, err
}

func (f *faultyStore) RemoveChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	if err := f.enter("RemoveChild"); err != nil {
		return false, err
	}
	changed, err := f.Store.RemoveChild(ctx, owner, parent, child)
	f.wrote(changed, err)
	return changed, err
}

func (f *faultyStore) SetAncestor(ctx context.Context, owner, id uuid.UUID, ancestor *uuid.UUID) error {
	if err := f.enter("SetAncestor"); err != nil {
		return err
	}
	err := f.Store.SetAncestor(ctx, owner, id, ancestor)
	f.wrote(true, err)
	return err
}

func (f *faultyStore) DeleteTasksByProject(ctx context.Context, owner, project uuid.UUID) (int64, error) {
	if err := f.enter("DeleteTasksByProject"); err != nil {
		return 0, err
	}
	n, err := f.Store.DeleteTasksByProject(ctx, owner, project)
	f.wrote(n > 0, err)
	return n, err
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *faultyStore
	svc   *Service
	owner uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	store := newFaultyStore()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		svc:   NewService(store),
		owner: uuid.New(),
	}
}

func (f *fixture) create(name string, ancestor *uuid.UUID, children ...uuid.UUID) models.Project {
	f.t.Helper()
	p, err := f.svc.CreateProject(f.ctx, f.owner, models.CreateProjectRequest{
		Name:     name,
		Ancestor: ancestor,
		Children: children,
	})
	require.NoError(f.t, err)
	return *p
}

func (f *fixture) get(id uuid.UUID) models.Project {
	f.t.Helper()
	p, err := f.store.Store.GetProject(f.ctx, f.owner, id)
	require.NoError(f.t, err)
	return *p
}

func (f *fixture) exists(id uuid.UUID) bool {
	_, err := f.store.Store.GetProject(f.ctx, f.owner, id)
	return err == nil
}

func (f *fixture) setAncestor(id uuid.UUID, ancestor *uuid.UUID) (*models.Project, error) {
	return f.svc.UpdateProject(f.ctx, f.owner, id, models.ProjectPatch{SetAncestor: true, Ancestor: ancestor})
}

func (f *fixture) setChildren(id uuid.UUID, children ...uuid.UUID) (*models.Project, error) {
	if children == nil {
		children = []uuid.UUID{}
	}
	return f.svc.UpdateProject(f.ctx, f.owner, id, models.ProjectPatch{SetChildren: true, Children: children})
}

// requireConsistent checks symmetry, single parent and acyclicity over
// every project the owner has.
func requireConsistent(t *testing.T, store Store, owner uuid.UUID) {
	t.Helper()

	all, err := store.FindProjects(context.Background(), owner, models.ProjectFilter{})
	require.NoError(t, err)

	byID := make(map[uuid.UUID]models.Project, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}

	listedBy := map[uuid.UUID]uuid.UUID{}
	for _, p := range all {
		for _, c := range p.Children {
			prev, dup := listedBy[c]
			require.Falsef(t, dup, "%s listed by both %s and %s", c, prev, p.ID)
			listedBy[c] = p.ID

			child, ok := byID[c]
			require.Truef(t, ok, "%s lists missing child %s", p.ID, c)
			require.NotNilf(t, child.Ancestor, "%s lists %s which has no ancestor", p.ID, c)
			require.Equalf(t, p.ID, *child.Ancestor, "%s lists %s which points elsewhere", p.ID, c)
		}
	}

	for _, p := range all {
		if p.Ancestor == nil {
			continue
		}
		parent, ok := byID[*p.Ancestor]
		require.Truef(t, ok, "%s has dangling ancestor %s", p.ID, *p.Ancestor)
		require.Truef(t, parent.HasChild(p.ID), "%s points at %s which does not list it", p.ID, parent.ID)

		seen := map[uuid.UUID]bool{p.ID: true}
		for next := p.Ancestor; next != nil; next = byID[*next].Ancestor {
			require.Falsef(t, seen[*next], "cycle through %s", *next)
			seen[*next] = true
		}
	}
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}
