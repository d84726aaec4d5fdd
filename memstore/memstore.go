// Package memstore is an in-memory project and task store with the same
// per-record atomicity as the database backends and no cross-record
// transactions. It backs the unit tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskhub/models"
)

type Store struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]models.Project
	tasks    map[uuid.UUID]models.Task
	now      func() time.Time
}

func New() *Store {
	return &Store{
		projects: map[uuid.UUID]models.Project{},
		tasks:    map[uuid.UUID]models.Task{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Projects

func (s *Store) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok || p.Owner != owner {
		return nil, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	c := p.Clone()
	return &c, nil
}

func (s *Store) FindProjects(ctx context.Context, owner uuid.UUID, filter models.ProjectFilter) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := []models.Project{}
	for _, p := range s.projects {
		if p.Owner != owner {
			continue
		}
		switch {
		case filter.Ancestor != nil:
			if p.Ancestor == nil || *p.Ancestor != *filter.Ancestor {
				continue
			}
		case filter.RootsOnly:
			if p.Ancestor != nil {
				continue
			}
		}
		projects = append(projects, p.Clone())
	}

	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID.String() < projects[j].ID.String()
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}

func (s *Store) InsertProject(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := s.projects[p.ID]; exists {
		return fmt.Errorf("project %s already exists", p.ID)
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Children == nil {
		p.Children = []uuid.UUID{}
	}
	s.projects[p.ID] = p.Clone()
	return nil
}

func (s *Store) RenameProject(ctx context.Context, owner, id uuid.UUID, name string) error {
	_, err := s.editProject(owner, id, func(p *models.Project) bool {
		p.Name = name
		return true
	})
	return err
}

func (s *Store) DeleteProject(ctx context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok || p.Owner != owner {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	delete(s.projects, id)
	return nil
}

func (s *Store) AddChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	return s.editProject(owner, parent, func(p *models.Project) bool {
		if p.HasChild(child) {
			return false
		}
		p.Children = append(p.Children, child)
		return true
	})
}

func (s *Store) RemoveChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	return s.editProject(owner, parent, func(p *models.Project) bool {
		kept := p.Children[:0:0]
		for _, c := range p.Children {
			if c != child {
				kept = append(kept, c)
			}
		}
		if len(kept) == len(p.Children) {
			return false
		}
		p.Children = kept
		return true
	})
}

func (s *Store) SetAncestor(ctx context.Context, owner, id uuid.UUID, ancestor *uuid.UUID) error {
	_, err := s.editProject(owner, id, func(p *models.Project) bool {
		p.Ancestor = nil
		if ancestor != nil {
			a := *ancestor
			p.Ancestor = &a
		}
		return true
	})
	return err
}

// SetChildren replaces the children list only while it still equals
// expected, and reports whether it did.
func (s *Store) SetChildren(ctx context.Context, owner, id uuid.UUID, expected, children []uuid.UUID) (bool, error) {
	return s.editProject(owner, id, func(p *models.Project) bool {
		if !slices.Equal(p.Children, expected) {
			return false
		}
		p.Children = append([]uuid.UUID{}, children...)
		return true
	})
}

// ClearAncestor detaches id only while its ancestor is still expected.
func (s *Store) ClearAncestor(ctx context.Context, owner, id, expected uuid.UUID) (bool, error) {
	return s.editProject(owner, id, func(p *models.Project) bool {
		if p.Ancestor == nil || *p.Ancestor != expected {
			return false
		}
		p.Ancestor = nil
		return true
	})
}

func (s *Store) editProject(owner, id uuid.UUID, edit func(p *models.Project) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok || p.Owner != owner {
		return false, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	p = p.Clone()
	if !edit(&p) {
		return false, nil
	}
	p.UpdatedAt = s.now()
	s.projects[id] = p
	return true, nil
}

func (s *Store) Owners(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[uuid.UUID]struct{}{}
	owners := []uuid.UUID{}
	for _, p := range s.projects {
		if _, ok := seen[p.Owner]; !ok {
			seen[p.Owner] = struct{}{}
			owners = append(owners, p.Owner)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].String() < owners[j].String() })
	return owners, nil
}

// Tasks

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.tasks[t.ID] = copyTask(*t)
	return nil
}

func (s *Store) GetTask(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || t.Owner != owner {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	t = copyTask(t)
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	field, desc, err := models.ParseTaskSort(q.SortBy)
	if err != nil {
		return nil, err
	}

	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.Owner != owner {
			continue
		}
		if q.Completed != nil && t.Completed != *q.Completed {
			continue
		}
		if q.Project != nil && (t.Project == nil || *t.Project != *q.Project) {
			continue
		}
		tasks = append(tasks, copyTask(t))
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		c := compareTasks(tasks[i], tasks[j], field)
		if c == 0 {
			c = strings.Compare(tasks[i].ID.String(), tasks[j].ID.String())
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	if q.Skip > 0 {
		if q.Skip >= len(tasks) {
			return []models.Task{}, nil
		}
		tasks = tasks[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(tasks) {
		tasks = tasks[:q.Limit]
	}
	return tasks, nil
}

func compareTasks(a, b models.Task, field string) int {
	switch field {
	case models.TaskSortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case models.TaskSortDescription:
		return strings.Compare(a.Description, b.Description)
	case models.TaskSortCompleted:
		switch {
		case a.Completed == b.Completed:
			return 0
		case !a.Completed:
			return -1
		default:
			return 1
		}
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (s *Store) SaveTask(ctx context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, ok := s.tasks[t.ID]
	if !ok || saved.Owner != t.Owner {
		return fmt.Errorf("task %s: %w", t.ID, models.ErrNotFound)
	}
	t.CreatedAt = saved.CreatedAt
	t.UpdatedAt = s.now()
	s.tasks[t.ID] = copyTask(*t)
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Owner != owner {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) DeleteTasksByProject(ctx context.Context, owner, project uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tasks {
		if t.Owner == owner && t.Project != nil && *t.Project == project {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func copyTask(t models.Task) models.Task {
	if t.Project != nil {
		p := *t.Project
		t.Project = &p
	}
	return t
}
