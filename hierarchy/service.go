package hierarchy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskhub/logging"
	"taskhub/models"
)

// Service is the project API: every create, update and delete runs
// validation, its own write, then reconciliation as explicit steps.
type Service struct {
	store      Store
	validator  *Validator
	reconciler *reconciler
	remover    *remover
}

func NewService(store Store) *Service {
	return &Service{
		store:      store,
		validator:  NewValidator(store),
		reconciler: &reconciler{store: store},
		remover:    &remover{store: store},
	}
}

// CreateProject validates the requested ancestor and children, writes the
// new project and links it into the tree.
func (s *Service) CreateProject(ctx context.Context, owner uuid.UUID, req models.CreateProjectRequest) (*models.Project, error) {
	start := time.Now()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("name must not be empty")
	}
	if err := CheckShape(uuid.Nil, req.Ancestor, req.Children); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, owner, req.Ancestor, req.Children); err != nil {
		return nil, err
	}
	if err := s.validator.CheckAcyclic(ctx, owner, uuid.Nil, req.Ancestor, req.Children); err != nil {
		return nil, err
	}

	project := models.Project{
		ID:       uuid.New(),
		Name:     name,
		Owner:    owner,
		Children: clone(req.Children),
	}
	if req.Ancestor != nil {
		a := *req.Ancestor
		project.Ancestor = &a
	}
	if project.Children == nil {
		project.Children = []uuid.UUID{}
	}

	sg := newSaga("create project", owner)
	err := sg.step(ctx, "insert project", func(ctx context.Context) (undoFunc, error) {
		if err := s.store.InsertProject(ctx, &project); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return s.store.DeleteProject(ctx, owner, project.ID)
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.reconciler.reconcile(ctx, sg, nil, project); err != nil {
		return nil, err
	}

	logging.Logger.WithFields(logrus.Fields{
		"owner":    owner,
		"project":  project.ID,
		"writes":   sg.applied,
		"duration": time.Since(start),
	}).Info("Created project")

	return &project, nil
}

// UpdateProject applies patch to the project and reconciles every edge
// it changed. A patch that changes nothing performs no writes.
func (s *Service) UpdateProject(ctx context.Context, owner, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error) {
	start := time.Now()

	saved, err := s.getOwned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	desired := patch.Apply(*saved)
	if desired.Name == "" {
		return nil, invalidf("name must not be empty")
	}
	if !changed(*saved, desired) {
		return saved, nil
	}

	if patch.Touches() {
		if err := CheckShape(id, desired.Ancestor, desired.Children); err != nil {
			return nil, err
		}

		var ancestor *uuid.UUID
		if patch.SetAncestor {
			ancestor = patch.Ancestor
		}
		if err := s.validator.Validate(ctx, owner, ancestor, patch.Children); err != nil {
			return nil, err
		}
		if err := s.validator.CheckAcyclic(ctx, owner, id, desired.Ancestor, desired.Children); err != nil {
			return nil, err
		}
	}

	sg := newSaga("update project", owner)
	if err := s.writeFields(ctx, sg, *saved, desired); err != nil {
		return nil, err
	}

	if patch.Touches() {
		if err := s.reconciler.reconcile(ctx, sg, saved, desired); err != nil {
			return nil, err
		}
	}

	logging.Logger.WithFields(logrus.Fields{
		"owner":    owner,
		"project":  id,
		"writes":   sg.applied,
		"duration": time.Since(start),
	}).Info("Updated project")

	if current, err := s.store.GetProject(ctx, owner, id); err == nil {
		return current, nil
	}
	return &desired, nil
}

// writeFields writes only the fields of the project's own record that
// differ between saved and desired. The children list goes first and is
// replaced only while it still matches what was read; a concurrent edit
// to it fails the update with ErrConflict before anything is written.
func (s *Service) writeFields(ctx context.Context, sg *saga, saved, desired models.Project) error {
	owner, id := saved.Owner, saved.ID

	if !equalIDs(saved.Children, desired.Children) {
		err := sg.step(ctx, "save children", func(ctx context.Context) (undoFunc, error) {
			applied, err := s.store.SetChildren(ctx, owner, id, saved.Children, desired.Children)
			if err != nil {
				return nil, err
			}
			if !applied {
				return nil, conflictf("children of project %s changed concurrently", id)
			}
			return func(ctx context.Context) error {
				applied, err := s.store.SetChildren(ctx, owner, id, desired.Children, saved.Children)
				if err == nil && !applied {
					err = conflictf("children of project %s changed concurrently", id)
				}
				return err
			}, nil
		})
		if err != nil {
			return err
		}
	}

	if desired.Name != saved.Name {
		err := sg.step(ctx, "rename project", func(ctx context.Context) (undoFunc, error) {
			if err := s.store.RenameProject(ctx, owner, id, desired.Name); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				return s.store.RenameProject(ctx, owner, id, saved.Name)
			}, nil
		})
		if err != nil {
			return err
		}
	}

	if !sameAncestor(saved.Ancestor, desired.Ancestor) {
		err := sg.step(ctx, "save ancestor", func(ctx context.Context) (undoFunc, error) {
			if err := s.store.SetAncestor(ctx, owner, id, desired.Ancestor); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				return s.store.SetAncestor(ctx, owner, id, saved.Ancestor)
			}, nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// DeleteProject removes the project, its subtree and their tasks, and
// returns the project as it was before deletion.
func (s *Service) DeleteProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	saved, err := s.getOwned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.remover.remove(ctx, *saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// ListProjects returns the owner's top-level projects.
func (s *Service) ListProjects(ctx context.Context, owner uuid.UUID) ([]models.Project, error) {
	projects, err := s.store.FindProjects(ctx, owner, models.ProjectFilter{RootsOnly: true})
	if err != nil {
		return nil, wrapStoreErr("list projects", err)
	}
	return projects, nil
}

// GetProject returns the project with its subprojects, in children order,
// and the tasks scoped to it.
func (s *Service) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.ProjectDetail, error) {
	project, err := s.getOwned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	parent := project.ID
	subprojects, err := s.store.FindProjects(ctx, owner, models.ProjectFilter{Ancestor: &parent})
	if err != nil {
		return nil, wrapStoreErr("find subprojects", err)
	}

	tasks, err := s.store.ListTasks(ctx, owner, models.TaskQuery{Project: &parent})
	if err != nil {
		return nil, wrapStoreErr("list tasks", err)
	}

	return &models.ProjectDetail{
		Project:     *project,
		Subprojects: orderByChildren(project.Children, subprojects),
		Tasks:       tasks,
	}, nil
}

func (s *Service) getOwned(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, owner, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFoundf("project %s", id)
	}
	if err != nil {
		return nil, wrapStoreErr("get project", err)
	}
	return p, nil
}

func changed(saved, desired models.Project) bool {
	return saved.Name != desired.Name ||
		!sameAncestor(saved.Ancestor, desired.Ancestor) ||
		!equalIDs(saved.Children, desired.Children)
}

func sameAncestor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// orderByChildren sorts subprojects by their position in children; any
// not listed there keep their store order at the end.
func orderByChildren(children []uuid.UUID, subprojects []models.Project) []models.Project {
	pos := make(map[uuid.UUID]int, len(children))
	for i, id := range children {
		pos[id] = i
	}

	ordered := make([]models.Project, 0, len(subprojects))
	listed := make([]*models.Project, len(children))
	for i := range subprojects {
		if at, ok := pos[subprojects[i].ID]; ok {
			listed[at] = &subprojects[i]
		}
	}
	for _, p := range listed {
		if p != nil {
			ordered = append(ordered, *p)
		}
	}
	for _, p := range subprojects {
		if _, ok := pos[p.ID]; !ok {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
