package hierarchy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskhub/logging"
	"taskhub/models"
)

// remover deletes a project, its whole subtree and every task scoped to a
// removed project. Deletes cannot be compensated, so a failure part way
// reports what was removed and stops.
type remover struct {
	store Store
}

// RemoveResult lists the projects deleted, deepest first, and the number
// of tasks deleted with them.
type RemoveResult struct {
	Removed      []uuid.UUID
	TasksRemoved int64
}

func (r *remover) remove(ctx context.Context, node models.Project) (*RemoveResult, error) {
	s := newSaga("delete project", node.Owner)
	s.compensate = false
	res := &RemoveResult{}

	if node.Ancestor != nil {
		removed, err := r.store.RemoveChild(ctx, node.Owner, *node.Ancestor, node.ID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return res, s.fail(ctx, "detach from ancestor", err)
		}
		if removed {
			s.wrote()
		}
	}

	visited := make(map[uuid.UUID]struct{})
	if err := r.removeNode(ctx, s, node.Owner, node.ID, visited, res); err != nil {
		var perr *PartiallyAppliedError
		if errors.As(err, &perr) {
			perr.Removed = append([]uuid.UUID{}, res.Removed...)
		}
		return res, err
	}

	logging.Logger.WithFields(logrus.Fields{
		"owner":         node.Owner,
		"project":       node.ID,
		"removed":       len(res.Removed),
		"tasks_removed": res.TasksRemoved,
	}).Info("Deleted project subtree")

	return res, nil
}

// removeNode deletes the descendants of id depth first, then the tasks
// scoped to id, then id itself.
func (r *remover) removeNode(ctx context.Context, s *saga, owner, id uuid.UUID, visited map[uuid.UUID]struct{}, res *RemoveResult) error {
	if _, seen := visited[id]; seen {
		return nil
	}
	visited[id] = struct{}{}

	parent := id
	children, err := r.store.FindProjects(ctx, owner, models.ProjectFilter{Ancestor: &parent})
	if err != nil {
		return s.fail(ctx, "find children", err)
	}

	for _, child := range children {
		if err := r.removeNode(ctx, s, owner, child.ID, visited, res); err != nil {
			return err
		}
	}

	n, err := r.store.DeleteTasksByProject(ctx, owner, id)
	if err != nil {
		return s.fail(ctx, "delete tasks", err)
	}
	if n > 0 {
		s.wrote()
		res.TasksRemoved += n
	}

	err = r.store.DeleteProject(ctx, owner, id)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return s.fail(ctx, "delete project", err)
	}
	if err == nil {
		s.wrote()
		res.Removed = append(res.Removed, id)
	}

	return nil
}
