package hierarchy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"taskhub/models"
)

// ancestorChange is the outcome of comparing saved and desired ancestors.
// Unlink is the old parent to drop the node from, Link the new parent to
// add it to. Either may be nil.
type ancestorChange struct {
	Unlink *uuid.UUID
	Link   *uuid.UUID
}

func planAncestor(saved, desired *uuid.UUID) ancestorChange {
	switch {
	case saved == nil && desired == nil:
		return ancestorChange{}
	case saved == nil:
		return ancestorChange{Link: desired}
	case desired == nil:
		return ancestorChange{Unlink: saved}
	case *saved == *desired:
		return ancestorChange{}
	default:
		return ancestorChange{Unlink: saved, Link: desired}
	}
}

// childrenChange lists the children whose ancestor must be cleared and
// the children whose ancestor must be set to the node, in that order.
type childrenChange struct {
	Clear []uuid.UUID
	Set   []uuid.UUID
}

func (c childrenChange) empty() bool {
	return len(c.Clear) == 0 && len(c.Set) == 0
}

// planChildren compares saved and desired children lists:
//
//   - desired empty: clear every saved child
//   - same length, different members: clear every saved child, then set
//     every desired child
//   - desired longer: set the added children (and clear any dropped ones)
//   - desired shorter: clear the dropped children (and set any added ones)
func planChildren(saved, desired []uuid.UUID) childrenChange {
	if len(desired) == 0 {
		return childrenChange{Clear: clone(saved)}
	}

	added := difference(desired, saved)
	removed := difference(saved, desired)

	if len(saved) == len(desired) {
		if len(added) == 0 && len(removed) == 0 {
			return childrenChange{}
		}
		return childrenChange{Clear: clone(saved), Set: clone(desired)}
	}

	return childrenChange{Clear: removed, Set: added}
}

// reconciler updates the far endpoint of every edge that changed between
// saved and desired. The node's own record has already been written.
type reconciler struct {
	store Store
}

// reconcile runs the ancestor axis, then the children axis. saved is nil
// for a newly created node.
func (r *reconciler) reconcile(ctx context.Context, s *saga, saved *models.Project, desired models.Project) error {
	var savedAncestor *uuid.UUID
	var savedChildren []uuid.UUID
	if saved != nil {
		savedAncestor = saved.Ancestor
		savedChildren = saved.Children
	}

	if err := r.applyAncestor(ctx, s, desired, planAncestor(savedAncestor, desired.Ancestor)); err != nil {
		return err
	}
	return r.applyChildren(ctx, s, desired, planChildren(savedChildren, desired.Children))
}

func (r *reconciler) applyAncestor(ctx context.Context, s *saga, node models.Project, change ancestorChange) error {
	owner, id := node.Owner, node.ID

	if change.Unlink != nil {
		old := *change.Unlink
		err := s.step(ctx, "unlink from old ancestor", func(ctx context.Context) (undoFunc, error) {
			removed, err := r.store.RemoveChild(ctx, owner, old, id)
			if errors.Is(err, models.ErrNotFound) {
				// The old ancestor is gone; nothing references the node.
				return nil, nil
			}
			if err != nil || !removed {
				return nil, err
			}
			return func(ctx context.Context) error {
				_, err := r.store.AddChild(ctx, owner, old, id)
				return err
			}, nil
		})
		if err != nil {
			return err
		}
	}

	if change.Link != nil {
		parent := *change.Link
		err := s.step(ctx, "link to new ancestor", func(ctx context.Context) (undoFunc, error) {
			added, err := r.store.AddChild(ctx, owner, parent, id)
			if err != nil || !added {
				return nil, err
			}
			return func(ctx context.Context) error {
				_, err := r.store.RemoveChild(ctx, owner, parent, id)
				return err
			}, nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *reconciler) applyChildren(ctx context.Context, s *saga, node models.Project, change childrenChange) error {
	if change.empty() {
		return nil
	}
	for _, child := range change.Clear {
		if err := r.clearChild(ctx, s, node, child); err != nil {
			return err
		}
	}
	for _, child := range change.Set {
		if err := r.adoptChild(ctx, s, node, child); err != nil {
			return err
		}
	}
	return nil
}

// clearChild drops the child's ancestor pointer, but only while it still
// points at node; a child that has since moved elsewhere is left alone.
func (r *reconciler) clearChild(ctx context.Context, s *saga, node models.Project, childID uuid.UUID) error {
	owner, parent := node.Owner, node.ID
	return s.step(ctx, "clear child ancestor", func(ctx context.Context) (undoFunc, error) {
		cleared, err := r.store.ClearAncestor(ctx, owner, childID, parent)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		if err != nil || !cleared {
			return nil, err
		}
		return func(ctx context.Context) error {
			return r.store.SetAncestor(ctx, owner, childID, &parent)
		}, nil
	})
}

// adoptChild points the child at node. A child that belonged to another
// parent is first removed from that parent's children.
func (r *reconciler) adoptChild(ctx context.Context, s *saga, node models.Project, childID uuid.UUID) error {
	owner := node.Owner

	child, err := r.store.GetProject(ctx, owner, childID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			err = notFoundf("child project %s", childID)
		}
		return s.fail(ctx, "load child", err)
	}

	prev := child.Ancestor
	if prev != nil && *prev == node.ID {
		return nil
	}

	if prev != nil {
		oldParent := *prev
		err := s.step(ctx, "detach child from previous ancestor", func(ctx context.Context) (undoFunc, error) {
			removed, err := r.store.RemoveChild(ctx, owner, oldParent, childID)
			if errors.Is(err, models.ErrNotFound) {
				return nil, nil
			}
			if err != nil || !removed {
				return nil, err
			}
			return func(ctx context.Context) error {
				_, err := r.store.AddChild(ctx, owner, oldParent, childID)
				return err
			}, nil
		})
		if err != nil {
			return err
		}
	}

	parent := node.ID
	return s.step(ctx, "set child ancestor", func(ctx context.Context) (undoFunc, error) {
		if err := r.store.SetAncestor(ctx, owner, childID, &parent); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return r.store.SetAncestor(ctx, owner, childID, prev)
		}, nil
	})
}

// difference returns the ids of a not present in b, preserving a's order.
func difference(a, b []uuid.UUID) []uuid.UUID {
	in := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, id := range a {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func clone(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	return append([]uuid.UUID{}, ids...)
}
