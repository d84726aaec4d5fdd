package hierarchy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taskhub/models"
)

const (
	// maxDepth bounds ancestor-chain walks so corrupted data cannot loop forever.
	maxDepth = 1024
	// lookupConcurrency caps parallel child lookups per request.
	lookupConcurrency = 8
)

// Validator checks references before any write. It never mutates the store.
type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate confirms that ancestor and every id in children exist under
// owner. Lookups run concurrently and the first miss fails the call.
func (v *Validator) Validate(ctx context.Context, owner uuid.UUID, ancestor *uuid.UUID, children []uuid.UUID) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)

	if ancestor != nil {
		id := *ancestor
		g.Go(func() error {
			return v.exists(gctx, owner, id, "ancestor")
		})
	}

	for _, id := range children {
		g.Go(func() error {
			return v.exists(gctx, owner, id, "child")
		})
	}

	return g.Wait()
}

func (v *Validator) exists(ctx context.Context, owner, id uuid.UUID, role string) error {
	_, err := v.store.GetProject(ctx, owner, id)
	if errors.Is(err, models.ErrNotFound) {
		return notFoundf("%s project %s", role, id)
	}
	return wrapStoreErr("lookup "+role, err)
}

// CheckShape rejects structural edits that would break the tree, using
// only the request itself: duplicate children, self references, and an
// ancestor that is also listed as a child. self is uuid.Nil for a create.
func CheckShape(self uuid.UUID, ancestor *uuid.UUID, children []uuid.UUID) error {
	if ancestor != nil && self != uuid.Nil && *ancestor == self {
		return invalidf("project cannot be its own ancestor")
	}

	seen := make(map[uuid.UUID]struct{}, len(children))
	for _, c := range children {
		if c == uuid.Nil {
			return invalidf("child id must not be empty")
		}
		if self != uuid.Nil && c == self {
			return invalidf("project cannot be its own child")
		}
		if ancestor != nil && c == *ancestor {
			return invalidf("project %s cannot be both ancestor and child", c)
		}
		if _, dup := seen[c]; dup {
			return invalidf("duplicate child %s", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// CheckAcyclic walks the ancestor chain starting at ancestor and fails if
// it reaches self or any of the desired children, either of which would
// close a cycle once the edit is applied. A dangling link ends the walk.
func (v *Validator) CheckAcyclic(ctx context.Context, owner, self uuid.UUID, ancestor *uuid.UUID, children []uuid.UUID) error {
	if ancestor == nil {
		return nil
	}
	if self == uuid.Nil && len(children) == 0 {
		return nil
	}

	forbidden := make(map[uuid.UUID]struct{}, len(children)+1)
	if self != uuid.Nil {
		forbidden[self] = struct{}{}
	}
	for _, c := range children {
		forbidden[c] = struct{}{}
	}

	next := *ancestor
	for depth := 0; depth < maxDepth; depth++ {
		if _, bad := forbidden[next]; bad {
			return invalidf("moving under %s would create a cycle through %s", *ancestor, next)
		}

		p, err := v.store.GetProject(ctx, owner, next)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return wrapStoreErr("walk ancestors", err)
		}
		if p.Ancestor == nil {
			return nil
		}
		next = *p.Ancestor
	}

	return invalidf("ancestor chain deeper than %d", maxDepth)
}
