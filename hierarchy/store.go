// Package hierarchy keeps an owner's project forest consistent.
//
// Every project stores both its ancestor and its ordered children, and the
// store only guarantees single-record atomicity. Operations here run as an
// ordered list of single-record writes: validate, persist the project's own
// fields, then reconcile the other endpoint of every edge that changed.
// A failure part way through runs the recorded compensations in reverse and
// reports a PartiallyAppliedError.
package hierarchy

import (
	"context"

	"github.com/google/uuid"

	"taskhub/models"
)

// Store is the node store the hierarchy operates on. Every call is scoped
// to one owner; a record owned by someone else is reported as
// models.ErrNotFound.
type Store interface {
	GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error)
	FindProjects(ctx context.Context, owner uuid.UUID, filter models.ProjectFilter) ([]models.Project, error)

	// InsertProject writes a new record and fills in its timestamps.
	InsertProject(ctx context.Context, p *models.Project) error
	RenameProject(ctx context.Context, owner, id uuid.UUID, name string) error
	DeleteProject(ctx context.Context, owner, id uuid.UUID) error

	// AddChild appends child to parent's children unless already present.
	// It reports whether the list changed.
	AddChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error)
	// RemoveChild drops child from parent's children and reports whether
	// the list changed.
	RemoveChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error)
	// SetChildren replaces the children list only while it still equals
	// expected, and reports whether it did.
	SetChildren(ctx context.Context, owner, id uuid.UUID, expected, children []uuid.UUID) (bool, error)
	SetAncestor(ctx context.Context, owner, id uuid.UUID, ancestor *uuid.UUID) error
	// ClearAncestor detaches id only while its ancestor is still expected,
	// and reports whether it did.
	ClearAncestor(ctx context.Context, owner, id, expected uuid.UUID) (bool, error)

	ListTasks(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error)
	DeleteTasksByProject(ctx context.Context, owner, project uuid.UUID) (int64, error)

	// Owners lists every owner with at least one project.
	Owners(ctx context.Context) ([]uuid.UUID, error)
}
