package mongostore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskhub/models"
)

// UUIDs are stored in their canonical string form so documents stay
// readable from the mongo shell.

type projectDoc struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner_id"`
	Name      string    `bson:"name"`
	Ancestor  *string   `bson:"ancestor_id"`
	Children  []string  `bson:"children"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type taskDoc struct {
	ID          string    `bson:"_id"`
	Owner       string    `bson:"owner_id"`
	Project     *string   `bson:"project_id"`
	Description string    `bson:"description"`
	Completed   bool      `bson:"completed"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toProjectDoc(p *models.Project) projectDoc {
	return projectDoc{
		ID:        p.ID.String(),
		Owner:     p.Owner.String(),
		Name:      p.Name,
		Ancestor:  optionalString(p.Ancestor),
		Children:  idStrings(p.Children),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d projectDoc) project() (*models.Project, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt project id %q: %w", d.ID, err)
	}
	owner, err := uuid.Parse(d.Owner)
	if err != nil {
		return nil, fmt.Errorf("corrupt owner on project %s: %w", d.ID, err)
	}
	ancestor, err := optionalID(d.Ancestor)
	if err != nil {
		return nil, fmt.Errorf("corrupt ancestor on project %s: %w", d.ID, err)
	}
	children, err := parseIDs(d.Children)
	if err != nil {
		return nil, fmt.Errorf("corrupt children on project %s: %w", d.ID, err)
	}

	return &models.Project{
		ID:        id,
		Owner:     owner,
		Name:      d.Name,
		Ancestor:  ancestor,
		Children:  children,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func toTaskDoc(t *models.Task) taskDoc {
	return taskDoc{
		ID:          t.ID.String(),
		Owner:       t.Owner.String(),
		Project:     optionalString(t.Project),
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (d taskDoc) task() (*models.Task, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt task id %q: %w", d.ID, err)
	}
	owner, err := uuid.Parse(d.Owner)
	if err != nil {
		return nil, fmt.Errorf("corrupt owner on task %s: %w", d.ID, err)
	}
	project, err := optionalID(d.Project)
	if err != nil {
		return nil, fmt.Errorf("corrupt project on task %s: %w", d.ID, err)
	}

	return &models.Task{
		ID:          id,
		Owner:       owner,
		Project:     project,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func optionalString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optionalID(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseIDs(ss []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(ss))
	for i, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
