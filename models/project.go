package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is one node of an owner's project forest.
// Ancestor and Children are two views of the same edges and are kept
// symmetric by the hierarchy package, not by the store.
type Project struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Owner     uuid.UUID   `json:"owner" db:"owner_id"`
	Ancestor  *uuid.UUID  `json:"ancestor" db:"ancestor_id"`
	Children  []uuid.UUID `json:"children" db:"children"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy that can be mutated without touching
// p's Ancestor or Children.
func (p Project) Clone() Project {
	c := p
	if p.Ancestor != nil {
		a := *p.Ancestor
		c.Ancestor = &a
	}
	c.Children = append([]uuid.UUID{}, p.Children...)
	return c
}

// HasChild reports whether id is listed in p.Children.
func (p Project) HasChild(id uuid.UUID) bool {
	for _, c := range p.Children {
		if c == id {
			return true
		}
	}
	return false
}

// ProjectFilter narrows FindProjects. The owner is always passed separately.
type ProjectFilter struct {
	// Ancestor matches projects whose ancestor equals this id.
	Ancestor *uuid.UUID
	// RootsOnly matches projects with no ancestor. Ignored when Ancestor is set.
	RootsOnly bool
}

// CreateProjectRequest is the payload for creating a project.
// Owner is never read from the body; it comes from the bearer token.
type CreateProjectRequest struct {
	Name     string      `json:"name" binding:"required,max=255"`
	Ancestor *uuid.UUID  `json:"ancestor"`
	Children []uuid.UUID `json:"children"`
}

// ProjectDetail is a project with its subprojects and tasks populated.
type ProjectDetail struct {
	Project
	Subprojects []Project `json:"subprojects"`
	Tasks       []Task    `json:"tasks"`
}

// ProjectsResponse is the standard response format for project listings.
type ProjectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}
