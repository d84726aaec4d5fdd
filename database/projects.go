package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"taskhub/logging"
	"taskhub/models"
)

var projectColumns = fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s",
	columnID, columnOwnerID, columnName, columnAncestorID, columnChildren, columnCreatedAt, columnUpdatedAt)

func (db *DB) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM projects
		WHERE owner_id = $1 AND id = $2
	`, projectColumns)

	project, err := scanProject(db.Pool.QueryRow(ctx, query, owner, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// FindProjects lists an owner's projects, oldest first.
func (db *DB) FindProjects(ctx context.Context, owner uuid.UUID, filter models.ProjectFilter) ([]models.Project, error) {
	start := time.Now()
	defer func() {
		logging.Logger.WithFields(logrus.Fields{
			"owner":      owner,
			"duration":   time.Since(start),
			"roots_only": filter.RootsOnly,
		}).Debug("FindProjects")
	}()

	qb := NewQueryBuilder()
	qb.AddCondition(columnOwnerID, owner)
	switch {
	case filter.Ancestor != nil:
		qb.AddCondition(columnAncestorID, *filter.Ancestor)
	case filter.RootsOnly:
		qb.AddIsNull(columnAncestorID)
	}

	// SAFETY: All user input is parameterized via $N placeholders.
	query := fmt.Sprintf(`
		SELECT %s
		FROM projects
		%s
		ORDER BY %s ASC, %s ASC
	`, projectColumns, qb.WhereClause(), columnCreatedAt, columnID)

	rows, err := db.Pool.Query(ctx, query, qb.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to find projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

func (db *DB) InsertProject(ctx context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Children == nil {
		p.Children = []uuid.UUID{}
	}

	query := `
		INSERT INTO projects (id, owner_id, name, ancestor_id, children)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := db.Pool.QueryRow(ctx, query, p.ID, p.Owner, p.Name, p.Ancestor, p.Children).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{"project": p.ID, "owner": p.Owner}).Debug("Inserted project")
	return nil
}

func (db *DB) RenameProject(ctx context.Context, owner, id uuid.UUID, name string) error {
	query := `
		UPDATE projects
		SET name = $3, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
	`

	result, err := db.Pool.Exec(ctx, query, owner, id, name)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetChildren replaces the children array only while it still equals
// expected. false with a nil error means another write got there first.
func (db *DB) SetChildren(ctx context.Context, owner, id uuid.UUID, expected, children []uuid.UUID) (bool, error) {
	if expected == nil {
		expected = []uuid.UUID{}
	}
	if children == nil {
		children = []uuid.UUID{}
	}

	query := `
		UPDATE projects
		SET children = $4, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2 AND children = $3
	`
	return db.conditionalUpdate(ctx, "children", query, owner, id, expected, children)
}

func (db *DB) DeleteProject(ctx context.Context, owner, id uuid.UUID) error {
	query := `DELETE FROM projects WHERE owner_id = $1 AND id = $2`

	result, err := db.Pool.Exec(ctx, query, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}

	logging.Logger.WithFields(logrus.Fields{"project": id, "owner": owner}).Debug("Deleted project")
	return nil
}

func (db *DB) AddChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	query := `
		UPDATE projects
		SET children = array_append(children, $3), updated_at = NOW()
		WHERE owner_id = $1 AND id = $2 AND NOT ($3 = ANY(children))
	`
	return db.conditionalUpdate(ctx, "children", query, owner, parent, child)
}

func (db *DB) RemoveChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	query := `
		UPDATE projects
		SET children = array_remove(children, $3), updated_at = NOW()
		WHERE owner_id = $1 AND id = $2 AND $3 = ANY(children)
	`
	return db.conditionalUpdate(ctx, "children", query, owner, parent, child)
}

// conditionalUpdate runs a single-row update whose WHERE clause starts
// with owner_id = $1 AND id = $2. Zero rows means either the condition did
// not hold or the row does not exist.
func (db *DB) conditionalUpdate(ctx context.Context, what, query string, owner, id uuid.UUID, args ...any) (bool, error) {
	result, err := db.Pool.Exec(ctx, query, append([]any{owner, id}, args...)...)
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", what, err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	exists, err := db.projectExists(ctx, owner, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	return false, nil
}

func (db *DB) SetAncestor(ctx context.Context, owner, id uuid.UUID, ancestor *uuid.UUID) error {
	query := `
		UPDATE projects
		SET ancestor_id = $3, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
	`

	result, err := db.Pool.Exec(ctx, query, owner, id, ancestor)
	if err != nil {
		return fmt.Errorf("failed to set ancestor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ClearAncestor detaches id only while its ancestor is still expected.
func (db *DB) ClearAncestor(ctx context.Context, owner, id, expected uuid.UUID) (bool, error) {
	query := `
		UPDATE projects
		SET ancestor_id = NULL, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2 AND ancestor_id = $3
	`
	return db.conditionalUpdate(ctx, "ancestor", query, owner, id, expected)
}

func (db *DB) Owners(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := db.Pool.Query(ctx, `SELECT DISTINCT owner_id FROM projects ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	owners := []uuid.UUID{}
	for rows.Next() {
		var owner uuid.UUID
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating owners: %w", err)
	}
	return owners, nil
}

func (db *DB) projectExists(ctx context.Context, owner, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE owner_id = $1 AND id = $2)`, owner, id).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}
	return exists, nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	err := row.Scan(
		&project.ID,
		&project.Owner,
		&project.Name,
		&project.Ancestor,
		&project.Children,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if project.Children == nil {
		project.Children = []uuid.UUID{}
	}
	return &project, nil
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanProjects(rows rowsScanner) ([]models.Project, error) {
	projects := []models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}
