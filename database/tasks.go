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

var taskColumns = fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s",
	columnID, columnOwnerID, columnProjectID, columnDescription, columnCompleted, columnCreatedAt, columnUpdatedAt)

func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	query := `
		INSERT INTO tasks (id, owner_id, project_id, description, completed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := db.Pool.QueryRow(ctx, query, t.ID, t.Owner, t.Project, t.Description, t.Completed).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (db *DB) GetTask(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM tasks
		WHERE owner_id = $1 AND id = $2
	`, taskColumns)

	task, err := scanTask(db.Pool.QueryRow(ctx, query, owner, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks applies the completed and project filters, then sorting, then
// skip and limit. A zero limit returns every match.
func (db *DB) ListTasks(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error) {
	start := time.Now()
	defer func() {
		logging.Logger.WithFields(logrus.Fields{
			"owner":    owner,
			"duration": time.Since(start),
			"sort":     q.SortBy,
		}).Debug("ListTasks")
	}()

	orderBy, err := taskOrderBy(q.SortBy)
	if err != nil {
		return nil, err
	}

	qb := NewQueryBuilder()
	qb.AddCondition(columnOwnerID, owner)
	if q.Completed != nil {
		qb.AddCondition(columnCompleted, *q.Completed)
	}
	if q.Project != nil {
		qb.AddCondition(columnProjectID, *q.Project)
	}

	args := qb.Args()
	page := ""
	if q.Limit > 0 {
		page = fmt.Sprintf("LIMIT $%d OFFSET $%d", qb.NextArgNum(), qb.NextArgNum()+1)
		args = append(args, q.Limit, q.Skip)
	} else if q.Skip > 0 {
		page = fmt.Sprintf("OFFSET $%d", qb.NextArgNum())
		args = append(args, q.Skip)
	}

	// SAFETY: orderBy only contains whitelisted column names.
	query := fmt.Sprintf(`
		SELECT %s
		FROM tasks
		%s
		%s
		%s
	`, taskColumns, qb.WhereClause(), orderBy, page)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (db *DB) SaveTask(ctx context.Context, t *models.Task) error {
	query := `
		UPDATE tasks
		SET description = $3, completed = $4, project_id = $5, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING created_at, updated_at
	`

	err := db.Pool.QueryRow(ctx, query, t.Owner, t.ID, t.Description, t.Completed, t.Project).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("task %s: %w", t.ID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (db *DB) DeleteTask(ctx context.Context, owner, id uuid.UUID) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM tasks WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (db *DB) DeleteTasksByProject(ctx context.Context, owner, project uuid.UUID) (int64, error) {
	result, err := db.Pool.Exec(ctx, `DELETE FROM tasks WHERE owner_id = $1 AND project_id = $2`, owner, project)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.Owner,
		&task.Project,
		&task.Description,
		&task.Completed,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func scanTasks(rows rowsScanner) ([]models.Task, error) {
	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}
