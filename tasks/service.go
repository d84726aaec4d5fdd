// Package tasks is owner-scoped CRUD for tasks. A task may be scoped to
// one of its owner's projects; the hierarchy package deletes it with that
// project.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskhub/logging"
	"taskhub/models"
)

const (
	// unlimited returns every match when the caller sets no limit.
	unlimited = 0
	maxLimit  = 1000
)

type Store interface {
	GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error)

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, owner, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error)
	SaveTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, owner, id uuid.UUID) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, owner uuid.UUID, req models.CreateTaskRequest) (*models.Task, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description must not be empty", models.ErrInvalidArgument)
	}
	if err := s.checkProject(ctx, owner, req.Project); err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.New(),
		Description: description,
		Completed:   req.Completed,
		Owner:       owner,
		Project:     req.Project,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{
		"owner": owner,
		"task":  task.ID,
	}).Info("Created task")
	return task, nil
}

func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the owner's tasks. Without a limit every match is returned;
// an explicit limit is capped at 1000, and a negative Skip is treated as
// zero.
func (s *Service) List(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error) {
	if _, _, err := models.ParseTaskSort(q.SortBy); err != nil {
		return nil, err
	}
	q.Limit = validateLimit(q.Limit, unlimited, maxLimit)
	q.Skip = validateOffset(q.Skip)

	tasks, err := s.store.ListTasks(ctx, owner, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	saved, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if patch.SetProject {
		if err := s.checkProject(ctx, owner, patch.Project); err != nil {
			return nil, err
		}
	}

	task := patch.Apply(*saved)
	if err := s.store.SaveTask(ctx, &task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &task, nil
}

// Delete removes the task and returns it as it was.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	saved, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteTask(ctx, owner, id); err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	return saved, nil
}

func (s *Service) checkProject(ctx context.Context, owner uuid.UUID, project *uuid.UUID) error {
	if project == nil {
		return nil
	}
	_, err := s.store.GetProject(ctx, owner, *project)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: project %s", models.ErrNotFound, *project)
	}
	return err
}

func validateLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func validateOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
