// Package breaker puts a circuit breaker in front of a node store so a dead
// database fails requests fast instead of stacking timeouts.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"taskhub/hierarchy"
	"taskhub/logging"
	"taskhub/models"
	"taskhub/tasks"
)

// ErrUnavailable is returned while the breaker is open or half-open and
// saturated.
var ErrUnavailable = errors.New("store unavailable")

// Backend is everything the services need from a store.
type Backend interface {
	hierarchy.Store
	tasks.Store
}

type Settings struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
}

// Store forwards every call to the wrapped backend through one breaker.
// Not-found, invalid-argument and conflict results are answers, not failures, and
// never trip it.
type Store struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

func New(next Backend, s Settings) *Store {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Warnf("Circuit breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
	return &Store{next: next, cb: cb}
}

func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidArgument) ||
		errors.Is(err, models.ErrConflict) ||
		errors.Is(err, context.Canceled)
}

func call[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if result == nil {
		var zero T
		return zero, err
	}
	return result.(T), err
}

func exec(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := call(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (s *Store) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	return call(s.cb, func() (*models.Project, error) {
		return s.next.GetProject(ctx, owner, id)
	})
}

func (s *Store) FindProjects(ctx context.Context, owner uuid.UUID, filter models.ProjectFilter) ([]models.Project, error) {
	return call(s.cb, func() ([]models.Project, error) {
		return s.next.FindProjects(ctx, owner, filter)
	})
}

func (s *Store) InsertProject(ctx context.Context, p *models.Project) error {
	return exec(s.cb, func() error { return s.next.InsertProject(ctx, p) })
}

func (s *Store) RenameProject(ctx context.Context, owner, id uuid.UUID, name string) error {
	return exec(s.cb, func() error { return s.next.RenameProject(ctx, owner, id, name) })
}

func (s *Store) ClearAncestor(ctx context.Context, owner, id, expected uuid.UUID) (bool, error) {
	return call(s.cb, func() (bool, error) {
		return s.next.ClearAncestor(ctx, owner, id, expected)
	})
}

func (s *Store) SetChildren(ctx context.Context, owner, id uuid.UUID, expected, children []uuid.UUID) (bool, error) {
	return call(s.cb, func() (bool, error) {
		return s.next.SetChildren(ctx, owner, id, expected, children)
	})
}

func (s *Store) DeleteProject(ctx context.Context, owner, id uuid.UUID) error {
	return exec(s.cb, func() error { return s.next.DeleteProject(ctx, owner, id) })
}

func (s *Store) AddChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	return call(s.cb, func() (bool, error) {
		return s.next.AddChild(ctx, owner, parent, child)
	})
}

func (s *Store) RemoveChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	return call(s.cb, func() (bool, error) {
		return s.next.RemoveChild(ctx, owner, parent, child)
	})
}

func (s *Store) SetAncestor(ctx context.Context, owner, id uuid.UUID, ancestor *uuid.UUID) error {
	return exec(s.cb, func() error { return s.next.SetAncestor(ctx, owner, id, ancestor) })
}

func (s *Store) Owners(ctx context.Context) ([]uuid.UUID, error) {
	return call(s.cb, func() ([]uuid.UUID, error) {
		return s.next.Owners(ctx)
	})
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	return exec(s.cb, func() error { return s.next.CreateTask(ctx, t) })
}

func (s *Store) GetTask(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	return call(s.cb, func() (*models.Task, error) {
		return s.next.GetTask(ctx, owner, id)
	})
}

func (s *Store) ListTasks(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error) {
	return call(s.cb, func() ([]models.Task, error) {
		return s.next.ListTasks(ctx, owner, q)
	})
}

func (s *Store) SaveTask(ctx context.Context, t *models.Task) error {
	return exec(s.cb, func() error { return s.next.SaveTask(ctx, t) })
}

func (s *Store) DeleteTask(ctx context.Context, owner, id uuid.UUID) error {
	return exec(s.cb, func() error { return s.next.DeleteTask(ctx, owner, id) })
}

func (s *Store) DeleteTasksByProject(ctx context.Context, owner, project uuid.UUID) (int64, error) {
	return call(s.cb, func() (int64, error) {
		return s.next.DeleteTasksByProject(ctx, owner, project)
	})
}
