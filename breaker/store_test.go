package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/memstore"
	"taskhub/models"
)

var errDown = errors.New("connection refused")

type flakyStore struct {
	*memstore.Store
	down bool
}

func (f *flakyStore) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	if f.down {
		return nil, errDown
	}
	return f.Store.GetProject(ctx, owner, id)
}

func newTestStore(maxFailures uint32) (*Store, *flakyStore) {
	backend := &flakyStore{Store: memstore.New()}
	return New(backend, Settings{Name: "test", MaxFailures: maxFailures, Timeout: time.Minute}), backend
}

func TestStore_PassesThrough(t *testing.T) {
	s, _ := newTestStore(3)
	ctx := context.Background()
	owner := uuid.New()

	p := &models.Project{Owner: owner, Name: "Home"}
	require.NoError(t, s.InsertProject(ctx, p))

	got, err := s.GetProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Name)

	changed, err := s.AddChild(ctx, owner, p.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, changed)

	n, err := s.DeleteTasksByProject(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_NotFoundDoesNotTrip(t *testing.T) {
	s, _ := newTestStore(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.GetProject(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestStore_TripsOnFailures(t *testing.T) {
	s, backend := newTestStore(2)
	ctx := context.Background()
	backend.down = true

	for i := 0; i < 2; i++ {
		_, err := s.GetProject(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, errDown)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	backend.down = false
	_, err := s.GetProject(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	err = s.InsertProject(ctx, &models.Project{Owner: uuid.New(), Name: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIsSuccessful(t *testing.T) {
	assert.True(t, isSuccessful(nil))
	assert.True(t, isSuccessful(models.ErrNotFound))
	assert.True(t, isSuccessful(models.ErrInvalidArgument))
	assert.True(t, isSuccessful(context.Canceled))
	assert.False(t, isSuccessful(errDown))
	assert.False(t, isSuccessful(context.DeadlineExceeded))
}
