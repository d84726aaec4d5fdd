package hierarchy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskhub/logging"
)

const compensationTimeout = 10 * time.Second

// undoFunc reverses one applied write.
type undoFunc func(ctx context.Context) error

type compensation struct {
	step string
	undo undoFunc
}

// saga runs an ordered list of single-record writes and remembers how to
// reverse each one. It is not safe for concurrent use.
type saga struct {
	op      string
	owner   uuid.UUID
	applied int
	undo    []compensation
	// compensate is false for operations that cannot be reversed, such as
	// a cascade delete.
	compensate bool
}

func newSaga(op string, owner uuid.UUID) *saga {
	return &saga{op: op, owner: owner, compensate: true}
}

// step runs fn. fn returns the undo for the write it made, or nil when it
// decided no write was needed.
func (s *saga) step(ctx context.Context, name string, fn func(ctx context.Context) (undoFunc, error)) error {
	undo, err := fn(ctx)
	if err != nil {
		return s.fail(ctx, name, err)
	}
	if undo != nil {
		s.applied++
		s.undo = append(s.undo, compensation{step: name, undo: undo})
	}
	return nil
}

// wrote counts a write with no compensation.
func (s *saga) wrote() {
	s.applied++
}

// fail turns a step error into the operation's result. With nothing applied
// yet the store error is returned as is; otherwise the compensations run
// in reverse and a PartiallyAppliedError is returned.
func (s *saga) fail(ctx context.Context, name string, err error) error {
	err = wrapStoreErr(name, err)
	if s.applied == 0 {
		return err
	}

	log := logging.Logger.WithFields(logrus.Fields{
		"op":      s.op,
		"owner":   s.owner,
		"step":    name,
		"applied": s.applied,
	})

	perr := &PartiallyAppliedError{
		Op:      s.op,
		Step:    name,
		Applied: s.applied,
		Err:     err,
	}

	if !s.compensate {
		log.WithError(err).Error("operation partially applied, no compensation available")
		return perr
	}

	// The request context may already be cancelled; compensations still run.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var errs []error
	for i := len(s.undo) - 1; i >= 0; i-- {
		c := s.undo[i]
		if uerr := c.undo(cctx); uerr != nil {
			log.WithError(uerr).WithField("compensating", c.step).Error("compensation failed")
			errs = append(errs, uerr)
		}
	}

	perr.CompensationErr = errors.Join(errs...)
	perr.RolledBack = len(errs) == 0
	log.WithError(err).WithField("rolled_back", perr.RolledBack).Warn("operation failed part way, compensated")
	return perr
}
