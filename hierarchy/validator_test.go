package hierarchy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/models"
)

func TestCheckShape(t *testing.T) {
	self := uuid.New()
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		self     uuid.UUID
		ancestor *uuid.UUID
		children []uuid.UUID
		wantErr  bool
	}{
		{name: "empty", self: self},
		{name: "ancestor and children", self: self, ancestor: &a, children: []uuid.UUID{b}},
		{name: "create may name anything", self: uuid.Nil, ancestor: &a, children: []uuid.UUID{b}},
		{name: "own ancestor", self: self, ancestor: &self, wantErr: true},
		{name: "own child", self: self, children: []uuid.UUID{self}, wantErr: true},
		{name: "ancestor is child", self: self, ancestor: &a, children: []uuid.UUID{b, a}, wantErr: true},
		{name: "duplicate child", self: self, children: []uuid.UUID{a, b, a}, wantErr: true},
		{name: "nil child", self: self, children: []uuid.UUID{uuid.Nil}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckShape(tt.self, tt.ancestor, tt.children)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	a := f.create("A", nil)
	b := f.create("B", nil)
	stranger := uuid.New()

	v := NewValidator(f.store)

	assert.NoError(t, v.Validate(f.ctx, f.owner, nil, nil))
	assert.NoError(t, v.Validate(f.ctx, f.owner, &a.ID, []uuid.UUID{b.ID}))

	err := v.Validate(f.ctx, f.owner, ptr(uuid.New()), nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, err.Error(), "ancestor")

	err = v.Validate(f.ctx, f.owner, &a.ID, []uuid.UUID{b.ID, uuid.New()})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, err.Error(), "child")

	err = v.Validate(f.ctx, stranger, &a.ID, nil)
	assert.ErrorIs(t, err, models.ErrNotFound, "another owner's project does not exist for the caller")
}

func TestValidate_StoreFailure(t *testing.T) {
	f := newFixture(t)
	a := f.create("A", nil)
	f.store.failCall("GetProject", 1)

	err := NewValidator(f.store).Validate(f.ctx, f.owner, &a.ID, nil)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestCheckAcyclic(t *testing.T) {
	f := newFixture(t)
	// root <- mid <- leaf
	root := f.create("root", nil)
	mid := f.create("mid", &root.ID)
	leaf := f.create("leaf", &mid.ID)
	other := f.create("other", nil)

	v := NewValidator(f.store)

	tests := []struct {
		name     string
		self     uuid.UUID
		ancestor *uuid.UUID
		children []uuid.UUID
		wantErr  bool
	}{
		{name: "no ancestor", self: root.ID, children: []uuid.UUID{leaf.ID}},
		{name: "move under unrelated", self: root.ID, ancestor: &other.ID},
		{name: "move leaf to root", self: leaf.ID, ancestor: &root.ID},
		{name: "move under own grandchild", self: root.ID, ancestor: &leaf.ID, wantErr: true},
		{name: "move under own child", self: mid.ID, ancestor: &leaf.ID, wantErr: true},
		{name: "adopt own ancestor", self: leaf.ID, ancestor: &mid.ID, children: []uuid.UUID{root.ID}, wantErr: true},
		{name: "create adopting ancestor's ancestor", self: uuid.Nil, ancestor: &leaf.ID, children: []uuid.UUID{root.ID}, wantErr: true},
		{name: "create under leaf", self: uuid.Nil, ancestor: &leaf.ID, children: []uuid.UUID{other.ID}},
		{name: "dangling ancestor ends walk", self: root.ID, ancestor: ptr(uuid.New())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CheckAcyclic(f.ctx, f.owner, tt.self, tt.ancestor, tt.children)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckAcyclic_CorruptLoopIsBounded(t *testing.T) {
	f := newFixture(t)
	a := f.create("a", nil)
	b := f.create("b", nil)
	// Corrupt the data directly: a and b point at each other.
	require.NoError(t, f.store.Store.SetAncestor(f.ctx, f.owner, a.ID, &b.ID))
	require.NoError(t, f.store.Store.SetAncestor(f.ctx, f.owner, b.ID, &a.ID))

	n := f.create("n", nil)
	err := NewValidator(f.store).CheckAcyclic(f.ctx, f.owner, n.ID, &a.ID, nil)

	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "deeper than")
}
