package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProjectPatch(t *testing.T) {
	id := uuid.MustParse("7b0c1f7e-3f9a-4a59-9d59-8f3c2d9b1a10")
	other := uuid.MustParse("0f6e2a51-9c3e-4b7d-8a22-5d1e6c4b3a99")

	tests := []struct {
		name    string
		body    string
		want    ProjectPatch
		wantErr bool
	}{
		{name: "empty object", body: `{}`, want: ProjectPatch{}},
		{name: "name trimmed", body: `{"name": "  Work "}`, want: ProjectPatch{Name: strPtr("Work")}},
		{name: "set ancestor", body: `{"ancestor": "` + id.String() + `"}`, want: ProjectPatch{SetAncestor: true, Ancestor: &id}},
		{name: "detach", body: `{"ancestor": null}`, want: ProjectPatch{SetAncestor: true}},
		{
			name: "children",
			body: `{"children": ["` + id.String() + `", "` + other.String() + `"]}`,
			want: ProjectPatch{SetChildren: true, Children: []uuid.UUID{id, other}},
		},
		{name: "empty children", body: `{"children": []}`, want: ProjectPatch{SetChildren: true, Children: []uuid.UUID{}}},
		{name: "owner is immutable", body: `{"owner": "` + id.String() + `"}`, wantErr: true},
		{name: "unknown field", body: `{"colour": "red"}`, wantErr: true},
		{name: "empty name", body: `{"name": "   "}`, wantErr: true},
		{name: "null name", body: `{"name": null}`, wantErr: true},
		{name: "numeric name", body: `{"name": 3}`, wantErr: true},
		{name: "bad ancestor", body: `{"ancestor": "nope"}`, wantErr: true},
		{name: "bad child", body: `{"children": ["nope"]}`, wantErr: true},
		{name: "children not a list", body: `{"children": "` + id.String() + `"}`, wantErr: true},
		{name: "not an object", body: `[]`, wantErr: true},
		{name: "null body", body: `null`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeProjectPatch([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectPatch_Apply(t *testing.T) {
	ancestor := uuid.New()
	child := uuid.New()
	saved := Project{ID: uuid.New(), Name: "old", Ancestor: &ancestor, Children: []uuid.UUID{child}}

	desired := ProjectPatch{Name: strPtr("new"), SetAncestor: true, SetChildren: true}.Apply(saved)

	assert.Equal(t, "new", desired.Name)
	assert.Nil(t, desired.Ancestor)
	assert.Empty(t, desired.Children)

	assert.Equal(t, "old", saved.Name)
	assert.Equal(t, ancestor, *saved.Ancestor)
	assert.Equal(t, []uuid.UUID{child}, saved.Children)

	unchanged := ProjectPatch{}.Apply(saved)
	assert.Equal(t, saved, unchanged)
	assert.False(t, ProjectPatch{Name: strPtr("x")}.Touches())
	assert.True(t, ProjectPatch{SetChildren: true}.Touches())
}

func TestDecodeTaskPatch(t *testing.T) {
	project := uuid.New()
	done := true

	tests := []struct {
		name    string
		body    string
		want    TaskPatch
		wantErr bool
	}{
		{name: "description", body: `{"description": "write report"}`, want: TaskPatch{Description: strPtr("write report")}},
		{name: "completed", body: `{"completed": true}`, want: TaskPatch{Completed: &done}},
		{name: "project", body: `{"project": "` + project.String() + `"}`, want: TaskPatch{SetProject: true, Project: &project}},
		{name: "unscope", body: `{"project": null}`, want: TaskPatch{SetProject: true}},
		{name: "completed not bool", body: `{"completed": "yes"}`, wantErr: true},
		{name: "empty description", body: `{"description": ""}`, wantErr: true},
		{name: "unknown field", body: `{"id": "x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTaskPatch([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTaskSort(t *testing.T) {
	tests := []struct {
		input     string
		wantField string
		wantDesc  bool
		wantErr   bool
	}{
		{input: "", wantField: TaskSortCreatedAt},
		{input: "createdAt:desc", wantField: TaskSortCreatedAt, wantDesc: true},
		{input: "updated_at", wantField: TaskSortUpdatedAt},
		{input: "description:DESC", wantField: TaskSortDescription, wantDesc: true},
		{input: "completed:asc", wantField: TaskSortCompleted},
		{input: "completed:sideways", wantField: TaskSortCompleted},
		{input: "owner_id", wantErr: true},
		{input: "created_at; DROP TABLE tasks", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			field, desc, err := ParseTaskSort(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestProject_Clone(t *testing.T) {
	ancestor := uuid.New()
	p := Project{ID: uuid.New(), Ancestor: &ancestor, Children: []uuid.UUID{uuid.New()}}

	c := p.Clone()
	*c.Ancestor = uuid.New()
	c.Children[0] = uuid.New()

	assert.Equal(t, ancestor, *p.Ancestor)
	assert.NotEqual(t, c.Children[0], p.Children[0])
	assert.True(t, p.HasChild(p.Children[0]))
	assert.False(t, p.HasChild(c.Children[0]))
}

func strPtr(s string) *string {
	return &s
}
