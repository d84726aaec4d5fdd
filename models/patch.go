package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ProjectPatch is a partial project update. Only name, ancestor and
// children may be changed; owner and timestamps are immutable.
type ProjectPatch struct {
	Name *string

	// SetAncestor is true when the patch carries an ancestor key.
	// Ancestor nil with SetAncestor true detaches the project.
	SetAncestor bool
	Ancestor    *uuid.UUID

	SetChildren bool
	Children    []uuid.UUID
}

// Touches reports whether the patch changes any hierarchy edge.
func (p ProjectPatch) Touches() bool {
	return p.SetAncestor || p.SetChildren
}

// Apply returns a copy of saved with the patch applied.
func (p ProjectPatch) Apply(saved Project) Project {
	desired := saved.Clone()
	if p.Name != nil {
		desired.Name = *p.Name
	}
	if p.SetAncestor {
		desired.Ancestor = nil
		if p.Ancestor != nil {
			a := *p.Ancestor
			desired.Ancestor = &a
		}
	}
	if p.SetChildren {
		desired.Children = append([]uuid.UUID{}, p.Children...)
	}
	return desired
}

// DecodeProjectPatch parses a JSON merge-style patch body.
// Unknown fields, an empty name and malformed ids are ErrInvalidArgument.
func DecodeProjectPatch(data []byte) (ProjectPatch, error) {
	var patch ProjectPatch

	fields, err := decodeFields(data)
	if err != nil {
		return patch, err
	}

	for key, raw := range fields {
		switch key {
		case "name":
			name, err := decodeName(key, raw)
			if err != nil {
				return patch, err
			}
			patch.Name = &name
		case "ancestor":
			id, err := decodeOptionalID(key, raw)
			if err != nil {
				return patch, err
			}
			patch.SetAncestor = true
			patch.Ancestor = id
		case "children":
			ids, err := decodeIDList(key, raw)
			if err != nil {
				return patch, err
			}
			patch.SetChildren = true
			patch.Children = ids
		default:
			return patch, fmt.Errorf("%w: field %q cannot be updated", ErrInvalidArgument, key)
		}
	}

	return patch, nil
}

// TaskPatch is a partial task update.
type TaskPatch struct {
	Description *string
	Completed   *bool
	SetProject  bool
	Project     *uuid.UUID
}

func (p TaskPatch) Apply(saved Task) Task {
	t := saved
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.SetProject {
		t.Project = p.Project
	}
	return t
}

func DecodeTaskPatch(data []byte) (TaskPatch, error) {
	var patch TaskPatch

	fields, err := decodeFields(data)
	if err != nil {
		return patch, err
	}

	for key, raw := range fields {
		switch key {
		case "description":
			d, err := decodeName(key, raw)
			if err != nil {
				return patch, err
			}
			patch.Description = &d
		case "completed":
			var c bool
			if err := json.Unmarshal(raw, &c); err != nil {
				return patch, fmt.Errorf("%w: completed must be a boolean", ErrInvalidArgument)
			}
			patch.Completed = &c
		case "project":
			id, err := decodeOptionalID(key, raw)
			if err != nil {
				return patch, err
			}
			patch.SetProject = true
			patch.Project = id
		default:
			return patch, fmt.Errorf("%w: field %q cannot be updated", ErrInvalidArgument, key)
		}
	}

	return patch, nil
}

func decodeFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrInvalidArgument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidArgument)
	}
	return fields, nil
}

func decodeName(key string, raw json.RawMessage) (string, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgument, key)
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, key)
	}
	return trimmed, nil
}

func decodeOptionalID(key string, raw json.RawMessage) (*uuid.UUID, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s must be an id or null", ErrInvalidArgument, key)
	}
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s id %q", ErrInvalidArgument, key, *s)
	}
	return &id, nil
}

func decodeIDList(key string, raw json.RawMessage) ([]uuid.UUID, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("%w: %s must be a list of ids", ErrInvalidArgument, key)
	}
	ids := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s id %q", ErrInvalidArgument, key, s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
