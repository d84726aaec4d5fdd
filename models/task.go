package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a leaf record owned by a user and optionally scoped to a project.
// Deleting a project deletes every task scoped to it.
type Task struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Description string     `json:"description" db:"description"`
	Completed   bool       `json:"completed" db:"completed"`
	Owner       uuid.UUID  `json:"owner" db:"owner_id"`
	Project     *uuid.UUID `json:"project" db:"project_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateTaskRequest struct {
	Description string     `json:"description" binding:"required"`
	Completed   bool       `json:"completed"`
	Project     *uuid.UUID `json:"project"`
}

// TaskQuery holds the list filters accepted by GET /tasks.
//
//	GET /tasks?completed=true
//	GET /tasks?limit=10&skip=0
//	GET /tasks?sortBy=created_at:desc
type TaskQuery struct {
	Completed *bool      `form:"completed"`
	Project   *uuid.UUID `form:"-"`
	SortBy    string     `form:"sortBy"`
	Limit     int        `form:"limit"`
	Skip      int        `form:"skip"`
}

type TasksResponse struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

const (
	TaskSortCreatedAt   = "created_at"
	TaskSortUpdatedAt   = "updated_at"
	TaskSortDescription = "description"
	TaskSortCompleted   = "completed"
)

var taskSortFields = map[string]string{
	"created_at":  TaskSortCreatedAt,
	"createdAt":   TaskSortCreatedAt,
	"updated_at":  TaskSortUpdatedAt,
	"updatedAt":   TaskSortUpdatedAt,
	"description": TaskSortDescription,
	"completed":   TaskSortCompleted,
}

// ParseTaskSort reads "field" or "field:asc|desc". Empty means oldest first.
// Anything after the colon other than "desc" sorts ascending.
func ParseTaskSort(sortBy string) (field string, desc bool, err error) {
	if sortBy == "" {
		return TaskSortCreatedAt, false, nil
	}

	name, dir, _ := strings.Cut(sortBy, ":")
	field, ok := taskSortFields[name]
	if !ok {
		return "", false, fmt.Errorf("%w: cannot sort by %q", ErrInvalidArgument, name)
	}
	return field, strings.EqualFold(dir, "desc"), nil
}
