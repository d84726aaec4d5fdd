package database

import (
	"fmt"
	"strings"

	"taskhub/models"
)

const (
	columnID          = "id"
	columnOwnerID     = "owner_id"
	columnName        = "name"
	columnAncestorID  = "ancestor_id"
	columnChildren    = "children"
	columnProjectID   = "project_id"
	columnDescription = "description"
	columnCompleted   = "completed"
	columnCreatedAt   = "created_at"
	columnUpdatedAt   = "updated_at"
)

// QueryBuilder helps build WHERE clauses safely
type QueryBuilder struct {
	conditions []string
	args       []interface{}
	argCount   int
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		conditions: []string{},
		args:       []interface{}{},
		argCount:   1,
	}
}

func (qb *QueryBuilder) AddCondition(column string, value interface{}) {
	qb.conditions = append(qb.conditions, fmt.Sprintf("%s = $%d", column, qb.argCount))
	qb.args = append(qb.args, value)
	qb.argCount++
}

func (qb *QueryBuilder) AddIsNull(column string) {
	qb.conditions = append(qb.conditions, fmt.Sprintf("%s IS NULL", column))
}

func (qb *QueryBuilder) WhereClause() string {
	if len(qb.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(qb.conditions, " AND ")
}

func (qb *QueryBuilder) Args() []interface{} {
	return qb.args
}

func (qb *QueryBuilder) NextArgNum() int {
	return qb.argCount
}

// Helper functions

// taskOrderBy maps a task sort expression to an ORDER BY clause. Only
// whitelisted column names ever reach the SQL text.
func taskOrderBy(sortBy string) (string, error) {
	field, desc, err := models.ParseTaskSort(sortBy)
	if err != nil {
		return "", err
	}

	column := columnCreatedAt
	switch field {
	case models.TaskSortUpdatedAt:
		column = columnUpdatedAt
	case models.TaskSortDescription:
		column = columnDescription
	case models.TaskSortCompleted:
		column = columnCompleted
	}

	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, %s %s", column, dir, columnID, dir), nil
}
