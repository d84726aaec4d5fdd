package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskhub/logging"
	"taskhub/models"
)

var taskSortKeys = map[string]string{
	models.TaskSortCreatedAt:   "created_at",
	models.TaskSortUpdatedAt:   "updated_at",
	models.TaskSortDescription: "description",
	models.TaskSortCompleted:   "completed",
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now

	if _, err := s.tasks.InsertOne(ctx, toTaskDoc(t)); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	var doc taskDoc
	err := s.tasks.FindOne(ctx, ownedFilter(owner, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return doc.task()
}

// ListTasks applies the completed and project filters, then sorting, then
// skip and limit. A zero limit returns every match.
func (s *Store) ListTasks(ctx context.Context, owner uuid.UUID, q models.TaskQuery) ([]models.Task, error) {
	start := time.Now()
	defer func() {
		logging.Logger.WithFields(logrus.Fields{
			"owner":    owner,
			"duration": time.Since(start),
			"sort":     q.SortBy,
		}).Debug("ListTasks")
	}()

	opts, err := taskFindOptions(q)
	if err != nil {
		return nil, err
	}

	cursor, err := s.tasks.Find(ctx, taskFilter(owner, q), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(docs))
	for _, doc := range docs {
		t, err := doc.task()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func taskFilter(owner uuid.UUID, q models.TaskQuery) bson.M {
	f := bson.M{"owner_id": owner.String()}
	if q.Completed != nil {
		f["completed"] = *q.Completed
	}
	if q.Project != nil {
		f["project_id"] = q.Project.String()
	}
	return f
}

func taskFindOptions(q models.TaskQuery) (*options.FindOptions, error) {
	field, desc, err := models.ParseTaskSort(q.SortBy)
	if err != nil {
		return nil, err
	}

	dir := 1
	if desc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: taskSortKeys[field], Value: dir},
		{Key: "_id", Value: dir},
	})
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts, nil
}

func (s *Store) SaveTask(ctx context.Context, t *models.Task) error {
	update := bson.M{"$set": bson.M{
		"description": t.Description,
		"completed":   t.Completed,
		"project_id":  optionalString(t.Project),
		"updated_at":  s.now(),
	}}

	var doc taskDoc
	err := s.tasks.FindOneAndUpdate(ctx, ownedFilter(t.Owner, t.ID), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("task %s: %w", t.ID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to save task: %w", err)
	}

	t.CreatedAt = doc.CreatedAt
	t.UpdatedAt = doc.UpdatedAt
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, owner, id uuid.UUID) error {
	result, err := s.tasks.DeleteOne(ctx, ownedFilter(owner, id))
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTasksByProject(ctx context.Context, owner, project uuid.UUID) (int64, error) {
	result, err := s.tasks.DeleteMany(ctx, bson.M{
		"owner_id":   owner.String(),
		"project_id": project.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete project tasks: %w", err)
	}
	return result.DeletedCount, nil
}
