// Package mongostore keeps projects and tasks as MongoDB documents. Every
// write touches exactly one document, and every query is filtered by owner.
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

const (
	projectsCollection = "projects"
	tasksCollection    = "tasks"
)

type Store struct {
	client   *mongo.Client
	projects *mongo.Collection
	tasks    *mongo.Collection
	now      func() time.Time
}

// Connect dials uri, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := New(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logging.Logger.WithField("database", database).Info("Mongo connection established")
	return s, nil
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		projects: db.Collection(projectsCollection),
		tasks:    db.Collection(tasksCollection),
		// Mongo keeps millisecond precision.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.projects.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "ancestor_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create project indexes: %w", err)
	}

	_, err = s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "project_id", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongo: %w", err)
	}
	logging.Logger.Info("Mongo connection closed")
	return nil
}

func ownedFilter(owner, id uuid.UUID) bson.M {
	return bson.M{"_id": id.String(), "owner_id": owner.String()}
}

// Projects

func (s *Store) GetProject(ctx context.Context, owner, id uuid.UUID) (*models.Project, error) {
	var doc projectDoc
	err := s.projects.FindOne(ctx, ownedFilter(owner, id)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("project %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return doc.project()
}

func (s *Store) FindProjects(ctx context.Context, owner uuid.UUID, filter models.ProjectFilter) ([]models.Project, error) {
	start := time.Now()
	defer func() {
		logging.Logger.WithFields(logrus.Fields{
			"owner":      owner,
			"duration":   time.Since(start),
			"roots_only": filter.RootsOnly,
		}).Debug("FindProjects")
	}()

	cursor, err := s.projects.Find(ctx, projectFilter(owner, filter),
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find projects: %w", err)
	}

	var docs []projectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}

	projects := make([]models.Project, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.project()
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

func projectFilter(owner uuid.UUID, filter models.ProjectFilter) bson.M {
	f := bson.M{"owner_id": owner.String()}
	switch {
	case filter.Ancestor != nil:
		f["ancestor_id"] = filter.Ancestor.String()
	case filter.RootsOnly:
		f["ancestor_id"] = nil
	}
	return f
}

func (s *Store) InsertProject(ctx context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Children == nil {
		p.Children = []uuid.UUID{}
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	if _, err := s.projects.InsertOne(ctx, toProjectDoc(p)); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	logging.Logger.WithFields(logrus.Fields{"project": p.ID, "owner": p.Owner}).Debug("Inserted project")
	return nil
}

func (s *Store) RenameProject(ctx context.Context, owner, id uuid.UUID, name string) error {
	update := bson.M{"$set": bson.M{
		"name":       name,
		"updated_at": s.now(),
	}}
	result, err := s.projects.UpdateOne(ctx, ownedFilter(owner, id), update)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// SetChildren replaces the children array only while it still equals
// expected. An array-valued filter matches the stored array exactly,
// order included.
func (s *Store) SetChildren(ctx context.Context, owner, id uuid.UUID, expected, children []uuid.UUID) (bool, error) {
	filter := ownedFilter(owner, id)
	filter["children"] = idStrings(expected)
	update := bson.M{"$set": bson.M{
		"children":   idStrings(children),
		"updated_at": s.now(),
	}}
	return s.conditionalUpdate(ctx, filter, update, owner, id)
}

func (s *Store) DeleteProject(ctx context.Context, owner, id uuid.UUID) error {
	result, err := s.projects.DeleteOne(ctx, ownedFilter(owner, id))
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}

	logging.Logger.WithFields(logrus.Fields{"project": id, "owner": owner}).Debug("Deleted project")
	return nil
}

func (s *Store) AddChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	filter := ownedFilter(owner, parent)
	filter["children"] = bson.M{"$ne": child.String()}
	update := bson.M{
		"$push": bson.M{"children": child.String()},
		"$set":  bson.M{"updated_at": s.now()},
	}
	return s.conditionalUpdate(ctx, filter, update, owner, parent)
}

func (s *Store) RemoveChild(ctx context.Context, owner, parent, child uuid.UUID) (bool, error) {
	filter := ownedFilter(owner, parent)
	filter["children"] = child.String()
	update := bson.M{
		"$pull": bson.M{"children": child.String()},
		"$set":  bson.M{"updated_at": s.now()},
	}
	return s.conditionalUpdate(ctx, filter, update, owner, parent)
}

// conditionalUpdate runs a single-document update. No match means either
// the filter's condition did not hold or the project is gone.
func (s *Store) conditionalUpdate(ctx context.Context, filter, update bson.M, owner, parent uuid.UUID) (bool, error) {
	result, err := s.projects.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update project: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.projects.CountDocuments(ctx, ownedFilter(owner, parent))
	if err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}
	if n == 0 {
		return false, fmt.Errorf("project %s: %w", parent, models.ErrNotFound)
	}
	return false, nil
}

func (s *Store) SetAncestor(ctx context.Context, owner, id uuid.UUID, ancestor *uuid.UUID) error {
	update := bson.M{"$set": bson.M{
		"ancestor_id": optionalString(ancestor),
		"updated_at":  s.now(),
	}}
	result, err := s.projects.UpdateOne(ctx, ownedFilter(owner, id), update)
	if err != nil {
		return fmt.Errorf("failed to set ancestor: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("project %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ClearAncestor detaches id only while its ancestor is still expected.
func (s *Store) ClearAncestor(ctx context.Context, owner, id, expected uuid.UUID) (bool, error) {
	filter := ownedFilter(owner, id)
	filter["ancestor_id"] = expected.String()
	update := bson.M{"$set": bson.M{
		"ancestor_id": nil,
		"updated_at":  s.now(),
	}}
	return s.conditionalUpdate(ctx, filter, update, owner, id)
}

func (s *Store) Owners(ctx context.Context) ([]uuid.UUID, error) {
	values, err := s.projects.Distinct(ctx, "owner_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}

	owners := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected owner value %v", v)
		}
		owner, err := uuid.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("corrupt owner %q: %w", str, err)
		}
		owners = append(owners, owner)
	}
	return owners, nil
}
