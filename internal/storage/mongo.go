package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

const mongoCollection = "recipes"

var _ domain.RecipeStore = (*MongoStore)(nil)

// MongoStore keeps one MongoDB document per recipe, keyed by recipe id.
// Saves are last-writer-wins.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	newID  func() string
	log    *logger.Logger
}

// NewMongoStore connects to uri and uses database.recipes.
func NewMongoStore(ctx context.Context, uri, database string, log *logger.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	log.Debug("connected to mongo database %s", database)
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
		newID:  newPersistedID,
		log:    log,
	}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// List returns summaries of every recipe, sorted by title.
func (s *MongoStore) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.RecipeSummary
	for cur.Next(ctx) {
		var doc domain.Document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding recipe: %w", err)
		}
		out = append(out, doc.Summary())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	sortSummaries(out)
	return out, nil
}

// Load returns a recipe document.
func (s *MongoStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading recipe %s: %w", id, err)
	}
	if doc.Steps == nil {
		doc.Steps = make(map[domain.StepID]domain.DocStep)
	}
	if doc.Relations == nil {
		doc.Relations = make(map[string]domain.DocRelation)
	}
	return &doc, nil
}

func (s *MongoStore) replace(ctx context.Context, doc *domain.Document) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("storing recipe %s: %w", doc.ID, err)
	}
	return nil
}

// Create stores doc, replacing any document with the same id.
func (s *MongoStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := wire.Check(doc); err != nil {
		return err
	}
	return s.replace(ctx, doc)
}

// Save applies a change set to the stored document.
func (s *MongoStore) Save(ctx context.Context, cs *domain.ChangeSet) (*domain.IDMap, error) {
	cur, err := s.Load(ctx, cs.RecipeID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	next, ids, err := wire.Apply(cur, cs, s.newID)
	if err != nil {
		return nil, fmt.Errorf("saving recipe %s: %w", cs.RecipeID, err)
	}
	if err := s.replace(ctx, next); err != nil {
		return nil, err
	}
	return ids, nil
}

// Delete removes a recipe.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting recipe %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	return nil
}
