package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trustcore/internal/constants"
	pkgerrors "trustcore/pkg/errors"
)

type Registry interface {
	// GetPlugin returns nil without error when the plugin is not registered.
	GetPlugin(ctx context.Context, id string) (*Plugin, error)
	Register(ctx context.Context, p *Plugin) error
	List(ctx context.Context) ([]Plugin, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type mongoRegistry struct {
	collection *mongo.Collection
}

func NewMongoRegistry(db *mongo.Database) Registry {
	return &mongoRegistry{
		collection: db.Collection(constants.PluginsCollection),
	}
}

func (r *mongoRegistry) GetPlugin(ctx context.Context, id string) (*Plugin, error) {
	var p Plugin
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plugin: %w", err)
	}

	return &p, nil
}

func (r *mongoRegistry) Register(ctx context.Context, p *Plugin) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("plugin '%s' already registered", p.ID))
		}
		return fmt.Errorf("failed to register plugin: %w", err)
	}

	return nil
}

func (r *mongoRegistry) List(ctx context.Context) ([]Plugin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	defer cursor.Close(ctx)

	plugins := []Plugin{}
	if err := cursor.All(ctx, &plugins); err != nil {
		return nil, fmt.Errorf("failed to decode plugins: %w", err)
	}

	return plugins, nil
}

func (r *mongoRegistry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	update := bson.M{"$set": bson.M{"enabled": enabled, "updated_at": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update plugin: %w", err)
	}
	if result.MatchedCount == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("plugin '%s' not found", id))
	}

	return nil
}
