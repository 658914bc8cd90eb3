package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trustcore/internal/constants"
)

// EnsurePluginIndexes creates the indexes the plugin registry queries by. The collection
// itself is created on first insert.
func EnsurePluginIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.PluginsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_plugins_name").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "enabled", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_plugins_enabled_updated_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create plugin indexes: %w", err)
		}
	}

	return nil
}
