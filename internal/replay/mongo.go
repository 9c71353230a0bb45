package replay

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"switchyard/internal/constants"
	apperrors "switchyard/pkg/errors"
)

type MongoConfigs struct {
	collection *mongo.Collection
}

func NewMongoConfigs(db *mongo.Database) *MongoConfigs {
	return &MongoConfigs{collection: db.Collection(constants.CollectionReplayConfigs)}
}

func (r *MongoConfigs) Save(ctx context.Context, cfg Config) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": cfg.ID}, cfg, opts); err != nil {
		return fmt.Errorf("failed to save replay config: %w", err)
	}
	return nil
}

func (r *MongoConfigs) Get(ctx context.Context, id string) (*Config, error) {
	var cfg Config
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replay config: %w", err)
	}
	return &cfg, nil
}

func (r *MongoConfigs) List(ctx context.Context) ([]Config, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list replay configs: %w", err)
	}
	defer cursor.Close(ctx)

	var configs []Config
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode replay configs: %w", err)
	}
	return configs, nil
}

func (r *MongoConfigs) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete replay config: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound.WithMessagef("replay config %s not found", id)
	}
	return nil
}
