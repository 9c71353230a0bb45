package recovery

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"switchyard/internal/constants"
	apperrors "switchyard/pkg/errors"
)

type MongoPlans struct {
	collection *mongo.Collection
}

func NewMongoPlans(db *mongo.Database) *MongoPlans {
	return &MongoPlans{collection: db.Collection(constants.CollectionRecoveryPlans)}
}

func (r *MongoPlans) Save(ctx context.Context, p Plan) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts); err != nil {
		return fmt.Errorf("failed to save recovery plan: %w", err)
	}
	return nil
}

func (r *MongoPlans) Get(ctx context.Context, id string) (*Plan, error) {
	var p Plan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery plan: %w", err)
	}
	return &p, nil
}

func (r *MongoPlans) List(ctx context.Context) ([]Plan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery plans: %w", err)
	}
	defer cursor.Close(ctx)

	var plans []Plan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, fmt.Errorf("failed to decode recovery plans: %w", err)
	}
	return plans, nil
}

func (r *MongoPlans) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete recovery plan: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrNotFound.WithMessagef("recovery plan %s not found", id)
	}
	return nil
}

type MongoExecutions struct {
	collection *mongo.Collection
}

func NewMongoExecutions(db *mongo.Database) *MongoExecutions {
	return &MongoExecutions{collection: db.Collection(constants.CollectionRecoveryExecutions)}
}

func (r *MongoExecutions) Save(ctx context.Context, e Execution) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": e.ID}, e, opts); err != nil {
		return fmt.Errorf("failed to save recovery execution: %w", err)
	}
	return nil
}

func (r *MongoExecutions) Get(ctx context.Context, id string) (*Execution, error) {
	var e Execution
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery execution: %w", err)
	}
	return &e, nil
}

func (r *MongoExecutions) List(ctx context.Context, planID string, limit int) ([]Execution, error) {
	filter := bson.M{}
	if planID != "" {
		filter["plan_id"] = planID
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery executions: %w", err)
	}
	defer cursor.Close(ctx)

	var execs []Execution
	if err := cursor.All(ctx, &execs); err != nil {
		return nil, fmt.Errorf("failed to decode recovery executions: %w", err)
	}
	return execs, nil
}
