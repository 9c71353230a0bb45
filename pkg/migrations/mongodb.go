package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"switchyard/internal/constants"
)

// mongoIndexes lists the secondary indexes of each collection. Collections are created
// by the first insert.
var mongoIndexes = map[string][]mongo.IndexModel{
	constants.CollectionReplayConfigs: {
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_replay_configs_updated_at"),
		},
	},
	constants.CollectionRecoveryPlans: {
		{
			Keys:    bson.D{{Key: "enabled", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetName("idx_recovery_plans_enabled_type"),
		},
	},
	constants.CollectionRecoveryExecutions: {
		{
			Keys:    bson.D{{Key: "plan_id", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_recovery_executions_plan_started"),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_recovery_executions_started"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_recovery_executions_status"),
		},
	},
}

// EnsureMongoIndexes creates the indexes the replay and recovery stores query by.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, indexes := range mongoIndexes {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
