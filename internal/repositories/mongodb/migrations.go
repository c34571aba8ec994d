package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sosalert/pkg/database"
)

const (
	usersCollection  = "users"
	alertsCollection = "emergency_alerts"
)

// Migrations is the schema history of the store, oldest first.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Version:     1,
			Description: "Create users indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
					{
						Keys:    bson.D{{Key: "email", Value: 1}},
						Options: options.Index().SetUnique(true).SetName("email_unique"),
					},
					{
						Keys: bson.D{
							{Key: "role", Value: 1},
							{Key: "is_active", Value: 1},
							{Key: "location.latitude", Value: 1},
							{Key: "location.longitude", Value: 1},
						},
						Options: options.Index().SetName("volunteer_box"),
					},
				})
				return storeError(err, "create user indexes")
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(usersCollection).Indexes().DropAll(ctx)
				return err
			},
		},
		{
			Version:     2,
			Description: "Create emergency alert indexes",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(alertsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
					{
						Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
						Options: options.Index().SetName("status_recent"),
					},
					{
						Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
						Options: options.Index().SetName("raiser_recent"),
					},
				})
				return storeError(err, "create alert indexes")
			},
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(alertsCollection).Indexes().DropAll(ctx)
				return err
			},
		},
		{
			// Alerts written before optimistic locking have no version field.
			Version:     3,
			Description: "Backfill alert version",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(alertsCollection).UpdateMany(ctx,
					bson.M{"version": bson.M{"$exists": false}},
					bson.M{"$set": bson.M{"version": 0}},
				)
				return storeError(err, "backfill alert version")
			},
		},
	}
}
