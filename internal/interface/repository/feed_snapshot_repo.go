package repository

import (
	"context"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoFeedSnapshotRepository implements FeedSnapshotRepository
type MongoFeedSnapshotRepository struct {
	collection *mongo.Collection
}

// NewMongoFeedSnapshotRepository creates a new feed snapshot repository
func NewMongoFeedSnapshotRepository(db *mongo.Database) repository.FeedSnapshotRepository {
	collection := db.Collection("feed_snapshots")

	// Index for replay queries by date and recency
	ctx := context.Background()
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "flightDate", Value: 1}, {Key: "fetchedAt", Value: -1}},
	}
	collection.Indexes().CreateOne(ctx, indexModel)

	// Snapshots are debugging material, not a system of record; expire them
	ttlIndex := mongo.IndexModel{
		Keys:    bson.M{"fetchedAt": 1},
		Options: options.Index().SetExpireAfterSeconds(14 * 24 * 3600),
	}
	collection.Indexes().CreateOne(ctx, ttlIndex)

	return &MongoFeedSnapshotRepository{
		collection: collection,
	}
}

// Archive stores one raw payload
func (r *MongoFeedSnapshotRepository) Archive(ctx context.Context, snapshot *entity.FeedSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = primitive.NewObjectID().Hex()
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now()
	}
	snapshot.ByteSize = len(snapshot.Body)

	_, err := r.collection.InsertOne(ctx, snapshot)
	return err
}
