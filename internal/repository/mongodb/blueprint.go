package mongodb

import (
	"context"
	"fmt"

	"github.com/Rrens/appstruct/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var listSort = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// BlueprintRepository implements domain.BlueprintRepository
type BlueprintRepository struct {
	coll *mongo.Collection
}

// NewBlueprintRepository creates a new blueprint repository
func NewBlueprintRepository(db *mongo.Database) *BlueprintRepository {
	return &BlueprintRepository{coll: db.Collection(blueprintsCollection)}
}

func (r *BlueprintRepository) Create(ctx context.Context, blueprint *domain.Blueprint) error {
	if _, err := r.coll.InsertOne(ctx, blueprint); err != nil {
		return fmt.Errorf("failed to create blueprint: %w", err)
	}
	return nil
}

// ListByUser returns every blueprint owned by userID, newest first. Equal
// timestamps fall back to the id, which is time-ordered.
func (r *BlueprintRepository) ListByUser(ctx context.Context, userID string) ([]domain.Blueprint, error) {
	opts := options.Find().SetSort(listSort)

	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}
	defer cursor.Close(ctx)

	blueprints := []domain.Blueprint{}
	if err := cursor.All(ctx, &blueprints); err != nil {
		return nil, fmt.Errorf("failed to decode blueprints: %w", err)
	}
	return blueprints, nil
}
