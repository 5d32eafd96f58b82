package mongodb

import (
	"context"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.BenefitEventRepository = (*BenefitEventRepository)(nil)

// BenefitEventRepository implements the idempotency ledger on MongoDB
type BenefitEventRepository struct {
	collection *mongo.Collection
}

// NewBenefitEventRepository creates a new BenefitEventRepository
func NewBenefitEventRepository(db *mongo.Database) *BenefitEventRepository {
	return &BenefitEventRepository{
		collection: db.Collection("benefit_events"),
	}
}

// EnsureIndexes creates the uniqueness constraint backing award idempotency
func (r *BenefitEventRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "paymentIntentId", Value: 1},
			{Key: "eventType", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Create inserts the event, mapping the unique-index violation to the domain error
func (r *BenefitEventRepository) Create(ctx context.Context, event *models.BenefitEvent) error {
	event.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrDuplicateBenefitEvent
		}
		return err
	}
	return nil
}

// MarkUnrouted flags an event whose entries found no draw to receive them
func (r *BenefitEventRepository) MarkUnrouted(ctx context.Context, id string, reason string) error {
	update := bson.M{"$set": bson.M{
		"status":        models.BenefitEventUnrouted,
		"failureReason": reason,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// MarkRouted records the draw that finally received the event's entries
func (r *BenefitEventRepository) MarkRouted(ctx context.Context, id string, drawID primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{
		"status": models.BenefitEventRouted,
		"drawId": drawID,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// FindUnrouted lists events awaiting manual reconciliation
func (r *BenefitEventRepository) FindUnrouted(ctx context.Context) ([]*models.BenefitEvent, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"status": models.BenefitEventUnrouted}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*models.BenefitEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.BenefitEvent{}
	}
	return events, nil
}
