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

var _ repositories.WinnerRepository = (*WinnerRepository)(nil)

// WinnerRepository stores winner history on MongoDB
type WinnerRepository struct {
	collection *mongo.Collection
}

// NewWinnerRepository creates a new WinnerRepository
func NewWinnerRepository(db *mongo.Database) *WinnerRepository {
	return &WinnerRepository{
		collection: db.Collection("winners"),
	}
}

// Create inserts a winner history record
func (r *WinnerRepository) Create(ctx context.Context, winner *models.Winner) error {
	winner.CreatedAt = time.Now().UTC()
	res, err := r.collection.InsertOne(ctx, winner)
	if err != nil {
		return err
	}
	winner.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByDrawID finds all winner records for a draw, newest first
func (r *WinnerRepository) FindByDrawID(ctx context.Context, drawID primitive.ObjectID) ([]*models.Winner, error) {
	opts := options.Find().SetSort(bson.M{"selectedDate": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"drawId": drawID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var winners []*models.Winner
	if err := cursor.All(ctx, &winners); err != nil {
		return nil, err
	}
	if winners == nil {
		winners = []*models.Winner{}
	}
	return winners, nil
}
