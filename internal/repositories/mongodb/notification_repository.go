package mongodb

import (
	"context"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NotificationRepository records outbound notification events on MongoDB
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
	}
}

// Create inserts a notification record
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	notification.CreatedAt = time.Now().UTC()
	res, err := r.collection.InsertOne(ctx, notification)
	if err != nil {
		return err
	}
	notification.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}
