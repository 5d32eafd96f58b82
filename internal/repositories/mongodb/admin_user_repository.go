package mongodb

import (
	"context"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var _ repositories.AdminUserRepository = (*AdminUserRepository)(nil)

// AdminUserRepository handles MongoDB operations for admin accounts
type AdminUserRepository struct {
	collection *mongo.Collection
}

// NewAdminUserRepository creates a new AdminUserRepository
func NewAdminUserRepository(db *mongo.Database) *AdminUserRepository {
	return &AdminUserRepository{
		collection: db.Collection("admin_users"),
	}
}

// Create inserts a new admin user
func (r *AdminUserRepository) Create(ctx context.Context, adminUser *models.AdminUser) error {
	adminUser.ID = primitive.NewObjectID()
	adminUser.CreatedAt = time.Now().UTC()
	adminUser.UpdatedAt = adminUser.CreatedAt
	_, err := r.collection.InsertOne(ctx, adminUser)
	return err
}

// FindByEmail finds an admin user by email
func (r *AdminUserRepository) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var adminUser models.AdminUser
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&adminUser)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &adminUser, nil
}

// FindByID finds an admin user by ID
func (r *AdminUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.AdminUser, error) {
	var adminUser models.AdminUser
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&adminUser)
	if err != nil {
		return nil, err // Includes mongo.ErrNoDocuments
	}
	return &adminUser, nil
}
