package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NotificationRepository is an in-memory notification recorder
type NotificationRepository struct {
	mu            sync.Mutex
	notifications []*models.Notification
}

// NewNotificationRepository creates an empty in-memory recorder
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Create records a notification event
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification.ID = primitive.NewObjectID()
	notification.CreatedAt = time.Now().UTC()
	n := *notification
	r.notifications = append(r.notifications, &n)
	return nil
}

// All returns the recorded notifications
func (r *NotificationRepository) All() []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}
