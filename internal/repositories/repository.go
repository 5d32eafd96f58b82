package repositories

import (
	"context"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DrawRepository defines the storage contract for draws. Every mutating
// operation is a single atomic update against one draw document; the engine
// relies on that for correctness under concurrent entry awards and winner
// selection.
type DrawRepository interface {
	Create(ctx context.Context, draw *models.Draw) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Draw, error)
	FindAll(ctx context.Context) ([]*models.Draw, error)
	FindByStatuses(ctx context.Context, statuses []models.DrawStatus) ([]*models.Draw, error)

	// FindActiveOrQueued returns non-terminal draws of the given type sorted
	// by activation date ascending.
	FindActiveOrQueued(ctx context.Context, drawType models.DrawType) ([]*models.Draw, error)

	// FindLatestCompleted returns the most recently drawn completed draw of
	// the given type, or models.ErrDrawNotFound.
	FindLatestCompleted(ctx context.Context, drawType models.DrawType) (*models.Draw, error)

	// IncrementEntries atomically finds-or-creates the user's aggregate on
	// the draw and increments its per-source and total counters together with
	// the draw's cached total. Returns the updated draw.
	IncrementEntries(ctx context.Context, drawID primitive.ObjectID, userID primitive.ObjectID, source models.EntrySource, count int, now time.Time) (*models.Draw, error)

	// SetWinnerIfAbsent writes the winner record and marks the draw completed
	// only if no winner is present. Returns false when a winner was already
	// set (compare-and-set semantics).
	SetWinnerIfAbsent(ctx context.Context, drawID primitive.ObjectID, winner *models.WinnerRecord) (bool, error)

	// MarkWinnerNotified flips the notified flag on an existing winner record.
	MarkWinnerNotified(ctx context.Context, drawID primitive.ObjectID) error

	// UpdateFields applies a configuration patch. Lock enforcement happens in
	// the service layer before this is called.
	UpdateFields(ctx context.Context, drawID primitive.ObjectID, patch *models.DrawPatch) (*models.Draw, error)

	// UpdateStatus persists a recomputed lifecycle status. lock additionally
	// engages the one-way configuration lock in the same update.
	UpdateStatus(ctx context.Context, drawID primitive.ObjectID, status models.DrawStatus, lock bool, now time.Time) error

	// LockConfiguration engages the one-way configuration lock.
	LockConfiguration(ctx context.Context, drawID primitive.ObjectID, now time.Time) error

	// ResetForCycle restarts a completed mini draw in place: cycle+1, entries
	// and winner cleared, new schedule, status queued. Fails on any other
	// draw type or status.
	ResetForCycle(ctx context.Context, drawID primitive.ObjectID, schedule models.DrawSchedule, now time.Time) (*models.Draw, error)
}

// BenefitEventRepository is the idempotency ledger for entry awards
type BenefitEventRepository interface {
	// Create inserts the event, returning models.ErrDuplicateBenefitEvent if
	// an event with the same (paymentIntentId, eventType) already exists.
	Create(ctx context.Context, event *models.BenefitEvent) error
	MarkUnrouted(ctx context.Context, id string, reason string) error
	MarkRouted(ctx context.Context, id string, drawID primitive.ObjectID) error
	FindUnrouted(ctx context.Context) ([]*models.BenefitEvent, error)
}

// WinnerRepository stores the durable winner history
type WinnerRepository interface {
	Create(ctx context.Context, winner *models.Winner) error
	FindByDrawID(ctx context.Context, drawID primitive.ObjectID) ([]*models.Winner, error)
}

// NotificationRepository records outbound notification events
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// AdminUserRepository defines the interface for admin account operations
type AdminUserRepository interface {
	Create(ctx context.Context, adminUser *models.AdminUser) error
	FindByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.AdminUser, error)
}
