package services

import (
	"context"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DrawService defines the draw lifecycle and entry-accounting operations
type DrawService interface {
	// CreateDraw validates and persists a new draw
	CreateDraw(ctx context.Context, draw *models.Draw) (*models.Draw, error)

	// GetDraw retrieves a draw by id, with its effective status applied
	GetDraw(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Draw, error)

	// ListDraws retrieves draws, optionally filtered by persisted status
	ListDraws(ctx context.Context, statuses []models.DrawStatus) ([]*models.Draw, error)

	// EntryTargetDraw answers "which draw should new entries count toward,
	// right now?" for a draw type
	EntryTargetDraw(ctx context.Context, drawType models.DrawType, now time.Time) (*models.Draw, error)

	// DisplayDraw answers "which draw should the UI show, right now?" for a
	// draw type; this can differ from the entry target during the gap period
	DisplayDraw(ctx context.Context, drawType models.DrawType, now time.Time) (*models.Draw, error)

	// AddEntries idempotency is the caller's responsibility via the benefit
	// event ledger; the ledger itself only guards lifecycle preconditions
	AddEntries(ctx context.Context, drawID primitive.ObjectID, userID primitive.ObjectID, source models.EntrySource, count int, now time.Time) (*models.Draw, error)

	// SelectWinner picks one winner weighted by entry count, exactly once
	SelectWinner(ctx context.Context, drawID primitive.ObjectID, selectedBy string, method string, now time.Time) (*models.Draw, error)

	// MarkWinnerNotified flips the notified flag on the winner record
	MarkWinnerNotified(ctx context.Context, drawID primitive.ObjectID) error

	// UpdateDraw applies a configuration patch if the lock permits
	UpdateDraw(ctx context.Context, drawID primitive.ObjectID, patch *models.DrawPatch, now time.Time) (*models.Draw, error)

	// LockDraw engages the one-way configuration lock
	LockDraw(ctx context.Context, drawID primitive.ObjectID, now time.Time) error

	// CancelDraw cancels a draw that has not completed
	CancelDraw(ctx context.Context, drawID primitive.ObjectID, now time.Time) error

	// CycleMiniDraw restarts a completed mini draw in place
	CycleMiniDraw(ctx context.Context, drawID primitive.ObjectID, schedule models.DrawSchedule, now time.Time) (*models.Draw, error)

	// ScheduleNextMajorDraw creates the next period's major draw document
	ScheduleNextMajorDraw(ctx context.Context, completedID primitive.ObjectID, next *models.Draw, now time.Time) (*models.Draw, error)

	// WinnersForDraw lists winner history for a draw
	WinnersForDraw(ctx context.Context, drawID primitive.ObjectID) ([]*models.Winner, error)
}

// EntryService defines the purchase-completion entry award flow
type EntryService interface {
	AwardEntries(ctx context.Context, req *AwardEntriesRequest, now time.Time) (*AwardEntriesResult, error)
	UnroutedEvents(ctx context.Context) ([]*models.BenefitEvent, error)
}

// AuthService defines admin authentication operations
type AuthService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
}
