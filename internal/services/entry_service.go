package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

// Compile-time check to ensure EntryServiceImpl implements EntryService
var _ EntryService = (*EntryServiceImpl)(nil)

// AwardEntriesRequest is the purchase-completion payload from the payment
// collaborator. EventType plus PaymentIntentID form the idempotency key.
type AwardEntriesRequest struct {
	EventType       string             `json:"eventType" binding:"required"`
	PaymentIntentID string             `json:"paymentIntentId" binding:"required"`
	UserID          primitive.ObjectID `json:"userId" binding:"required"`
	DrawType        models.DrawType    `json:"drawType" binding:"required"`
	Source          models.EntrySource `json:"source" binding:"required"`
	Entries         int                `json:"entries" binding:"required"`
}

// AwardEntriesResult reports what happened to the award
type AwardEntriesResult struct {
	EventID   string             `json:"eventId"`
	Duplicate bool               `json:"duplicate"`
	Unrouted  bool               `json:"unrouted"`
	DrawID    primitive.ObjectID `json:"drawId,omitempty"`
	DrawTotal int                `json:"drawTotal,omitempty"`
}

// EntryServiceImpl bridges payment-completion events into the entry ledger
type EntryServiceImpl struct {
	drawService DrawService
	eventRepo   repositories.BenefitEventRepository
}

// NewEntryService creates a new EntryServiceImpl
func NewEntryService(drawService DrawService, eventRepo repositories.BenefitEventRepository) *EntryServiceImpl {
	return &EntryServiceImpl{
		drawService: drawService,
		eventRepo:   eventRepo,
	}
}

// BenefitEventID derives the deterministic idempotency key for a payment event
func BenefitEventID(eventType, paymentIntentID string) string {
	return eventType + ":" + paymentIntentID
}

// AwardEntries records the benefit event and routes its entries to the current
// entry-target draw. Replays of the same payment event are absorbed silently;
// a paid purchase that finds no draw is parked UNROUTED for reconciliation,
// never dropped.
func (s *EntryServiceImpl) AwardEntries(ctx context.Context, req *AwardEntriesRequest, now time.Time) (*AwardEntriesResult, error) {
	if req.Entries <= 0 {
		return nil, models.ErrInvalidEntryCount
	}
	if !models.ValidEntrySource(req.Source) {
		return nil, models.ErrInvalidEntrySource
	}

	event := &models.BenefitEvent{
		ID:              BenefitEventID(req.EventType, req.PaymentIntentID),
		EventType:       req.EventType,
		PaymentIntentID: req.PaymentIntentID,
		UserID:          req.UserID,
		DrawType:        req.DrawType,
		Source:          req.Source,
		Entries:         req.Entries,
		Status:          models.BenefitEventRouted,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		if errors.Is(err, models.ErrDuplicateBenefitEvent) {
			slog.Info("Benefit event replayed, entries already credited", "eventId", event.ID)
			return &AwardEntriesResult{EventID: event.ID, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("failed to record benefit event: %w", err)
	}

	result := &AwardEntriesResult{EventID: event.ID}
	draw, err := s.route(ctx, req, now)
	if err != nil {
		if errors.Is(err, models.ErrNoAvailableDraw) {
			// Configuration gap: a paid purchase has nowhere to go. Park the
			// event for manual reconciliation and alert operators.
			slog.Error("No draw available for paid entries, event parked for reconciliation",
				"eventId", event.ID, "userId", req.UserID, "drawType", req.DrawType, "entries", req.Entries)
			if markErr := s.eventRepo.MarkUnrouted(ctx, event.ID, err.Error()); markErr != nil {
				slog.Error("Failed to mark benefit event unrouted", "error", markErr, "eventId", event.ID)
			}
			result.Unrouted = true
			return result, nil
		}
		return nil, err
	}

	if err := s.eventRepo.MarkRouted(ctx, event.ID, draw.ID); err != nil {
		slog.Error("Failed to mark benefit event routed", "error", err, "eventId", event.ID, "drawId", draw.ID)
	}
	result.DrawID = draw.ID
	result.DrawTotal = draw.TotalEntries
	return result, nil
}

// route resolves the target draw and adds the entries, retrying once if the
// target froze between resolution and the increment.
func (s *EntryServiceImpl) route(ctx context.Context, req *AwardEntriesRequest, now time.Time) (*models.Draw, error) {
	for attempt := 0; attempt < 2; attempt++ {
		target, err := s.drawService.EntryTargetDraw(ctx, req.DrawType, now)
		if err != nil {
			return nil, err
		}
		draw, err := s.drawService.AddEntries(ctx, target.ID, req.UserID, req.Source, req.Entries, now)
		if err == nil {
			return draw, nil
		}
		if !errors.Is(err, models.ErrDrawLocked) {
			return nil, err
		}
		// The draw froze or was cancelled while we were routing; resolve
		// again so the entries land on the next draw.
	}
	return nil, models.ErrNoAvailableDraw
}

// UnroutedEvents lists events awaiting manual reconciliation
func (s *EntryServiceImpl) UnroutedEvents(ctx context.Context) ([]*models.BenefitEvent, error) {
	return s.eventRepo.FindUnrouted(ctx)
}
