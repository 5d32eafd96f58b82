package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.BenefitEventRepository = (*BenefitEventRepository)(nil)

// BenefitEventRepository is an in-memory idempotency ledger
type BenefitEventRepository struct {
	mu     sync.Mutex
	events map[string]*models.BenefitEvent
	// seen enforces the (paymentIntentId, eventType) uniqueness constraint
	seen map[string]bool
}

// NewBenefitEventRepository creates an empty in-memory ledger
func NewBenefitEventRepository() *BenefitEventRepository {
	return &BenefitEventRepository{
		events: make(map[string]*models.BenefitEvent),
		seen:   make(map[string]bool),
	}
}

func dedupeKey(event *models.BenefitEvent) string {
	return event.PaymentIntentID + "|" + event.EventType
}

// Create inserts the event or reports a duplicate
func (r *BenefitEventRepository) Create(ctx context.Context, event *models.BenefitEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dedupeKey(event)
	if r.seen[key] {
		return models.ErrDuplicateBenefitEvent
	}
	event.CreatedAt = time.Now().UTC()
	e := *event
	r.events[event.ID] = &e
	r.seen[key] = true
	return nil
}

// MarkUnrouted flags an event for manual reconciliation
func (r *BenefitEventRepository) MarkUnrouted(ctx context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.events[id]; ok {
		e.Status = models.BenefitEventUnrouted
		e.FailureReason = reason
	}
	return nil
}

// MarkRouted records the draw that received the event's entries
func (r *BenefitEventRepository) MarkRouted(ctx context.Context, id string, drawID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.events[id]; ok {
		e.Status = models.BenefitEventRouted
		e.DrawID = drawID
	}
	return nil
}

// FindUnrouted lists events awaiting manual reconciliation
func (r *BenefitEventRepository) FindUnrouted(ctx context.Context) ([]*models.BenefitEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := []*models.BenefitEvent{}
	for _, e := range r.events {
		if e.Status == models.BenefitEventUnrouted {
			c := *e
			events = append(events, &c)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}
