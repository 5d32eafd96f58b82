package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories/memory"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type entryTestEnv struct {
	*testEnv
	eventRepo *memory.BenefitEventRepository
	entries   *EntryServiceImpl
}

func newEntryTestEnv() *entryTestEnv {
	base := newTestEnv(11)
	events := memory.NewBenefitEventRepository()
	return &entryTestEnv{
		testEnv:   base,
		eventRepo: events,
		entries:   NewEntryService(base.service, events),
	}
}

func awardRequest(user primitive.ObjectID) *AwardEntriesRequest {
	return &AwardEntriesRequest{
		EventType:       "membership.renewed",
		PaymentIntentID: "pi_123",
		UserID:          user,
		DrawType:        models.DrawTypeMajor,
		Source:          models.EntrySourceMembership,
		Entries:         5,
	}
}

func TestBenefitEventID(t *testing.T) {
	if got := BenefitEventID("membership.renewed", "pi_123"); got != "membership.renewed:pi_123" {
		t.Errorf("BenefitEventID = %q", got)
	}
}

func TestAwardEntriesReplaySafe(t *testing.T) {
	env := newEntryTestEnv()
	ctx := context.Background()
	env.mustCreateDraw(t, majorDraw())
	user := primitive.NewObjectID()
	now := testActivation.Add(time.Hour)

	first, err := env.entries.AwardEntries(ctx, awardRequest(user), now)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Duplicate || first.Unrouted {
		t.Fatalf("unexpected result flags: %+v", first)
	}
	if first.DrawTotal != 5 {
		t.Errorf("draw total = %d, want 5", first.DrawTotal)
	}

	// The payment provider retries the webhook.
	second, err := env.entries.AwardEntries(ctx, awardRequest(user), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("replay delivery: %v", err)
	}
	if !second.Duplicate {
		t.Error("replay should be flagged duplicate")
	}

	draw, err := env.service.GetDraw(ctx, first.DrawID, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if draw.TotalEntries != 5 {
		t.Errorf("replay credited entries twice: total = %d, want 5", draw.TotalEntries)
	}
}

func TestAwardEntriesDistinctEventsAccumulate(t *testing.T) {
	env := newEntryTestEnv()
	ctx := context.Background()
	env.mustCreateDraw(t, majorDraw())
	user := primitive.NewObjectID()
	now := testActivation.Add(time.Hour)

	if _, err := env.entries.AwardEntries(ctx, awardRequest(user), now); err != nil {
		t.Fatal(err)
	}
	req := awardRequest(user)
	req.PaymentIntentID = "pi_456"
	req.Source = models.EntrySourceUpsell
	req.Entries = 2
	result, err := env.entries.AwardEntries(ctx, req, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.DrawTotal != 7 {
		t.Errorf("draw total = %d, want 7", result.DrawTotal)
	}
}

func TestAwardEntriesParksWhenNoDraw(t *testing.T) {
	env := newEntryTestEnv()
	ctx := context.Background()
	user := primitive.NewObjectID()

	result, err := env.entries.AwardEntries(ctx, awardRequest(user), testActivation)
	if err != nil {
		t.Fatalf("award with no draw must not fail outright: %v", err)
	}
	if !result.Unrouted {
		t.Fatal("expected the event parked unrouted")
	}

	parked, err := env.entries.UnroutedEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(parked) != 1 {
		t.Fatalf("expected one unrouted event, got %d", len(parked))
	}
	if parked[0].ID != result.EventID {
		t.Errorf("parked event id = %q, want %q", parked[0].ID, result.EventID)
	}
	if parked[0].Status != models.BenefitEventUnrouted {
		t.Errorf("parked status = %s, want UNROUTED", parked[0].Status)
	}
}

func TestAwardEntriesGapRoutesToQueuedDraw(t *testing.T) {
	env := newEntryTestEnv()
	ctx := context.Background()

	done := majorDraw()
	done.Status = models.DrawStatusCompleted
	env.mustCreateDraw(t, done)

	queued := majorDraw()
	queued.Status = models.DrawStatusQueued
	queued.ActivationDate = testDrawDate.Add(6 * time.Hour)
	queued.FreezeEntriesAt = time.Time{}
	queued.DrawDate = testDrawDate.Add(30 * 24 * time.Hour)
	queued = env.mustCreateDraw(t, queued)

	result, err := env.entries.AwardEntries(ctx, awardRequest(primitive.NewObjectID()), testDrawDate.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if result.Unrouted {
		t.Fatal("gap purchase must route, not park")
	}
	if result.DrawID != queued.ID {
		t.Error("gap purchase should credit the queued draw")
	}
}

func TestAwardEntriesValidation(t *testing.T) {
	env := newEntryTestEnv()
	ctx := context.Background()
	user := primitive.NewObjectID()

	req := awardRequest(user)
	req.Entries = 0
	if _, err := env.entries.AwardEntries(ctx, req, testActivation); !errors.Is(err, models.ErrInvalidEntryCount) {
		t.Errorf("got %v, want ErrInvalidEntryCount", err)
	}

	req = awardRequest(user)
	req.Source = "CASHBACK"
	if _, err := env.entries.AwardEntries(ctx, req, testActivation); !errors.Is(err, models.ErrInvalidEntrySource) {
		t.Errorf("got %v, want ErrInvalidEntrySource", err)
	}
}

func TestSweepPersistsTransitions(t *testing.T) {
	env := newTestEnv(1)
	ctx := context.Background()
	sweep := NewSweepService(env.drawRepo)

	queued := majorDraw()
	queued.Status = models.DrawStatusQueued
	queued = env.mustCreateDraw(t, queued)

	t.Run("queued activates", func(t *testing.T) {
		transitions, err := sweep.Run(ctx, testActivation.Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if transitions != 1 {
			t.Fatalf("transitions = %d, want 1", transitions)
		}
		got, _ := env.drawRepo.FindByID(ctx, queued.ID)
		if got.Status != models.DrawStatusActive {
			t.Errorf("status = %s, want ACTIVE", got.Status)
		}
		if got.ConfigurationLocked {
			t.Error("activation must not lock configuration")
		}
	})

	t.Run("freeze locks configuration", func(t *testing.T) {
		transitions, err := sweep.Run(ctx, testFreeze.Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if transitions != 1 {
			t.Fatalf("transitions = %d, want 1", transitions)
		}
		got, _ := env.drawRepo.FindByID(ctx, queued.ID)
		if got.Status != models.DrawStatusFrozen {
			t.Errorf("status = %s, want FROZEN", got.Status)
		}
		if !got.ConfigurationLocked {
			t.Error("freezing must engage the configuration lock")
		}
	})

	t.Run("draw date completes", func(t *testing.T) {
		if _, err := sweep.Run(ctx, testDrawDate.Add(time.Minute)); err != nil {
			t.Fatal(err)
		}
		got, _ := env.drawRepo.FindByID(ctx, queued.ID)
		if got.Status != models.DrawStatusCompleted {
			t.Errorf("status = %s, want COMPLETED", got.Status)
		}
	})

	t.Run("steady state is a no-op", func(t *testing.T) {
		transitions, err := sweep.Run(ctx, testDrawDate.Add(2*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if transitions != 0 {
			t.Errorf("transitions = %d, want 0", transitions)
		}
	})
}
