package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories/memory"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	testActivation = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	testFreeze     = time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC)
	testDrawDate   = time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC)
)

type testEnv struct {
	drawRepo      *memory.DrawRepository
	winnerRepo    *memory.WinnerRepository
	notifications *memory.NotificationRepository
	service       *DrawServiceImpl
}

func newTestEnv(seed int64) *testEnv {
	env := &testEnv{
		drawRepo:      memory.NewDrawRepository(),
		winnerRepo:    memory.NewWinnerRepository(),
		notifications: memory.NewNotificationRepository(),
	}
	env.service = NewDrawService(
		env.drawRepo,
		env.winnerRepo,
		env.notifications,
		nil, // display cache off so tests can step through time freely
		rand.New(rand.NewSource(seed)),
		Defaults{GapGraceWindow: 4 * time.Hour, FreezeLead: 30 * time.Minute},
	)
	return env
}

func (e *testEnv) mustCreateDraw(t *testing.T, draw *models.Draw) *models.Draw {
	t.Helper()
	if err := e.drawRepo.Create(context.Background(), draw); err != nil {
		t.Fatalf("create draw: %v", err)
	}
	return draw
}

func majorDraw() *models.Draw {
	return &models.Draw{
		Name:            "June Major Draw",
		DrawType:        models.DrawTypeMajor,
		Status:          models.DrawStatusActive,
		ActivationDate:  testActivation,
		FreezeEntriesAt: testFreeze,
		DrawDate:        testDrawDate,
		Entries:         []models.EntryAggregate{},
	}
}

func TestAddEntriesAccumulates(t *testing.T) {
	env := newTestEnv(1)
	ctx := context.Background()
	draw := env.mustCreateDraw(t, majorDraw())
	user := primitive.NewObjectID()
	now := testActivation.Add(time.Hour)

	if _, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySourceMembership, 5, now); err != nil {
		t.Fatalf("first award: %v", err)
	}
	updated, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySourceUpsell, 3, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second award: %v", err)
	}

	if len(updated.Entries) != 1 {
		t.Fatalf("expected a single aggregate per user, got %d", len(updated.Entries))
	}
	agg := updated.AggregateFor(user)
	if agg == nil {
		t.Fatal("aggregate missing for user")
	}
	if agg.TotalEntries != 8 {
		t.Errorf("aggregate total = %d, want 8", agg.TotalEntries)
	}
	if agg.EntriesBySource.Membership != 5 || agg.EntriesBySource.Upsell != 3 {
		t.Errorf("breakdown = %+v, want 5 membership / 3 upsell", agg.EntriesBySource)
	}
	if updated.TotalEntries != 8 {
		t.Errorf("draw total = %d, want 8", updated.TotalEntries)
	}
	if !updated.EntriesConsistent() {
		t.Error("entry bookkeeping inconsistent after awards")
	}
}

func TestAddEntriesTwoUsersStayApart(t *testing.T) {
	env := newTestEnv(1)
	ctx := context.Background()
	draw := env.mustCreateDraw(t, majorDraw())
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	now := testActivation.Add(time.Hour)

	if _, err := env.service.AddEntries(ctx, draw.ID, alice, models.EntrySourceMembership, 2, now); err != nil {
		t.Fatal(err)
	}
	updated, err := env.service.AddEntries(ctx, draw.ID, bob, models.EntrySourceMembership, 4, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Entries) != 2 {
		t.Fatalf("expected two aggregates, got %d", len(updated.Entries))
	}
	if updated.TotalEntries != 6 {
		t.Errorf("draw total = %d, want 6", updated.TotalEntries)
	}
}

func TestAddEntriesLifecycleGuards(t *testing.T) {
	env := newTestEnv(1)
	ctx := context.Background()
	draw := env.mustCreateDraw(t, majorDraw())
	user := primitive.NewObjectID()

	t.Run("frozen draw rejects entries", func(t *testing.T) {
		_, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySourceMembership, 1, testFreeze.Add(time.Minute))
		if !errors.Is(err, models.ErrDrawLocked) {
			t.Errorf("got %v, want ErrDrawLocked", err)
		}
	})

	t.Run("queued draw accepts entries", func(t *testing.T) {
		if _, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySourceMembership, 1, testActivation.Add(-time.Hour)); err != nil {
			t.Errorf("queued draw should accept entries: %v", err)
		}
	})

	t.Run("non-positive count rejected", func(t *testing.T) {
		_, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySourceMembership, 0, testActivation.Add(time.Hour))
		if !errors.Is(err, models.ErrInvalidEntryCount) {
			t.Errorf("got %v, want ErrInvalidEntryCount", err)
		}
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		_, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySource("REFERRAL"), 1, testActivation.Add(time.Hour))
		if !errors.Is(err, models.ErrInvalidEntrySource) {
			t.Errorf("got %v, want ErrInvalidEntrySource", err)
		}
	})
}

func TestEntryTargetDraw(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers the active draw", func(t *testing.T) {
		env := newTestEnv(1)
		active := env.mustCreateDraw(t, majorDraw())
		later := majorDraw()
		later.Status = models.DrawStatusQueued
		later.ActivationDate = testDrawDate.Add(time.Hour)
		later.FreezeEntriesAt = time.Time{}
		later.DrawDate = testDrawDate.Add(30 * 24 * time.Hour)
		env.mustCreateDraw(t, later)

		got, err := env.service.EntryTargetDraw(ctx, models.DrawTypeMajor, testActivation.Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != active.ID {
			t.Errorf("expected the active draw, got %s", got.Name)
		}
	})

	t.Run("gap period routes to the earliest queued draw", func(t *testing.T) {
		env := newTestEnv(1)
		done := majorDraw()
		done.Status = models.DrawStatusCompleted
		env.mustCreateDraw(t, done)

		nearer := majorDraw()
		nearer.Status = models.DrawStatusQueued
		nearer.ActivationDate = testDrawDate.Add(2 * time.Hour)
		nearer.FreezeEntriesAt = time.Time{}
		nearer.DrawDate = testDrawDate.Add(30 * 24 * time.Hour)
		nearer = env.mustCreateDraw(t, nearer)

		farther := majorDraw()
		farther.Status = models.DrawStatusQueued
		farther.ActivationDate = testDrawDate.Add(48 * time.Hour)
		farther.FreezeEntriesAt = time.Time{}
		farther.DrawDate = testDrawDate.Add(60 * 24 * time.Hour)
		env.mustCreateDraw(t, farther)

		got, err := env.service.EntryTargetDraw(ctx, models.DrawTypeMajor, testDrawDate.Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != nearer.ID {
			t.Error("entries in the gap should target the earliest queued draw")
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		env := newTestEnv(1)
		_, err := env.service.EntryTargetDraw(ctx, models.DrawTypeMajor, testActivation)
		if !errors.Is(err, models.ErrNoAvailableDraw) {
			t.Errorf("got %v, want ErrNoAvailableDraw", err)
		}
	})
}

func TestDisplayDrawGapGrace(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(1)

	done := majorDraw()
	done.Status = models.DrawStatusCompleted
	done = env.mustCreateDraw(t, done)

	queued := majorDraw()
	queued.Name = "July Major Draw"
	queued.Status = models.DrawStatusQueued
	queued.ActivationDate = testDrawDate.Add(6 * time.Hour)
	queued.FreezeEntriesAt = time.Time{}
	queued.DrawDate = testDrawDate.Add(30 * 24 * time.Hour)
	queued = env.mustCreateDraw(t, queued)

	t.Run("within grace the completed draw keeps the spotlight", func(t *testing.T) {
		got, err := env.service.DisplayDraw(ctx, models.DrawTypeMajor, testDrawDate.Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != done.ID {
			t.Errorf("expected completed draw during grace, got %s", got.Name)
		}
		if got.Status != models.DrawStatusCompleted {
			t.Errorf("display status = %s, want COMPLETED", got.Status)
		}
	})

	t.Run("past grace the queued draw takes over", func(t *testing.T) {
		got, err := env.service.DisplayDraw(ctx, models.DrawTypeMajor, testDrawDate.Add(5*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != queued.ID {
			t.Errorf("expected queued draw after grace, got %s", got.Name)
		}
	})

	t.Run("stale persisted status still counts as completed", func(t *testing.T) {
		// The sweep has not run yet: the draw is past its draw date but the
		// stored status still says ACTIVE.
		lagged := newTestEnv(1)
		stale := majorDraw()
		stale = lagged.mustCreateDraw(t, stale)

		got, err := lagged.service.DisplayDraw(ctx, models.DrawTypeMajor, testDrawDate.Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != stale.ID || got.Status != models.DrawStatusCompleted {
			t.Errorf("expected the lagged draw shown as COMPLETED, got %s/%s", got.Name, got.Status)
		}
	})
}

func TestSelectWinnerHappyPath(t *testing.T) {
	env := newTestEnv(7)
	ctx := context.Background()
	draw := env.mustCreateDraw(t, majorDraw())
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	now := testActivation.Add(time.Hour)

	if _, err := env.service.AddEntries(ctx, draw.ID, alice, models.EntrySourceMembership, 3, now); err != nil {
		t.Fatal(err)
	}
	if _, err := env.service.AddEntries(ctx, draw.ID, bob, models.EntrySourceOneTimePackage, 7, now); err != nil {
		t.Fatal(err)
	}

	result, err := env.service.SelectWinner(ctx, draw.ID, "admin-1", "", testDrawDate)
	if err != nil {
		t.Fatalf("select winner: %v", err)
	}
	if result.Winner == nil {
		t.Fatal("winner record missing")
	}
	if result.Winner.UserID != alice && result.Winner.UserID != bob {
		t.Error("winner is not one of the entrants")
	}
	if result.Winner.EntryNumber < 1 || result.Winner.EntryNumber > 10 {
		t.Errorf("entry number %d outside 1..10", result.Winner.EntryNumber)
	}
	if result.Winner.SelectionMethod != SelectionMethodWeighted {
		t.Errorf("method = %q, want %q", result.Winner.SelectionMethod, SelectionMethodWeighted)
	}
	if result.Status != models.DrawStatusCompleted {
		t.Errorf("status after selection = %s, want COMPLETED", result.Status)
	}

	history, err := env.winnerRepo.FindByDrawID(ctx, draw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history record, got %d", len(history))
	}
	if history[0].UserID != result.Winner.UserID || history[0].TotalEntries != 10 {
		t.Errorf("history record mismatch: %+v", history[0])
	}
	if notes := env.notifications.All(); len(notes) != 1 || notes[0].Type != models.NotificationWinnerSelected {
		t.Errorf("expected one winner notification, got %d", len(notes))
	}
}

func TestSelectWinnerExactlyOnce(t *testing.T) {
	env := newTestEnv(2)
	ctx := context.Background()
	draw := env.mustCreateDraw(t, majorDraw())
	user := primitive.NewObjectID()
	if _, err := env.service.AddEntries(ctx, draw.ID, user, models.EntrySourceMembership, 4, testActivation.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	successes := make(chan *models.Draw, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := env.service.SelectWinner(ctx, draw.ID, "admin-1", "", testDrawDate)
			if err == nil {
				successes <- result
				return
			}
			if !errors.Is(err, models.ErrWinnerAlreadySelected) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(successes)

	if got := len(successes); got != 1 {
		t.Fatalf("winner selected %d times, want exactly once", got)
	}
}

func TestSelectWinnerGuards(t *testing.T) {
	env := newTestEnv(3)
	ctx := context.Background()

	t.Run("no entries", func(t *testing.T) {
		draw := env.mustCreateDraw(t, majorDraw())
		_, err := env.service.SelectWinner(ctx, draw.ID, "admin-1", "", testDrawDate)
		if !errors.Is(err, models.ErrNoEntries) {
			t.Errorf("got %v, want ErrNoEntries", err)
		}
	})

	t.Run("cancelled draw", func(t *testing.T) {
		draw := majorDraw()
		draw.Status = models.DrawStatusCancelled
		draw = env.mustCreateDraw(t, draw)
		if _, err := env.service.AddEntries(ctx, draw.ID, primitive.NewObjectID(), models.EntrySourceMembership, 1, testActivation.Add(time.Hour)); err == nil {
			t.Fatal("cancelled draw should not accept entries")
		}
		_, err := env.service.SelectWinner(ctx, draw.ID, "admin-1", "", testDrawDate)
		if err == nil {
			t.Error("cancelled draw should not select a winner")
		}
	})
}

func TestSelectWinnerWeighting(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	ctx := context.Background()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()

	const rounds = 2000
	env := newTestEnv(42)
	bobWins := 0
	for i := 0; i < rounds; i++ {
		draw := env.mustCreateDraw(t, majorDraw())
		if _, err := env.service.AddEntries(ctx, draw.ID, alice, models.EntrySourceMembership, 10, testActivation.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
		if _, err := env.service.AddEntries(ctx, draw.ID, bob, models.EntrySourceMembership, 90, testActivation.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
		result, err := env.service.SelectWinner(ctx, draw.ID, "admin-1", "", testDrawDate)
		if err != nil {
			t.Fatal(err)
		}
		if result.Winner.UserID == bob {
			bobWins++
		}
	}

	share := float64(bobWins) / rounds
	if share < 0.85 || share > 0.95 {
		t.Errorf("user with 90%% of entries won %.1f%% of rounds, expected about 90%%", share*100)
	}
}

func TestUpdateDrawRespectsLock(t *testing.T) {
	env := newTestEnv(1)
	ctx := context.Background()
	now := testActivation.Add(time.Hour)
	name := "Renamed Draw"

	t.Run("editable while unlocked", func(t *testing.T) {
		draw := env.mustCreateDraw(t, majorDraw())
		updated, err := env.service.UpdateDraw(ctx, draw.ID, &models.DrawPatch{Name: &name}, now)
		if err != nil {
			t.Fatal(err)
		}
		if updated.Name != name {
			t.Errorf("name = %q, want %q", updated.Name, name)
		}
	})

	t.Run("explicit lock blocks edits", func(t *testing.T) {
		draw := env.mustCreateDraw(t, majorDraw())
		if err := env.service.LockDraw(ctx, draw.ID, now); err != nil {
			t.Fatal(err)
		}
		_, err := env.service.UpdateDraw(ctx, draw.ID, &models.DrawPatch{Name: &name}, now)
		if !errors.Is(err, models.ErrConfigurationLocked) {
			t.Errorf("got %v, want ErrConfigurationLocked", err)
		}
	})

	t.Run("freeze implies the lock", func(t *testing.T) {
		draw := env.mustCreateDraw(t, majorDraw())
		_, err := env.service.UpdateDraw(ctx, draw.ID, &models.DrawPatch{Name: &name}, testFreeze.Add(time.Minute))
		if !errors.Is(err, models.ErrConfigurationLocked) {
			t.Errorf("got %v, want ErrConfigurationLocked", err)
		}
	})
}

func TestCancelDraw(t *testing.T) {
	env := newTestEnv(1)
	ctx := context.Background()

	t.Run("active draw cancels", func(t *testing.T) {
		draw := env.mustCreateDraw(t, majorDraw())
		if err := env.service.CancelDraw(ctx, draw.ID, testActivation.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
		got, err := env.service.GetDraw(ctx, draw.ID, testActivation.Add(2*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.DrawStatusCancelled {
			t.Errorf("status = %s, want CANCELLED", got.Status)
		}
	})

	t.Run("completed draw cannot be cancelled", func(t *testing.T) {
		draw := env.mustCreateDraw(t, majorDraw())
		err := env.service.CancelDraw(ctx, draw.ID, testDrawDate.Add(time.Hour))
		if !errors.Is(err, models.ErrConfigurationLocked) {
			t.Errorf("got %v, want ErrConfigurationLocked", err)
		}
	})
}

func TestCycleMiniDraw(t *testing.T) {
	env := newTestEnv(5)
	ctx := context.Background()

	mini := majorDraw()
	mini.Name = "Weekly Mini Draw"
	mini.DrawType = models.DrawTypeMini
	mini.Cycle = 1
	mini.Status = models.DrawStatusCompleted
	mini.Winner = &models.WinnerRecord{UserID: primitive.NewObjectID(), EntryNumber: 1}
	mini.Entries = []models.EntryAggregate{{UserID: primitive.NewObjectID(), TotalEntries: 3, EntriesBySource: models.EntryBreakdown{Membership: 3}}}
	mini.TotalEntries = 3
	mini = env.mustCreateDraw(t, mini)

	schedule := models.DrawSchedule{
		ActivationDate: testDrawDate.Add(24 * time.Hour),
		DrawDate:       testDrawDate.Add(8 * 24 * time.Hour),
	}
	now := testDrawDate.Add(time.Hour)

	cycled, err := env.service.CycleMiniDraw(ctx, mini.ID, schedule, now)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if cycled.ID != mini.ID {
		t.Error("mini draw must cycle in place, not spawn a new document")
	}
	if cycled.Cycle != 2 {
		t.Errorf("cycle = %d, want 2", cycled.Cycle)
	}
	if len(cycled.Entries) != 0 || cycled.TotalEntries != 0 {
		t.Error("entries must reset on cycle")
	}
	if cycled.Winner != nil {
		t.Error("winner must clear on cycle")
	}
	if cycled.ConfigurationLocked {
		t.Error("configuration lock must release on cycle")
	}
	if !cycled.ActivationDate.Equal(schedule.ActivationDate) || !cycled.DrawDate.Equal(schedule.DrawDate) {
		t.Error("schedule not applied")
	}

	t.Run("major draws never cycle", func(t *testing.T) {
		major := majorDraw()
		major.Status = models.DrawStatusCompleted
		major = env.mustCreateDraw(t, major)
		_, err := env.service.CycleMiniDraw(ctx, major.ID, schedule, now)
		if !errors.Is(err, models.ErrWrongDrawType) {
			t.Errorf("got %v, want ErrWrongDrawType", err)
		}
	})

	t.Run("incomplete mini draws do not cycle", func(t *testing.T) {
		running := majorDraw()
		running.DrawType = models.DrawTypeMini
		running = env.mustCreateDraw(t, running)
		_, err := env.service.CycleMiniDraw(ctx, running.ID, schedule, now)
		if !errors.Is(err, models.ErrDrawNotCompleted) {
			t.Errorf("got %v, want ErrDrawNotCompleted", err)
		}
	})
}

func TestScheduleNextMajorDraw(t *testing.T) {
	env := newTestEnv(5)
	ctx := context.Background()

	done := majorDraw()
	done.Status = models.DrawStatusCompleted
	done = env.mustCreateDraw(t, done)

	next := &models.Draw{
		Name:           "July Major Draw",
		ActivationDate: testDrawDate.Add(6 * time.Hour),
		DrawDate:       testDrawDate.Add(30 * 24 * time.Hour),
	}
	created, err := env.service.ScheduleNextMajorDraw(ctx, done.ID, next, testDrawDate.Add(time.Hour))
	if err != nil {
		t.Fatalf("schedule next: %v", err)
	}
	if created.ID == done.ID {
		t.Error("next major draw must be a fresh document")
	}
	if created.DrawType != models.DrawTypeMajor {
		t.Errorf("type = %s, want MAJOR", created.DrawType)
	}
	if created.TotalEntries != 0 || created.Winner != nil {
		t.Error("new draw must start empty")
	}

	t.Run("running draw cannot schedule its successor", func(t *testing.T) {
		running := env.mustCreateDraw(t, majorDraw())
		_, err := env.service.ScheduleNextMajorDraw(ctx, running.ID, &models.Draw{
			Name:           "August Major Draw",
			ActivationDate: testDrawDate.Add(40 * 24 * time.Hour),
			DrawDate:       testDrawDate.Add(70 * 24 * time.Hour),
		}, testActivation.Add(time.Hour))
		if !errors.Is(err, models.ErrDrawNotCompleted) {
			t.Errorf("got %v, want ErrDrawNotCompleted", err)
		}
	})
}
