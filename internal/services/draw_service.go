package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/cache"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slog"
)

// SelectionMethodWeighted is the default winner selection method label
const SelectionMethodWeighted = "WEIGHTED_RANDOM"

// Compile-time check to ensure DrawServiceImpl implements DrawService
var _ DrawService = (*DrawServiceImpl)(nil)

// Defaults carries the draw-engine timing defaults; individual draws can
// override both fields.
type Defaults struct {
	GapGraceWindow time.Duration
	FreezeLead     time.Duration
}

// DrawServiceImpl handles the draw lifecycle, entry ledger, selector and
// winner selection
type DrawServiceImpl struct {
	drawRepo         repositories.DrawRepository
	winnerRepo       repositories.WinnerRepository
	notificationRepo repositories.NotificationRepository
	displayCache     *cache.Cache
	defaults         Defaults

	// rngMu guards rng; math/rand sources are not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewDrawService creates a new DrawServiceImpl. The random source is injected
// so winner selection is reproducible for audit given the same entry
// population and draw. displayCache may be nil to disable display caching.
func NewDrawService(
	drawRepo repositories.DrawRepository,
	winnerRepo repositories.WinnerRepository,
	notificationRepo repositories.NotificationRepository,
	displayCache *cache.Cache,
	rng *rand.Rand,
	defaults Defaults,
) *DrawServiceImpl {
	return &DrawServiceImpl{
		drawRepo:         drawRepo,
		winnerRepo:       winnerRepo,
		notificationRepo: notificationRepo,
		displayCache:     displayCache,
		defaults:         defaults,
		rng:              rng,
	}
}

// CreateDraw validates and persists a new draw
func (s *DrawServiceImpl) CreateDraw(ctx context.Context, draw *models.Draw) (*models.Draw, error) {
	if draw.DrawType != models.DrawTypeMajor && draw.DrawType != models.DrawTypeMini {
		return nil, models.ErrWrongDrawType
	}
	if draw.ActivationDate.IsZero() || draw.DrawDate.IsZero() {
		return nil, errors.New("activation date and draw date are required")
	}
	if !draw.DrawDate.After(draw.ActivationDate) {
		return nil, errors.New("draw date must be after activation date")
	}
	if !draw.FreezeEntriesAt.IsZero() {
		if draw.FreezeEntriesAt.After(draw.DrawDate) || !draw.FreezeEntriesAt.After(draw.ActivationDate) {
			return nil, errors.New("freeze time must fall between activation and draw date")
		}
	}

	now := time.Now().UTC()
	draw.Status = draw.EffectiveStatus(now)
	draw.IsActive = draw.Status == models.DrawStatusActive
	draw.Entries = []models.EntryAggregate{}
	draw.TotalEntries = 0
	draw.Winner = nil
	draw.ConfigurationLocked = false
	if draw.DrawType == models.DrawTypeMini && draw.Cycle == 0 {
		draw.Cycle = 1
	}

	if err := s.drawRepo.Create(ctx, draw); err != nil {
		slog.Error("Failed to create draw", "error", err, "name", draw.Name)
		return nil, fmt.Errorf("failed to create draw: %w", err)
	}
	slog.Info("Draw created", "drawId", draw.ID, "type", draw.DrawType, "status", draw.Status, "drawDate", draw.DrawDate)
	return draw, nil
}

// GetDraw retrieves a draw with its effective status applied. Read paths never
// persist the recomputed status; that is the sweep's job.
func (s *DrawServiceImpl) GetDraw(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Draw, error) {
	draw, err := s.drawRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyEffectiveStatus(draw, now)
	return draw, nil
}

// ListDraws retrieves draws, optionally filtered by persisted status
func (s *DrawServiceImpl) ListDraws(ctx context.Context, statuses []models.DrawStatus) ([]*models.Draw, error) {
	if len(statuses) == 0 {
		return s.drawRepo.FindAll(ctx)
	}
	return s.drawRepo.FindByStatuses(ctx, statuses)
}

// EntryTargetDraw returns the draw new entries should count toward. During the
// gap period between one draw completing and the next activating, entries
// accrue to the earliest queued draw no matter how far in the future it
// activates.
func (s *DrawServiceImpl) EntryTargetDraw(ctx context.Context, drawType models.DrawType, now time.Time) (*models.Draw, error) {
	candidates, err := s.drawRepo.FindActiveOrQueued(ctx, drawType)
	if err != nil {
		return nil, fmt.Errorf("failed to load draw candidates: %w", err)
	}

	var earliestQueued *models.Draw
	for _, d := range candidates {
		switch d.EffectiveStatus(now) {
		case models.DrawStatusActive:
			applyEffectiveStatus(d, now)
			return d, nil
		case models.DrawStatusQueued:
			if earliestQueued == nil || d.ActivationDate.Before(earliestQueued.ActivationDate) {
				earliestQueued = d
			}
		}
	}
	if earliestQueued != nil {
		applyEffectiveStatus(earliestQueued, now)
		return earliestQueued, nil
	}
	return nil, models.ErrNoAvailableDraw
}

// DisplayDraw returns the draw the UI should show. A just-completed draw keeps
// the spotlight through its gap grace window so users see "entries closed,
// winner pending" instead of an abrupt jump to a future draw.
func (s *DrawServiceImpl) DisplayDraw(ctx context.Context, drawType models.DrawType, now time.Time) (*models.Draw, error) {
	cacheKey := "display:" + string(drawType)
	if s.displayCache != nil {
		if cached, ok := s.displayCache.Get(cacheKey); ok {
			return cached.(*models.Draw), nil
		}
	}

	draw, err := s.resolveDisplayDraw(ctx, drawType, now)
	if err != nil {
		return nil, err
	}
	if s.displayCache != nil {
		s.displayCache.Set(cacheKey, draw)
	}
	return draw, nil
}

func (s *DrawServiceImpl) resolveDisplayDraw(ctx context.Context, drawType models.DrawType, now time.Time) (*models.Draw, error) {
	candidates, err := s.drawRepo.FindActiveOrQueued(ctx, drawType)
	if err != nil {
		return nil, fmt.Errorf("failed to load draw candidates: %w", err)
	}

	var earliestQueued, gapCompleted *models.Draw
	for _, d := range candidates {
		switch d.EffectiveStatus(now) {
		case models.DrawStatusActive, models.DrawStatusFrozen:
			applyEffectiveStatus(d, now)
			return d, nil
		case models.DrawStatusQueued:
			if earliestQueued == nil || d.ActivationDate.Before(earliestQueued.ActivationDate) {
				earliestQueued = d
			}
		case models.DrawStatusCompleted:
			// Persisted status lagged; the draw crossed its draw date since
			// the last sweep. It still counts for the gap grace display.
			if d.InGapGrace(now, s.defaults.GapGraceWindow) {
				gapCompleted = pickLaterDrawDate(gapCompleted, d)
			}
		}
	}

	if completed, err := s.drawRepo.FindLatestCompleted(ctx, drawType); err == nil {
		if completed.InGapGrace(now, s.defaults.GapGraceWindow) {
			gapCompleted = pickLaterDrawDate(gapCompleted, completed)
		}
	} else if !errors.Is(err, models.ErrDrawNotFound) {
		return nil, fmt.Errorf("failed to load latest completed draw: %w", err)
	}

	if gapCompleted != nil {
		applyEffectiveStatus(gapCompleted, now)
		return gapCompleted, nil
	}
	if earliestQueued != nil {
		applyEffectiveStatus(earliestQueued, now)
		return earliestQueued, nil
	}
	return nil, models.ErrNoAvailableDraw
}

// AddEntries accumulates entries for a user on a draw. The mutation itself is
// a single atomic find-or-create-and-increment at the storage layer, so
// concurrent awards for the same (draw, user) pair both land.
func (s *DrawServiceImpl) AddEntries(ctx context.Context, drawID primitive.ObjectID, userID primitive.ObjectID, source models.EntrySource, count int, now time.Time) (*models.Draw, error) {
	if count <= 0 {
		return nil, models.ErrInvalidEntryCount
	}
	if !models.ValidEntrySource(source) {
		return nil, models.ErrInvalidEntrySource
	}

	draw, err := s.drawRepo.FindByID(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if !draw.EntriesOpen(now) {
		return nil, models.ErrDrawLocked
	}

	updated, err := s.drawRepo.IncrementEntries(ctx, drawID, userID, source, count, now)
	if err != nil {
		slog.Error("Failed to increment entries", "error", err, "drawId", drawID, "userId", userID, "source", source)
		return nil, fmt.Errorf("failed to increment entries: %w", err)
	}
	slog.Info("Entries added", "drawId", drawID, "userId", userID, "source", source, "count", count, "drawTotal", updated.TotalEntries)
	return updated, nil
}

// SelectWinner draws one ticket uniformly from the virtual ticket population
// (size = total entries) and maps it back to the owning user by walking the
// aggregates in insertion order. Selection probability is therefore exactly
// proportional to entry count. The write is a compare-and-set on the winner
// being absent, so concurrent selections cannot both succeed.
func (s *DrawServiceImpl) SelectWinner(ctx context.Context, drawID primitive.ObjectID, selectedBy string, method string, now time.Time) (*models.Draw, error) {
	draw, err := s.drawRepo.FindByID(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if draw.Winner != nil {
		return nil, models.ErrWinnerAlreadySelected
	}
	if draw.Status == models.DrawStatusCancelled {
		return nil, models.ErrDrawLocked
	}
	if len(draw.Entries) == 0 || draw.TotalEntries <= 0 {
		return nil, models.ErrNoEntries
	}

	population := draw.TotalEntries
	if !draw.EntriesConsistent() {
		// The cached total drifted from the aggregates; trust the aggregates.
		population = 0
		for _, agg := range draw.Entries {
			population += agg.TotalEntries
		}
		slog.Warn("Cached entry total inconsistent with aggregates", "drawId", drawID, "cached", draw.TotalEntries, "actual", population)
		if population <= 0 {
			return nil, models.ErrNoEntries
		}
	}

	ticket := s.randIntn(population)
	var winnerUserID primitive.ObjectID
	cursor := 0
	for _, agg := range draw.Entries {
		cursor += agg.TotalEntries
		if ticket < cursor {
			winnerUserID = agg.UserID
			break
		}
	}

	if method == "" {
		method = SelectionMethodWeighted
	}
	record := &models.WinnerRecord{
		UserID:          winnerUserID,
		EntryNumber:     ticket + 1, // 1-indexed ordinal within the ticket sequence
		SelectedDate:    now,
		Notified:        false,
		SelectionMethod: method,
		SelectedBy:      selectedBy,
	}

	set, err := s.drawRepo.SetWinnerIfAbsent(ctx, drawID, record)
	if err != nil {
		slog.Error("Failed to persist winner", "error", err, "drawId", drawID)
		return nil, fmt.Errorf("failed to persist winner: %w", err)
	}
	if !set {
		return nil, models.ErrWinnerAlreadySelected
	}

	slog.Info("Winner selected", "drawId", drawID, "userId", winnerUserID, "entryNumber", record.EntryNumber, "population", population, "selectedBy", selectedBy)

	// History and notification records are side effects; failures are logged
	// but do not undo the selection.
	history := &models.Winner{
		DrawID:          drawID,
		DrawType:        draw.DrawType,
		Cycle:           draw.Cycle,
		UserID:          winnerUserID,
		EntryNumber:     record.EntryNumber,
		TotalEntries:    population,
		SelectionMethod: method,
		SelectedBy:      selectedBy,
		SelectedDate:    now,
	}
	if err := s.winnerRepo.Create(ctx, history); err != nil {
		slog.Error("Failed to record winner history", "error", err, "drawId", drawID)
	}
	notification := &models.Notification{
		Type:   models.NotificationWinnerSelected,
		DrawID: drawID,
		UserID: winnerUserID,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		slog.Error("Failed to record winner notification", "error", err, "drawId", drawID)
	}

	draw.Winner = record
	draw.Status = models.DrawStatusCompleted
	draw.IsActive = false
	return draw, nil
}

// MarkWinnerNotified flips the notified flag on the winner record
func (s *DrawServiceImpl) MarkWinnerNotified(ctx context.Context, drawID primitive.ObjectID) error {
	return s.drawRepo.MarkWinnerNotified(ctx, drawID)
}

// UpdateDraw applies a configuration patch after consulting the lock
func (s *DrawServiceImpl) UpdateDraw(ctx context.Context, drawID primitive.ObjectID, patch *models.DrawPatch, now time.Time) (*models.Draw, error) {
	draw, err := s.drawRepo.FindByID(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if draw.IsLocked(now) {
		return nil, models.ErrConfigurationLocked
	}
	if patch.Empty() {
		applyEffectiveStatus(draw, now)
		return draw, nil
	}

	updated, err := s.drawRepo.UpdateFields(ctx, drawID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update draw: %w", err)
	}
	s.invalidateDisplay(updated.DrawType)
	slog.Info("Draw configuration updated", "drawId", drawID)
	applyEffectiveStatus(updated, now)
	return updated, nil
}

// LockDraw engages the one-way configuration lock
func (s *DrawServiceImpl) LockDraw(ctx context.Context, drawID primitive.ObjectID, now time.Time) error {
	if err := s.drawRepo.LockConfiguration(ctx, drawID, now); err != nil {
		return fmt.Errorf("failed to lock draw configuration: %w", err)
	}
	slog.Info("Draw configuration locked", "drawId", drawID)
	return nil
}

// CancelDraw cancels a draw unless it has already completed
func (s *DrawServiceImpl) CancelDraw(ctx context.Context, drawID primitive.ObjectID, now time.Time) error {
	draw, err := s.drawRepo.FindByID(ctx, drawID)
	if err != nil {
		return err
	}
	if draw.EffectiveStatus(now) == models.DrawStatusCompleted {
		return models.ErrConfigurationLocked
	}
	if err := s.drawRepo.UpdateStatus(ctx, drawID, models.DrawStatusCancelled, false, now); err != nil {
		return fmt.Errorf("failed to cancel draw: %w", err)
	}
	s.invalidateDisplay(draw.DrawType)
	slog.Warn("Draw cancelled", "drawId", drawID, "name", draw.Name)
	return nil
}

// CycleMiniDraw restarts a completed mini draw in place: the same document
// rolls on with an incremented cycle, cleared entries and a new schedule.
// Winner history for past cycles lives in the winners collection.
func (s *DrawServiceImpl) CycleMiniDraw(ctx context.Context, drawID primitive.ObjectID, schedule models.DrawSchedule, now time.Time) (*models.Draw, error) {
	if schedule.ActivationDate.IsZero() || schedule.DrawDate.IsZero() || !schedule.DrawDate.After(schedule.ActivationDate) {
		return nil, errors.New("invalid cycle schedule")
	}
	draw, err := s.drawRepo.ResetForCycle(ctx, drawID, schedule, now)
	if err != nil {
		return nil, err
	}
	s.invalidateDisplay(models.DrawTypeMini)
	slog.Info("Mini draw cycled", "drawId", drawID, "cycle", draw.Cycle, "nextDrawDate", schedule.DrawDate)
	return draw, nil
}

// ScheduleNextMajorDraw creates the next period's major draw as a fresh
// document; completed major draws stay immutable history.
func (s *DrawServiceImpl) ScheduleNextMajorDraw(ctx context.Context, completedID primitive.ObjectID, next *models.Draw, now time.Time) (*models.Draw, error) {
	completed, err := s.drawRepo.FindByID(ctx, completedID)
	if err != nil {
		return nil, err
	}
	if completed.DrawType != models.DrawTypeMajor {
		return nil, models.ErrWrongDrawType
	}
	if completed.EffectiveStatus(now) != models.DrawStatusCompleted {
		return nil, models.ErrDrawNotCompleted
	}

	next.DrawType = models.DrawTypeMajor
	next.Cycle = 0
	created, err := s.CreateDraw(ctx, next)
	if err != nil {
		return nil, err
	}
	s.invalidateDisplay(models.DrawTypeMajor)
	return created, nil
}

// WinnersForDraw lists winner history for a draw
func (s *DrawServiceImpl) WinnersForDraw(ctx context.Context, drawID primitive.ObjectID) ([]*models.Winner, error) {
	winners, err := s.winnerRepo.FindByDrawID(ctx, drawID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve winners: %w", err)
	}
	return winners, nil
}

func (s *DrawServiceImpl) randIntn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func (s *DrawServiceImpl) invalidateDisplay(drawType models.DrawType) {
	if s.displayCache != nil {
		s.displayCache.Delete("display:" + string(drawType))
	}
}

// applyEffectiveStatus overwrites the possibly stale persisted status on an
// in-memory copy handed to callers. Nothing is written back.
func applyEffectiveStatus(draw *models.Draw, now time.Time) {
	draw.Status = draw.EffectiveStatus(now)
	draw.IsActive = draw.Status == models.DrawStatusActive
}

// pickLaterDrawDate keeps whichever completed draw finished most recently
func pickLaterDrawDate(a, b *models.Draw) *models.Draw {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.DrawDate.After(a.DrawDate) {
		return b
	}
	return a
}
