// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. They mirror the MongoDB atomics closely enough to
// back the service tests and local demo runs without a database.
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

var _ repositories.DrawRepository = (*DrawRepository)(nil)

// DrawRepository is an in-memory repositories.DrawRepository
type DrawRepository struct {
	mu    sync.Mutex
	draws map[primitive.ObjectID]*models.Draw
}

// NewDrawRepository creates an empty in-memory draw store
func NewDrawRepository() *DrawRepository {
	return &DrawRepository{
		draws: make(map[primitive.ObjectID]*models.Draw),
	}
}

func cloneDraw(d *models.Draw) *models.Draw {
	c := *d
	c.Entries = make([]models.EntryAggregate, len(d.Entries))
	copy(c.Entries, d.Entries)
	if d.Winner != nil {
		w := *d.Winner
		c.Winner = &w
	}
	c.Prize.Images = append([]string(nil), d.Prize.Images...)
	return &c
}

// Create inserts a new draw
func (r *DrawRepository) Create(ctx context.Context, draw *models.Draw) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if draw.ID.IsZero() {
		draw.ID = primitive.NewObjectID()
	}
	draw.CreatedAt = time.Now().UTC()
	draw.UpdatedAt = draw.CreatedAt
	if draw.Entries == nil {
		draw.Entries = []models.EntryAggregate{}
	}
	r.draws[draw.ID] = cloneDraw(draw)
	return nil
}

// FindByID finds a draw by ID
func (r *DrawRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[id]
	if !ok {
		return nil, models.ErrDrawNotFound
	}
	return cloneDraw(draw), nil
}

// FindAll returns all draws sorted by draw date descending
func (r *DrawRepository) FindAll(ctx context.Context) ([]*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draws := make([]*models.Draw, 0, len(r.draws))
	for _, d := range r.draws {
		draws = append(draws, cloneDraw(d))
	}
	sort.Slice(draws, func(i, j int) bool { return draws[i].DrawDate.After(draws[j].DrawDate) })
	return draws, nil
}

// FindByStatuses returns draws whose persisted status matches
func (r *DrawRepository) FindByStatuses(ctx context.Context, statuses []models.DrawStatus) ([]*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var draws []*models.Draw
	for _, d := range r.draws {
		for _, s := range statuses {
			if d.Status == s {
				draws = append(draws, cloneDraw(d))
				break
			}
		}
	}
	sort.Slice(draws, func(i, j int) bool { return draws[i].DrawDate.Before(draws[j].DrawDate) })
	if draws == nil {
		draws = []*models.Draw{}
	}
	return draws, nil
}

// FindActiveOrQueued returns non-terminal draws of a type, earliest activation first
func (r *DrawRepository) FindActiveOrQueued(ctx context.Context, drawType models.DrawType) ([]*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var draws []*models.Draw
	for _, d := range r.draws {
		if d.DrawType != drawType {
			continue
		}
		switch d.Status {
		case models.DrawStatusQueued, models.DrawStatusActive, models.DrawStatusFrozen:
			draws = append(draws, cloneDraw(d))
		}
	}
	sort.Slice(draws, func(i, j int) bool { return draws[i].ActivationDate.Before(draws[j].ActivationDate) })
	if draws == nil {
		draws = []*models.Draw{}
	}
	return draws, nil
}

// FindLatestCompleted returns the most recently drawn completed draw of a type
func (r *DrawRepository) FindLatestCompleted(ctx context.Context, drawType models.DrawType) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *models.Draw
	for _, d := range r.draws {
		if d.DrawType != drawType || d.Status != models.DrawStatusCompleted {
			continue
		}
		if latest == nil || d.DrawDate.After(latest.DrawDate) {
			latest = d
		}
	}
	if latest == nil {
		return nil, models.ErrDrawNotFound
	}
	return cloneDraw(latest), nil
}

// IncrementEntries performs the find-or-create-and-increment under one lock,
// matching the single-document atomicity of the MongoDB implementation
func (r *DrawRepository) IncrementEntries(ctx context.Context, drawID primitive.ObjectID, userID primitive.ObjectID, source models.EntrySource, count int, now time.Time) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return nil, models.ErrDrawNotFound
	}

	var aggregate *models.EntryAggregate
	for i := range draw.Entries {
		if draw.Entries[i].UserID == userID {
			aggregate = &draw.Entries[i]
			break
		}
	}
	if aggregate == nil {
		draw.Entries = append(draw.Entries, models.EntryAggregate{
			UserID:         userID,
			FirstAddedDate: now,
		})
		aggregate = &draw.Entries[len(draw.Entries)-1]
	}

	switch source {
	case models.EntrySourceMembership:
		aggregate.EntriesBySource.Membership += count
	case models.EntrySourceOneTimePackage:
		aggregate.EntriesBySource.OneTimePackage += count
	case models.EntrySourceUpsell:
		aggregate.EntriesBySource.Upsell += count
	case models.EntrySourceMiniDraw:
		aggregate.EntriesBySource.MiniDraw += count
	default:
		return nil, models.ErrInvalidEntrySource
	}
	aggregate.TotalEntries += count
	aggregate.LastUpdatedDate = now
	draw.TotalEntries += count
	draw.UpdatedAt = now

	return cloneDraw(draw), nil
}

// SetWinnerIfAbsent writes the winner only when none exists yet
func (r *DrawRepository) SetWinnerIfAbsent(ctx context.Context, drawID primitive.ObjectID, winner *models.WinnerRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return false, models.ErrDrawNotFound
	}
	if draw.Winner != nil {
		return false, nil
	}
	w := *winner
	draw.Winner = &w
	draw.Status = models.DrawStatusCompleted
	draw.IsActive = false
	draw.UpdatedAt = time.Now().UTC()
	return true, nil
}

// MarkWinnerNotified flips the notified flag
func (r *DrawRepository) MarkWinnerNotified(ctx context.Context, drawID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok || draw.Winner == nil {
		return models.ErrDrawNotFound
	}
	draw.Winner.Notified = true
	return nil
}

// UpdateFields applies a configuration patch
func (r *DrawRepository) UpdateFields(ctx context.Context, drawID primitive.ObjectID, patch *models.DrawPatch) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return nil, models.ErrDrawNotFound
	}
	if patch.Name != nil {
		draw.Name = *patch.Name
	}
	if patch.Description != nil {
		draw.Description = *patch.Description
	}
	if patch.Prize != nil {
		draw.Prize = *patch.Prize
	}
	if patch.ActivationDate != nil {
		draw.ActivationDate = *patch.ActivationDate
	}
	if patch.FreezeEntriesAt != nil {
		draw.FreezeEntriesAt = *patch.FreezeEntriesAt
	}
	if patch.DrawDate != nil {
		draw.DrawDate = *patch.DrawDate
	}
	if patch.GapGraceWindow != nil {
		draw.GapGraceWindow = *patch.GapGraceWindow
	}
	if patch.FreezeLead != nil {
		draw.FreezeLead = *patch.FreezeLead
	}
	draw.UpdatedAt = time.Now().UTC()
	return cloneDraw(draw), nil
}

// UpdateStatus persists a recomputed lifecycle status
func (r *DrawRepository) UpdateStatus(ctx context.Context, drawID primitive.ObjectID, status models.DrawStatus, lock bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return models.ErrDrawNotFound
	}
	draw.Status = status
	draw.IsActive = status == models.DrawStatusActive
	draw.UpdatedAt = now
	if lock && !draw.ConfigurationLocked {
		draw.ConfigurationLocked = true
		draw.LockedAt = now
	}
	return nil
}

// LockConfiguration engages the one-way lock
func (r *DrawRepository) LockConfiguration(ctx context.Context, drawID primitive.ObjectID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return models.ErrDrawNotFound
	}
	if !draw.ConfigurationLocked {
		draw.ConfigurationLocked = true
		draw.LockedAt = now
		draw.UpdatedAt = now
	}
	return nil
}

// ResetForCycle restarts a completed mini draw in place
func (r *DrawRepository) ResetForCycle(ctx context.Context, drawID primitive.ObjectID, schedule models.DrawSchedule, now time.Time) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, ok := r.draws[drawID]
	if !ok {
		return nil, models.ErrDrawNotFound
	}
	if draw.DrawType != models.DrawTypeMini {
		return nil, models.ErrWrongDrawType
	}
	if draw.Status != models.DrawStatusCompleted {
		return nil, models.ErrDrawNotCompleted
	}

	draw.Cycle++
	draw.Entries = []models.EntryAggregate{}
	draw.TotalEntries = 0
	draw.Winner = nil
	draw.Status = models.DrawStatusQueued
	draw.IsActive = false
	draw.ConfigurationLocked = false
	draw.LockedAt = time.Time{}
	draw.ActivationDate = schedule.ActivationDate
	draw.FreezeEntriesAt = schedule.FreezeEntriesAt
	draw.DrawDate = schedule.DrawDate
	draw.UpdatedAt = now
	return cloneDraw(draw), nil
}
