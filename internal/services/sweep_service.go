package services

import (
	"context"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"golang.org/x/exp/slog"
)

// SweepService opportunistically persists recomputed draw statuses. Reads
// derive the effective status themselves, so a missed sweep tick only delays
// the persisted field catching up; nothing corrupts.
type SweepService struct {
	drawRepo repositories.DrawRepository
}

// NewSweepService creates a new SweepService
func NewSweepService(drawRepo repositories.DrawRepository) *SweepService {
	return &SweepService{drawRepo: drawRepo}
}

// Run scans non-terminal draws and persists any status transitions that real
// time has already made. Crossing into FROZEN (or further) also engages the
// one-way configuration lock.
func (s *SweepService) Run(ctx context.Context, now time.Time) (int, error) {
	draws, err := s.drawRepo.FindByStatuses(ctx, []models.DrawStatus{
		models.DrawStatusQueued,
		models.DrawStatusActive,
		models.DrawStatusFrozen,
	})
	if err != nil {
		slog.Error("Sweep failed to load draws", "error", err)
		return 0, err
	}

	transitions := 0
	for _, draw := range draws {
		effective := draw.EffectiveStatus(now)
		lock := !draw.ConfigurationLocked &&
			(effective == models.DrawStatusFrozen || effective == models.DrawStatusCompleted)
		if effective == draw.Status && !lock {
			continue
		}
		if err := s.drawRepo.UpdateStatus(ctx, draw.ID, effective, lock, now); err != nil {
			slog.Error("Sweep failed to persist status", "error", err, "drawId", draw.ID, "from", draw.Status, "to", effective)
			continue
		}
		transitions++
		slog.Info("Draw status persisted", "drawId", draw.ID, "from", draw.Status, "to", effective, "locked", lock)
	}
	return transitions, nil
}
