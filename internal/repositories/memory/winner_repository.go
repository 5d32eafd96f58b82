package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.WinnerRepository = (*WinnerRepository)(nil)

// WinnerRepository is an in-memory winner history store
type WinnerRepository struct {
	mu      sync.Mutex
	winners []*models.Winner
}

// NewWinnerRepository creates an empty in-memory winner store
func NewWinnerRepository() *WinnerRepository {
	return &WinnerRepository{}
}

// Create inserts a winner history record
func (r *WinnerRepository) Create(ctx context.Context, winner *models.Winner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	winner.ID = primitive.NewObjectID()
	winner.CreatedAt = time.Now().UTC()
	w := *winner
	r.winners = append(r.winners, &w)
	return nil
}

// FindByDrawID finds all winner records for a draw
func (r *WinnerRepository) FindByDrawID(ctx context.Context, drawID primitive.ObjectID) ([]*models.Winner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	winners := []*models.Winner{}
	for _, w := range r.winners {
		if w.DrawID == drawID {
			c := *w
			winners = append(winners, &c)
		}
	}
	return winners, nil
}
