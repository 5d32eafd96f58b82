package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure DrawRepository implements the interface
var _ repositories.DrawRepository = (*DrawRepository)(nil)

// DrawRepository implements repositories.DrawRepository on MongoDB
type DrawRepository struct {
	collection *mongo.Collection
}

// NewDrawRepository creates a new DrawRepository
func NewDrawRepository(db *mongo.Database) *DrawRepository {
	return &DrawRepository{
		collection: db.Collection("draws"),
	}
}

// sourceField maps an entry source to its entriesBySource bson field
func sourceField(source models.EntrySource) (string, error) {
	switch source {
	case models.EntrySourceMembership:
		return "membership", nil
	case models.EntrySourceOneTimePackage:
		return "oneTimePackage", nil
	case models.EntrySourceUpsell:
		return "upsell", nil
	case models.EntrySourceMiniDraw:
		return "miniDraw", nil
	}
	return "", models.ErrInvalidEntrySource
}

// Create inserts a new draw
func (r *DrawRepository) Create(ctx context.Context, draw *models.Draw) error {
	draw.CreatedAt = time.Now().UTC()
	draw.UpdatedAt = draw.CreatedAt
	if draw.Entries == nil {
		draw.Entries = []models.EntryAggregate{}
	}
	res, err := r.collection.InsertOne(ctx, draw)
	if err != nil {
		return err
	}
	draw.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID finds a draw by ID
func (r *DrawRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Draw, error) {
	var draw models.Draw
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&draw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrDrawNotFound
		}
		return nil, err
	}
	return &draw, nil
}

// FindAll finds all draws sorted by draw date descending
func (r *DrawRepository) FindAll(ctx context.Context) ([]*models.Draw, error) {
	opts := options.Find().SetSort(bson.M{"drawDate": -1})
	return r.findMany(ctx, bson.M{}, opts)
}

// FindByStatuses finds draws whose persisted status is one of the given set
func (r *DrawRepository) FindByStatuses(ctx context.Context, statuses []models.DrawStatus) ([]*models.Draw, error) {
	opts := options.Find().SetSort(bson.M{"drawDate": 1})
	return r.findMany(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
}

// FindActiveOrQueued finds non-terminal draws of a type, earliest activation first
func (r *DrawRepository) FindActiveOrQueued(ctx context.Context, drawType models.DrawType) ([]*models.Draw, error) {
	filter := bson.M{
		"drawType": drawType,
		"status": bson.M{"$in": []models.DrawStatus{
			models.DrawStatusQueued,
			models.DrawStatusActive,
			models.DrawStatusFrozen,
		}},
	}
	opts := options.Find().SetSort(bson.M{"activationDate": 1})
	return r.findMany(ctx, filter, opts)
}

// FindLatestCompleted finds the most recently drawn completed draw of a type
func (r *DrawRepository) FindLatestCompleted(ctx context.Context, drawType models.DrawType) (*models.Draw, error) {
	filter := bson.M{"drawType": drawType, "status": models.DrawStatusCompleted}
	opts := options.FindOne().SetSort(bson.M{"drawDate": -1})
	var draw models.Draw
	err := r.collection.FindOne(ctx, filter, opts).Decode(&draw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrDrawNotFound
		}
		return nil, err
	}
	return &draw, nil
}

// IncrementEntries atomically upserts the user's aggregate and increments its
// counters. The two-step positional-update-or-push keeps the whole mutation on
// one document so concurrent awards never lose an update: if another writer
// pushes the aggregate between our steps, the guarded push matches nothing and
// the positional update succeeds on retry.
func (r *DrawRepository) IncrementEntries(ctx context.Context, drawID primitive.ObjectID, userID primitive.ObjectID, source models.EntrySource, count int, now time.Time) (*models.Draw, error) {
	field, err := sourceField(source)
	if err != nil {
		return nil, err
	}

	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	for attempt := 0; attempt < 3; attempt++ {
		// Existing aggregate: positional increments.
		incFilter := bson.M{"_id": drawID, "entries.userId": userID}
		incUpdate := bson.M{
			"$inc": bson.M{
				"entries.$.totalEntries":             count,
				"entries.$.entriesBySource." + field: count,
				"totalEntries":                       count,
			},
			"$set": bson.M{
				"entries.$.lastUpdatedDate": now,
				"updatedAt":                 now,
			},
		}
		var draw models.Draw
		err = r.collection.FindOneAndUpdate(ctx, incFilter, incUpdate, after).Decode(&draw)
		if err == nil {
			return &draw, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}

		// No aggregate yet: guarded push of a fresh one.
		aggregate := models.EntryAggregate{
			UserID:          userID,
			TotalEntries:    count,
			FirstAddedDate:  now,
			LastUpdatedDate: now,
		}
		switch source {
		case models.EntrySourceMembership:
			aggregate.EntriesBySource.Membership = count
		case models.EntrySourceOneTimePackage:
			aggregate.EntriesBySource.OneTimePackage = count
		case models.EntrySourceUpsell:
			aggregate.EntriesBySource.Upsell = count
		case models.EntrySourceMiniDraw:
			aggregate.EntriesBySource.MiniDraw = count
		}
		pushFilter := bson.M{"_id": drawID, "entries.userId": bson.M{"$ne": userID}}
		pushUpdate := bson.M{
			"$push": bson.M{"entries": aggregate},
			"$inc":  bson.M{"totalEntries": count},
			"$set":  bson.M{"updatedAt": now},
		}
		err = r.collection.FindOneAndUpdate(ctx, pushFilter, pushUpdate, after).Decode(&draw)
		if err == nil {
			return &draw, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		// Both steps missed: either the draw is gone or a concurrent writer
		// created the aggregate after our positional attempt. Retry.
	}

	if _, findErr := r.FindByID(ctx, drawID); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("failed to increment entries for draw %s", drawID.Hex())
}

// SetWinnerIfAbsent writes the winner only when none exists yet
func (r *DrawRepository) SetWinnerIfAbsent(ctx context.Context, drawID primitive.ObjectID, winner *models.WinnerRecord) (bool, error) {
	filter := bson.M{"_id": drawID, "winner": nil}
	update := bson.M{"$set": bson.M{
		"winner":    winner,
		"status":    models.DrawStatusCompleted,
		"isActive":  false,
		"updatedAt": time.Now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		// Distinguish "already has a winner" from "no such draw".
		if _, findErr := r.FindByID(ctx, drawID); findErr != nil {
			return false, findErr
		}
		return false, nil
	}
	return true, nil
}

// MarkWinnerNotified flips the notified flag on the embedded winner record
func (r *DrawRepository) MarkWinnerNotified(ctx context.Context, drawID primitive.ObjectID) error {
	filter := bson.M{"_id": drawID, "winner": bson.M{"$ne": nil}}
	update := bson.M{"$set": bson.M{"winner.notified": true, "updatedAt": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrDrawNotFound
	}
	return nil
}

// UpdateFields applies a configuration patch
func (r *DrawRepository) UpdateFields(ctx context.Context, drawID primitive.ObjectID, patch *models.DrawPatch) (*models.Draw, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Prize != nil {
		set["prize"] = *patch.Prize
	}
	if patch.ActivationDate != nil {
		set["activationDate"] = *patch.ActivationDate
	}
	if patch.FreezeEntriesAt != nil {
		set["freezeEntriesAt"] = *patch.FreezeEntriesAt
	}
	if patch.DrawDate != nil {
		set["drawDate"] = *patch.DrawDate
	}
	if patch.GapGraceWindow != nil {
		set["gapGraceWindow"] = *patch.GapGraceWindow
	}
	if patch.FreezeLead != nil {
		set["freezeLead"] = *patch.FreezeLead
	}

	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var draw models.Draw
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": drawID}, bson.M{"$set": set}, after).Decode(&draw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrDrawNotFound
		}
		return nil, err
	}
	return &draw, nil
}

// UpdateStatus persists a recomputed lifecycle status
func (r *DrawRepository) UpdateStatus(ctx context.Context, drawID primitive.ObjectID, status models.DrawStatus, lock bool, now time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":    status,
		"isActive":  status == models.DrawStatusActive,
		"updatedAt": now,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": drawID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrDrawNotFound
	}
	if lock {
		return r.LockConfiguration(ctx, drawID, now)
	}
	return nil
}

// LockConfiguration engages the one-way lock. The filter keeps lockedAt at
// the first engagement time on repeated calls.
func (r *DrawRepository) LockConfiguration(ctx context.Context, drawID primitive.ObjectID, now time.Time) error {
	filter := bson.M{"_id": drawID, "configurationLocked": false}
	update := bson.M{"$set": bson.M{
		"configurationLocked": true,
		"lockedAt":            now,
		"updatedAt":           now,
	}}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

// ResetForCycle restarts a completed mini draw in place
func (r *DrawRepository) ResetForCycle(ctx context.Context, drawID primitive.ObjectID, schedule models.DrawSchedule, now time.Time) (*models.Draw, error) {
	filter := bson.M{
		"_id":      drawID,
		"drawType": models.DrawTypeMini,
		"status":   models.DrawStatusCompleted,
	}
	update := bson.M{
		"$inc": bson.M{"cycle": 1},
		"$set": bson.M{
			"entries":             []models.EntryAggregate{},
			"totalEntries":        0,
			"status":              models.DrawStatusQueued,
			"isActive":            false,
			"configurationLocked": false,
			"activationDate":      schedule.ActivationDate,
			"freezeEntriesAt":     schedule.FreezeEntriesAt,
			"drawDate":            schedule.DrawDate,
			"updatedAt":           now,
		},
		"$unset": bson.M{"winner": "", "lockedAt": ""},
	}
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var draw models.Draw
	err := r.collection.FindOneAndUpdate(ctx, filter, update, after).Decode(&draw)
	if err == nil {
		return &draw, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Map the miss to the precise precondition failure.
	existing, findErr := r.FindByID(ctx, drawID)
	if findErr != nil {
		return nil, findErr
	}
	if existing.DrawType != models.DrawTypeMini {
		return nil, models.ErrWrongDrawType
	}
	return nil, models.ErrDrawNotCompleted
}

func (r *DrawRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Draw, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var draws []*models.Draw
	if err := cursor.All(ctx, &draws); err != nil {
		return nil, err
	}
	if draws == nil {
		draws = []*models.Draw{}
	}
	return draws, nil
}
