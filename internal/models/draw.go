package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DrawStatus represents the lifecycle status of a draw
type DrawStatus string

const (
	DrawStatusQueued    DrawStatus = "QUEUED"
	DrawStatusActive    DrawStatus = "ACTIVE"
	DrawStatusFrozen    DrawStatus = "FROZEN"
	DrawStatusCompleted DrawStatus = "COMPLETED"
	DrawStatusCancelled DrawStatus = "CANCELLED"
)

// DrawType distinguishes the flagship monthly draw from the smaller recurring one.
// Major draws get a fresh document per period; mini draws cycle in place.
type DrawType string

const (
	DrawTypeMajor DrawType = "MAJOR"
	DrawTypeMini  DrawType = "MINI"
)

// EntrySource identifies the purchase channel that contributed entries
type EntrySource string

const (
	EntrySourceMembership     EntrySource = "MEMBERSHIP"
	EntrySourceOneTimePackage EntrySource = "ONE_TIME_PACKAGE"
	EntrySourceUpsell         EntrySource = "UPSELL"
	EntrySourceMiniDraw       EntrySource = "MINI_DRAW"
)

// ValidEntrySource reports whether source is one of the four known channels
func ValidEntrySource(source EntrySource) bool {
	switch source {
	case EntrySourceMembership, EntrySourceOneTimePackage, EntrySourceUpsell, EntrySourceMiniDraw:
		return true
	}
	return false
}

// EntryBreakdown is the per-channel split of a user's entries on a draw.
// The four channels are fixed so a typo in a source tag fails validation
// instead of accumulating into an unindexed field.
type EntryBreakdown struct {
	Membership     int `bson:"membership" json:"membership"`
	OneTimePackage int `bson:"oneTimePackage" json:"oneTimePackage"`
	Upsell         int `bson:"upsell" json:"upsell"`
	MiniDraw       int `bson:"miniDraw" json:"miniDraw"`
}

// Total returns the sum across all channels
func (b EntryBreakdown) Total() int {
	return b.Membership + b.OneTimePackage + b.Upsell + b.MiniDraw
}

// EntryAggregate accumulates one user's entries on one draw. At most one
// aggregate exists per (draw, user) pair; aggregates are never deleted.
type EntryAggregate struct {
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	TotalEntries    int                `bson:"totalEntries" json:"totalEntries"`
	EntriesBySource EntryBreakdown     `bson:"entriesBySource" json:"entriesBySource"`
	FirstAddedDate  time.Time          `bson:"firstAddedDate" json:"firstAddedDate"`
	LastUpdatedDate time.Time          `bson:"lastUpdatedDate" json:"lastUpdatedDate"`
}

// WinnerRecord is written exactly once per draw by winner selection.
// Only the Notified flag may change afterwards.
type WinnerRecord struct {
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	EntryNumber     int                `bson:"entryNumber" json:"entryNumber"` // 1-indexed ordinal ticket
	SelectedDate    time.Time          `bson:"selectedDate" json:"selectedDate"`
	Notified        bool               `bson:"notified" json:"notified"`
	SelectionMethod string             `bson:"selectionMethod" json:"selectionMethod"`
	SelectedBy      string             `bson:"selectedBy" json:"selectedBy"`
}

// DrawPrize describes the prize attached to a draw
type DrawPrize struct {
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description" json:"description"`
	Value       float64  `bson:"value" json:"value"`
	Images      []string `bson:"images,omitempty" json:"images,omitempty"`
	Category    string   `bson:"category,omitempty" json:"category,omitempty"`
}

// Draw represents a time-boxed prize giveaway with its own entry pool.
// All schedule instants are stored UTC.
type Draw struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	DrawType    DrawType           `bson:"drawType" json:"drawType"`
	Prize       DrawPrize          `bson:"prize" json:"prize"`

	ActivationDate  time.Time `bson:"activationDate" json:"activationDate"`
	FreezeEntriesAt time.Time `bson:"freezeEntriesAt,omitempty" json:"freezeEntriesAt,omitempty"`
	DrawDate        time.Time `bson:"drawDate" json:"drawDate"`

	Status              DrawStatus `bson:"status" json:"status"`
	IsActive            bool       `bson:"isActive" json:"isActive"` // legacy mirror of Status == ACTIVE
	ConfigurationLocked bool       `bson:"configurationLocked" json:"configurationLocked"`
	LockedAt            time.Time  `bson:"lockedAt,omitempty" json:"lockedAt,omitempty"`

	Entries      []EntryAggregate `bson:"entries" json:"entries"`
	TotalEntries int              `bson:"totalEntries" json:"totalEntries"`
	Winner       *WinnerRecord    `bson:"winner,omitempty" json:"winner,omitempty"`

	// Cycle increments each time a mini draw restarts after completion.
	// Major draws never cycle; a new document is created per period.
	Cycle int `bson:"cycle" json:"cycle"`

	// Zero values mean "use the configured default".
	GapGraceWindow time.Duration `bson:"gapGraceWindow,omitempty" json:"gapGraceWindow,omitempty"`
	FreezeLead     time.Duration `bson:"freezeLead,omitempty" json:"freezeLead,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// EffectiveStatus derives the draw's lifecycle status from its dates at read
// time. The persisted Status field can lag reality between sweep ticks, so this
// derivation is the single source of truth on every read path. Write paths
// (the activation sweep) persist the recomputed value; read paths never write.
func (d *Draw) EffectiveStatus(now time.Time) DrawStatus {
	if d.Status == DrawStatusCancelled {
		return DrawStatusCancelled
	}
	if d.Status == DrawStatusCompleted {
		return DrawStatusCompleted
	}
	if !d.DrawDate.IsZero() && !now.Before(d.DrawDate) {
		return DrawStatusCompleted
	}
	if !d.FreezeEntriesAt.IsZero() && !now.Before(d.FreezeEntriesAt) {
		return DrawStatusFrozen
	}
	if !d.ActivationDate.IsZero() && now.Before(d.ActivationDate) {
		return DrawStatusQueued
	}
	return DrawStatusActive
}

// EntriesOpen reports whether the draw can still receive entries.
// Queued draws accept entries so that purchases made during the gap period
// accrue to the next draw rather than being rejected.
func (d *Draw) EntriesOpen(now time.Time) bool {
	switch d.EffectiveStatus(now) {
	case DrawStatusActive, DrawStatusQueued:
		return true
	}
	return false
}

// IsLocked reports whether administrative mutation of the draw is forbidden.
// Frozen and completed draws are locked implicitly; the persisted flag is a
// one-way latch set by the sweep or an explicit admin action. Cancelled draws
// are deliberately not locked by this rule so they can still be annotated.
func (d *Draw) IsLocked(now time.Time) bool {
	if d.ConfigurationLocked {
		return true
	}
	switch d.EffectiveStatus(now) {
	case DrawStatusFrozen, DrawStatusCompleted:
		return true
	}
	return false
}

// EffectiveFreezeTime returns the instant entries stop counting toward this
// draw: the explicit FreezeEntriesAt when set, otherwise DrawDate minus the
// freeze lead (per-draw override, else defaultLead).
func (d *Draw) EffectiveFreezeTime(defaultLead time.Duration) time.Time {
	if !d.FreezeEntriesAt.IsZero() {
		return d.FreezeEntriesAt
	}
	if d.DrawDate.IsZero() {
		return time.Time{}
	}
	lead := d.FreezeLead
	if lead <= 0 {
		lead = defaultLead
	}
	return d.DrawDate.Add(-lead)
}

// TimeUntilFreeze returns the countdown to the freeze instant, clamped at zero
func (d *Draw) TimeUntilFreeze(now time.Time, defaultLead time.Duration) time.Duration {
	freeze := d.EffectiveFreezeTime(defaultLead)
	if freeze.IsZero() || !now.Before(freeze) {
		return 0
	}
	return freeze.Sub(now)
}

// TimeUntilDraw returns the countdown to the winner-selection instant, clamped at zero
func (d *Draw) TimeUntilDraw(now time.Time) time.Duration {
	if d.DrawDate.IsZero() || !now.Before(d.DrawDate) {
		return 0
	}
	return d.DrawDate.Sub(now)
}

// InGapGrace reports whether a completed draw is still within its display
// grace window, during which the UI keeps showing it ("draw ended, winner
// announcement pending") instead of flashing to the next queued draw.
func (d *Draw) InGapGrace(now time.Time, defaultGrace time.Duration) bool {
	if d.EffectiveStatus(now) != DrawStatusCompleted || d.DrawDate.IsZero() {
		return false
	}
	grace := d.GapGraceWindow
	if grace <= 0 {
		grace = defaultGrace
	}
	return now.Before(d.DrawDate.Add(grace))
}

// EntriesConsistent verifies the cached total against the aggregates and each
// aggregate's total against its per-source breakdown.
func (d *Draw) EntriesConsistent() bool {
	sum := 0
	for _, agg := range d.Entries {
		if agg.TotalEntries != agg.EntriesBySource.Total() {
			return false
		}
		sum += agg.TotalEntries
	}
	return sum == d.TotalEntries
}

// AggregateFor returns the entry aggregate for a user, or nil
func (d *Draw) AggregateFor(userID primitive.ObjectID) *EntryAggregate {
	for i := range d.Entries {
		if d.Entries[i].UserID == userID {
			return &d.Entries[i]
		}
	}
	return nil
}
