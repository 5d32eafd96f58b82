package models

import "errors"

// Domain errors returned by the draw engine. All of them represent
// business-state facts the caller can act on, never transient failures;
// storage errors propagate separately and unchanged.
var (
	// ErrDrawLocked is returned when entries are added to a frozen,
	// completed or cancelled draw.
	ErrDrawLocked = errors.New("draw is not accepting entries")

	// ErrConfigurationLocked is returned when an admin mutation is attempted
	// after the configuration lock has engaged.
	ErrConfigurationLocked = errors.New("draw configuration is locked")

	// ErrNoAvailableDraw is returned when no active or queued draw exists to
	// receive entries. This is a configuration gap and must alert operators.
	ErrNoAvailableDraw = errors.New("no active or queued draw available")

	// ErrWinnerAlreadySelected is returned when winner selection runs on a
	// draw that already has a winner.
	ErrWinnerAlreadySelected = errors.New("winner already selected for draw")

	// ErrNoEntries is returned when winner selection runs on a draw with an
	// empty entry pool.
	ErrNoEntries = errors.New("draw has no entries")

	// ErrInvalidEntrySource is returned for an unrecognised source tag.
	ErrInvalidEntrySource = errors.New("invalid entry source")

	// ErrInvalidEntryCount is returned for a non-positive entry count.
	ErrInvalidEntryCount = errors.New("entry count must be positive")

	// ErrDuplicateBenefitEvent is returned when a benefit event with the same
	// (paymentIntentId, eventType) pair already exists.
	ErrDuplicateBenefitEvent = errors.New("benefit event already recorded")

	// ErrDrawNotFound is returned when no draw matches the given id.
	ErrDrawNotFound = errors.New("draw not found")

	// ErrWrongDrawType is returned when a repetition policy is applied to the
	// wrong draw variant (cycling a major draw, scheduling-next on a mini).
	ErrWrongDrawType = errors.New("operation not valid for this draw type")

	// ErrDrawNotCompleted is returned when a repetition policy runs before the
	// draw has completed.
	ErrDrawNotCompleted = errors.New("draw is not completed")
)
