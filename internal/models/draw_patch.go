package models

import "time"

// DrawSchedule carries the three schedule instants for create/cycle operations
type DrawSchedule struct {
	ActivationDate  time.Time `json:"activationDate" binding:"required"`
	FreezeEntriesAt time.Time `json:"freezeEntriesAt"`
	DrawDate        time.Time `json:"drawDate" binding:"required"`
}

// DrawPatch is a partial update of a draw's configuration. Nil fields are
// left untouched. Only applied when the configuration lock permits.
type DrawPatch struct {
	Name            *string        `json:"name,omitempty"`
	Description     *string        `json:"description,omitempty"`
	Prize           *DrawPrize     `json:"prize,omitempty"`
	ActivationDate  *time.Time     `json:"activationDate,omitempty"`
	FreezeEntriesAt *time.Time     `json:"freezeEntriesAt,omitempty"`
	DrawDate        *time.Time     `json:"drawDate,omitempty"`
	GapGraceWindow  *time.Duration `json:"gapGraceWindow,omitempty"`
	FreezeLead      *time.Duration `json:"freezeLead,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p *DrawPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Prize == nil &&
		p.ActivationDate == nil && p.FreezeEntriesAt == nil && p.DrawDate == nil &&
		p.GapGraceWindow == nil && p.FreezeLead == nil
}
