package models

import (
	"testing"
	"time"
)

var (
	activation = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	freeze     = time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC)
	drawDate   = time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC)
)

func scheduledDraw() *Draw {
	return &Draw{
		DrawType:        DrawTypeMajor,
		Status:          DrawStatusQueued,
		ActivationDate:  activation,
		FreezeEntriesAt: freeze,
		DrawDate:        drawDate,
	}
}

func TestDrawEffectiveStatus(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want DrawStatus
	}{
		{"before activation", activation.Add(-time.Hour), DrawStatusQueued},
		{"at activation", activation, DrawStatusActive},
		{"mid window", activation.Add(24 * time.Hour), DrawStatusActive},
		{"just before freeze", freeze.Add(-time.Second), DrawStatusActive},
		{"at freeze", freeze, DrawStatusFrozen},
		{"between freeze and draw", freeze.Add(time.Hour), DrawStatusFrozen},
		{"at draw date", drawDate, DrawStatusCompleted},
		{"after draw date", drawDate.Add(time.Hour), DrawStatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := scheduledDraw()
			if got := d.EffectiveStatus(tt.now); got != tt.want {
				t.Errorf("EffectiveStatus(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestDrawEffectiveStatusTerminalStates(t *testing.T) {
	t.Run("cancelled overrides dates", func(t *testing.T) {
		d := scheduledDraw()
		d.Status = DrawStatusCancelled
		if got := d.EffectiveStatus(activation.Add(time.Hour)); got != DrawStatusCancelled {
			t.Errorf("expected CANCELLED, got %s", got)
		}
	})

	t.Run("persisted completed sticks before draw date", func(t *testing.T) {
		// Winner selected early by an admin; the draw must not reopen.
		d := scheduledDraw()
		d.Status = DrawStatusCompleted
		if got := d.EffectiveStatus(activation.Add(time.Hour)); got != DrawStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", got)
		}
	})

	t.Run("no explicit freeze goes straight to completed", func(t *testing.T) {
		d := scheduledDraw()
		d.FreezeEntriesAt = time.Time{}
		if got := d.EffectiveStatus(drawDate.Add(-time.Minute)); got != DrawStatusActive {
			t.Errorf("expected ACTIVE, got %s", got)
		}
		if got := d.EffectiveStatus(drawDate); got != DrawStatusCompleted {
			t.Errorf("expected COMPLETED, got %s", got)
		}
	})
}

func TestDrawEntriesOpen(t *testing.T) {
	d := scheduledDraw()
	if !d.EntriesOpen(activation.Add(-time.Hour)) {
		t.Error("queued draw should accept entries")
	}
	if !d.EntriesOpen(activation.Add(time.Hour)) {
		t.Error("active draw should accept entries")
	}
	if d.EntriesOpen(freeze.Add(time.Minute)) {
		t.Error("frozen draw must not accept entries")
	}
	if d.EntriesOpen(drawDate.Add(time.Minute)) {
		t.Error("completed draw must not accept entries")
	}
}

func TestDrawIsLocked(t *testing.T) {
	d := scheduledDraw()
	now := activation.Add(time.Hour)

	if d.IsLocked(now) {
		t.Error("active unlocked draw should be editable")
	}

	d.ConfigurationLocked = true
	if !d.IsLocked(now) {
		t.Error("explicit lock must hold while active")
	}

	d.ConfigurationLocked = false
	if !d.IsLocked(freeze.Add(time.Minute)) {
		t.Error("frozen draw is implicitly locked")
	}
	if !d.IsLocked(drawDate.Add(time.Minute)) {
		t.Error("completed draw is implicitly locked")
	}
}

func TestEffectiveFreezeTime(t *testing.T) {
	defaultLead := 30 * time.Minute

	t.Run("explicit freeze wins", func(t *testing.T) {
		d := scheduledDraw()
		if got := d.EffectiveFreezeTime(defaultLead); !got.Equal(freeze) {
			t.Errorf("got %s, want explicit %s", got, freeze)
		}
	})

	t.Run("derived from draw date with default lead", func(t *testing.T) {
		d := scheduledDraw()
		d.FreezeEntriesAt = time.Time{}
		want := drawDate.Add(-defaultLead)
		if got := d.EffectiveFreezeTime(defaultLead); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("per-draw lead override", func(t *testing.T) {
		d := scheduledDraw()
		d.FreezeEntriesAt = time.Time{}
		d.FreezeLead = 2 * time.Hour
		want := drawDate.Add(-2 * time.Hour)
		if got := d.EffectiveFreezeTime(defaultLead); !got.Equal(want) {
			t.Errorf("got %s, want %s", got, want)
		}
	})
}

func TestCountdowns(t *testing.T) {
	d := scheduledDraw()
	now := freeze.Add(-time.Hour)

	if got := d.TimeUntilFreeze(now, 30*time.Minute); got != time.Hour {
		t.Errorf("TimeUntilFreeze = %s, want 1h", got)
	}
	if got := d.TimeUntilDraw(now); got != drawDate.Sub(now) {
		t.Errorf("TimeUntilDraw = %s, want %s", got, drawDate.Sub(now))
	}

	after := drawDate.Add(time.Hour)
	if got := d.TimeUntilFreeze(after, 30*time.Minute); got != 0 {
		t.Errorf("countdown past freeze should clamp to zero, got %s", got)
	}
	if got := d.TimeUntilDraw(after); got != 0 {
		t.Errorf("countdown past draw should clamp to zero, got %s", got)
	}
}

func TestInGapGrace(t *testing.T) {
	defaultGrace := 4 * time.Hour

	d := scheduledDraw()
	if d.InGapGrace(freeze.Add(time.Minute), defaultGrace) {
		t.Error("frozen draw is not in gap grace")
	}
	if !d.InGapGrace(drawDate.Add(time.Hour), defaultGrace) {
		t.Error("draw one hour past its draw date should still be in grace")
	}
	if d.InGapGrace(drawDate.Add(5*time.Hour), defaultGrace) {
		t.Error("draw past the grace window should not be in grace")
	}

	d.GapGraceWindow = 30 * time.Minute
	if d.InGapGrace(drawDate.Add(time.Hour), defaultGrace) {
		t.Error("per-draw grace override should shorten the window")
	}
}

func TestEntriesConsistent(t *testing.T) {
	d := scheduledDraw()
	d.Entries = []EntryAggregate{
		{TotalEntries: 5, EntriesBySource: EntryBreakdown{Membership: 3, Upsell: 2}},
		{TotalEntries: 2, EntriesBySource: EntryBreakdown{OneTimePackage: 2}},
	}
	d.TotalEntries = 7
	if !d.EntriesConsistent() {
		t.Error("expected consistent entries")
	}

	d.TotalEntries = 8
	if d.EntriesConsistent() {
		t.Error("cached total drift should be detected")
	}

	d.TotalEntries = 7
	d.Entries[0].TotalEntries = 6
	if d.EntriesConsistent() {
		t.Error("aggregate/breakdown drift should be detected")
	}
}
