package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestIsValidCampaignTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{CampaignStatusDraft, CampaignStatusActive, true},
		{CampaignStatusDraft, CampaignStatusCancelled, true},
		{CampaignStatusActive, CampaignStatusPaused, true},
		{CampaignStatusActive, CampaignStatusCompleted, true},
		{CampaignStatusPaused, CampaignStatusActive, true},
		{CampaignStatusPaused, CampaignStatusCancelled, true},

		{CampaignStatusDraft, CampaignStatusPaused, false},
		{CampaignStatusDraft, CampaignStatusCompleted, false},
		{CampaignStatusActive, CampaignStatusDraft, false},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCancelled, CampaignStatusDraft, false},
		{"archived", CampaignStatusActive, false},
		{CampaignStatusDraft, "archived", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := IsValidCampaignTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidCampaignTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestAllCampaignStatusesHaveTransitionEntry(t *testing.T) {
	all := []string{
		CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused,
		CampaignStatusCompleted, CampaignStatusCancelled,
	}
	for _, status := range all {
		if _, ok := ValidCampaignTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidCampaignTransitions", status)
		}
	}
	for _, status := range []string{CampaignStatusCompleted, CampaignStatusCancelled} {
		if n := len(ValidCampaignTransitions[status]); n != 0 {
			t.Errorf("terminal status %q should have no transitions, got %d", status, n)
		}
	}
}

func TestCampaignProgress(t *testing.T) {
	c := Campaign{StartDate: day(1), EndDate: day(11)}

	tests := []struct {
		now  time.Time
		want int
	}{
		{day(1).Add(-time.Hour), 0},
		{day(1), 0},
		{day(6), 50},
		{day(11), 100},
		{day(20), 100},
	}
	for _, tt := range tests {
		if got := c.Progress(tt.now); got != tt.want {
			t.Errorf("Progress(%s) = %d, want %d", tt.now.Format(time.RFC3339), got, tt.want)
		}
	}
}

func TestCampaignProgressMonotonic(t *testing.T) {
	c := Campaign{StartDate: day(1), EndDate: day(1).Add(7 * time.Hour)}
	prev := -1
	for now := day(1).Add(-2 * time.Hour); now.Before(day(2)); now = now.Add(17 * time.Minute) {
		p := c.Progress(now)
		if p < 0 || p > 100 {
			t.Fatalf("Progress(%s) = %d out of range", now, p)
		}
		if p < prev {
			t.Fatalf("Progress went backwards at %s: %d < %d", now, p, prev)
		}
		prev = p
	}
}

func TestCampaignProgressZeroLengthWindow(t *testing.T) {
	c := Campaign{StartDate: day(3), EndDate: day(3)}
	if got := c.Progress(day(2)); got != 0 {
		t.Errorf("before start: got %d, want 0", got)
	}
	if got := c.Progress(day(3)); got != 100 {
		t.Errorf("at start: got %d, want 100", got)
	}
}

func TestCampaignDaysRemaining(t *testing.T) {
	c := Campaign{StartDate: day(1), EndDate: day(11)}

	tests := []struct {
		now  time.Time
		want int
	}{
		{day(6), 5},
		{day(6).Add(time.Hour), 5},
		{day(10).Add(23 * time.Hour), 1},
		{day(11), 0},
		{day(12), 0},
	}
	for _, tt := range tests {
		if got := c.DaysRemaining(tt.now); got != tt.want {
			t.Errorf("DaysRemaining(%s) = %d, want %d", tt.now.Format(time.RFC3339), got, tt.want)
		}
	}
}

func TestCampaignEffectiveStatus(t *testing.T) {
	active := Campaign{Status: CampaignStatusActive, StartDate: day(1), EndDate: day(3)}
	if got := active.EffectiveStatus(day(3)); got != CampaignStatusActive {
		t.Errorf("on end date: got %q, want active", got)
	}
	if got := active.EffectiveStatus(day(4)); got != CampaignStatusCompleted {
		t.Errorf("after end date: got %q, want completed", got)
	}
	if active.Status != CampaignStatusActive {
		t.Error("EffectiveStatus must not modify the stored status")
	}

	paused := Campaign{Status: CampaignStatusPaused, StartDate: day(1), EndDate: day(3)}
	if got := paused.EffectiveStatus(day(10)); got != CampaignStatusPaused {
		t.Errorf("paused after end: got %q, want paused", got)
	}
}

func TestCampaignIsRunning(t *testing.T) {
	c := Campaign{Status: CampaignStatusActive, StartDate: day(2), EndDate: day(4)}
	for _, now := range []time.Time{day(2), day(3), day(4)} {
		if !c.IsRunning(now) {
			t.Errorf("IsRunning(%s) = false, want true", now)
		}
	}
	for _, now := range []time.Time{day(1), day(4).Add(time.Second)} {
		if c.IsRunning(now) {
			t.Errorf("IsRunning(%s) = true, want false", now)
		}
	}
	c.Status = CampaignStatusPaused
	if c.IsRunning(day(3)) {
		t.Error("paused campaign must not be running")
	}
}

func TestCampaignApplyAnalytics(t *testing.T) {
	reach := int64(1000)
	revenue := 500.0
	c := Campaign{
		Budget:    CampaignBudget{Total: 300, Spent: 200},
		Analytics: CampaignAnalytics{TotalPosts: 4, TotalClicks: 12},
	}

	c.ApplyAnalytics(CampaignAnalyticsPatch{TotalReach: &reach, Revenue: &revenue}, day(5))

	if c.Analytics.TotalReach != 1000 {
		t.Errorf("TotalReach = %d, want 1000", c.Analytics.TotalReach)
	}
	if c.Analytics.TotalClicks != 12 || c.Analytics.TotalPosts != 4 {
		t.Errorf("unpatched fields changed: %+v", c.Analytics)
	}
	if c.Analytics.ROI != 150 {
		t.Errorf("ROI = %v, want 150", c.Analytics.ROI)
	}
	if c.Analytics.LastUpdated == nil || !c.Analytics.LastUpdated.Equal(day(5)) {
		t.Errorf("LastUpdated = %v, want %s", c.Analytics.LastUpdated, day(5))
	}

	c.Budget.Spent = 0
	c.ApplyAnalytics(CampaignAnalyticsPatch{Revenue: &revenue}, day(6))
	if c.Analytics.ROI != 150 {
		t.Errorf("ROI without spend should be kept, got %v", c.Analytics.ROI)
	}
}

func TestCampaignHasPost(t *testing.T) {
	id := uuid.New()
	c := Campaign{PostIDs: []uuid.UUID{uuid.New(), id}}
	if !c.HasPost(id) {
		t.Error("HasPost returned false for a linked post")
	}
	if c.HasPost(uuid.New()) {
		t.Error("HasPost returned true for an unknown post")
	}
}
