package enrollment

import (
	"testing"
	"time"
)

func TestClassifyUrgency(t *testing.T) {
	tests := []struct {
		days   int
		window int
		want   Urgency
	}{
		{days: 0, window: 30, want: UrgencyUrgent},
		{days: 7, window: 30, want: UrgencyUrgent},
		{days: 8, window: 30, want: UrgencyNotice},
		{days: 30, window: 30, want: UrgencyNotice},
		{days: 31, window: 30, want: UrgencyHidden},
		{days: 200, window: 0, want: UrgencyNotice},
		{days: 3, window: 0, want: UrgencyUrgent},
	}
	for _, tt := range tests {
		if got := ClassifyUrgency(tt.days, tt.window); got != tt.want {
			t.Errorf("ClassifyUrgency(%d, %d) = %q, want %q", tt.days, tt.window, got, tt.want)
		}
	}
}

func TestResolveDeadlineWarning(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		v := testNow.Add(d)
		return &v
	}

	tests := []struct {
		name       string
		facts      Facts
		wantDays   int
		wantUrg    Urgency
		wantPassed bool
	}{
		{name: "far_away_hidden", facts: Facts{Status: StatusActive, ExpiresAt: at(45 * day)}, wantDays: 45, wantUrg: UrgencyHidden},
		{name: "within_window", facts: Facts{Status: StatusActive, ExpiresAt: at(20 * day)}, wantDays: 20, wantUrg: UrgencyNotice},
		{name: "urgent", facts: Facts{Status: StatusActive, ExpiresAt: at(6*day + time.Hour)}, wantDays: 7, wantUrg: UrgencyUrgent},
		{name: "passed", facts: Facts{Status: StatusActive, ExpiresAt: at(-time.Hour)}, wantDays: 0, wantUrg: UrgencyUrgent, wantPassed: true},
		{name: "no_deadline", facts: Facts{Status: StatusActive}, wantDays: 0, wantUrg: UrgencyHidden},
		{name: "completed", facts: Facts{Status: StatusCompleted, ExpiresAt: at(3 * day)}, wantDays: 0, wantUrg: UrgencyHidden},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDeadlineWarning(tt.facts, DefaultDeadlineWindowDays, testNow)
			if got.DaysRemaining != tt.wantDays || got.Urgency != tt.wantUrg || got.Passed != tt.wantPassed {
				t.Fatalf("got %+v, want days=%d urgency=%q passed=%v", got, tt.wantDays, tt.wantUrg, tt.wantPassed)
			}
		})
	}
}

func TestGraceUrgency(t *testing.T) {
	if got := GraceUrgency(AlumniAccess{InGracePeriod: true, DaysRemaining: 5}, 0); got != UrgencyUrgent {
		t.Errorf("grace with 5 days = %q, want urgent", got)
	}
	if got := GraceUrgency(AlumniAccess{InGracePeriod: true, DaysRemaining: 60}, 0); got != UrgencyNotice {
		t.Errorf("grace with 60 days = %q, want notice", got)
	}
	if got := GraceUrgency(AlumniAccess{State: StateExpired}, 0); got != UrgencyHidden {
		t.Errorf("expired = %q, want hidden", got)
	}
}
