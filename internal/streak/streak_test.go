package streak

import (
	"testing"
	"time"
)

func instant(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test instant %q: %v", value, err)
	}
	return parsed
}

func TestFirstActivity(t *testing.T) {
	now := instant(t, "2024-01-01T10:00:00Z")

	rec := RecordActivity(Default("UTC"), now, now)

	if rec.CurrentStreak != 1 || rec.MaxStreak != 1 {
		t.Errorf("expected streak 1/1, got %d/%d", rec.CurrentStreak, rec.MaxStreak)
	}
	if rec.LastEntryDate != "2024-01-01" {
		t.Errorf("expected last entry date 2024-01-01, got %q", rec.LastEntryDate)
	}
	if rec.LastAccessTime == nil || !rec.LastAccessTime.Equal(now) {
		t.Errorf("expected last access time %v, got %v", now, rec.LastAccessTime)
	}
}

func TestSameDayIdempotence(t *testing.T) {
	first := instant(t, "2024-01-01T10:00:00Z")
	second := instant(t, "2024-01-01T22:00:00Z")

	rec := RecordActivity(Default("UTC"), first, first)
	rec = RecordActivity(rec, second, second)

	if rec.CurrentStreak != 1 || rec.MaxStreak != 1 {
		t.Errorf("second same-day activity changed streak: %d/%d", rec.CurrentStreak, rec.MaxStreak)
	}
	if rec.LastEntryDate != "2024-01-01" {
		t.Errorf("second same-day activity moved last entry date: %q", rec.LastEntryDate)
	}
	if rec.LastAccessTime == nil || !rec.LastAccessTime.Equal(second) {
		t.Errorf("last access time not refreshed: %v", rec.LastAccessTime)
	}
}

func TestConsecutiveDayGrowth(t *testing.T) {
	rec := Default("UTC")
	days := []string{
		"2024-01-01T10:00:00Z",
		"2024-01-02T09:00:00Z",
		"2024-01-03T23:59:00Z",
		"2024-01-04T00:01:00Z",
	}

	for i, day := range days {
		at := instant(t, day)
		rec = RecordActivity(rec, at, at)
		if rec.CurrentStreak != i+1 {
			t.Fatalf("day %d: expected streak %d, got %d", i+1, i+1, rec.CurrentStreak)
		}
		if rec.MaxStreak != i+1 {
			t.Fatalf("day %d: expected max %d, got %d", i+1, i+1, rec.MaxStreak)
		}
	}

	if rec.LastEntryDate != "2024-01-04" {
		t.Errorf("expected last entry date 2024-01-04, got %q", rec.LastEntryDate)
	}
}

func TestGapResetsStreakKeepsMax(t *testing.T) {
	rec := Record{CurrentStreak: 2, MaxStreak: 2, LastEntryDate: "2024-01-02", UserTimeZone: "UTC"}

	at := instant(t, "2024-01-05T09:00:00Z")
	rec = RecordActivity(rec, at, at)

	if rec.CurrentStreak != 1 {
		t.Errorf("expected streak reset to 1, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 2 {
		t.Errorf("expected max preserved at 2, got %d", rec.MaxStreak)
	}
	if rec.LastEntryDate != "2024-01-05" {
		t.Errorf("expected last entry date 2024-01-05, got %q", rec.LastEntryDate)
	}
}

func TestBackdatedActivityStartsNewStreak(t *testing.T) {
	rec := Record{CurrentStreak: 4, MaxStreak: 6, LastEntryDate: "2024-03-10", UserTimeZone: "UTC"}

	at := instant(t, "2024-03-08T12:00:00Z")
	now := instant(t, "2024-03-10T12:00:00Z")
	rec = RecordActivity(rec, at, now)

	if rec.CurrentStreak != 1 {
		t.Errorf("expected streak 1 after backdated activity, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 6 {
		t.Errorf("expected max unchanged, got %d", rec.MaxStreak)
	}
	if rec.LastEntryDate != "2024-03-08" {
		t.Errorf("expected last entry date 2024-03-08, got %q", rec.LastEntryDate)
	}
}

func TestMaxStreakMonotonic(t *testing.T) {
	rec := Default("UTC")
	stamps := []string{
		"2024-01-01T08:00:00Z",
		"2024-01-02T08:00:00Z",
		"2024-01-03T08:00:00Z",
		"2024-01-07T08:00:00Z", // gap
		"2024-01-08T08:00:00Z",
		"2024-01-08T20:00:00Z", // same day
		"2024-02-01T08:00:00Z", // gap
	}

	prevMax := 0
	for _, s := range stamps {
		at := instant(t, s)
		rec = RecordActivity(rec, at, at)
		if rec.MaxStreak < prevMax {
			t.Fatalf("max streak decreased: %d -> %d at %s", prevMax, rec.MaxStreak, s)
		}
		if rec.CurrentStreak > rec.MaxStreak {
			t.Fatalf("current %d exceeds max %d at %s", rec.CurrentStreak, rec.MaxStreak, s)
		}
		prevMax = rec.MaxStreak
	}

	if rec.MaxStreak != 3 {
		t.Errorf("expected max 3, got %d", rec.MaxStreak)
	}
}

func TestTimezoneBoundary(t *testing.T) {
	// 2024-01-02T03:00Z is still Jan 1 in New York but already Jan 2 in Sofia.
	rec := Default("America/New_York")
	at := instant(t, "2024-01-02T03:00:00Z")
	rec = RecordActivity(rec, at, at)
	if rec.LastEntryDate != "2024-01-01" {
		t.Errorf("New York: expected 2024-01-01, got %q", rec.LastEntryDate)
	}

	rec = Default("Europe/Sofia")
	rec = RecordActivity(rec, at, at)
	if rec.LastEntryDate != "2024-01-02" {
		t.Errorf("Sofia: expected 2024-01-02, got %q", rec.LastEntryDate)
	}
}

func TestDSTSpringForwardStillConsecutive(t *testing.T) {
	// US DST starts 2024-03-10; that local day is only 23 hours long.
	rec := Default("America/New_York")

	saturday := instant(t, "2024-03-09T23:30:00-05:00")
	sunday := instant(t, "2024-03-10T22:30:00-04:00")

	rec = RecordActivity(rec, saturday, saturday)
	rec = RecordActivity(rec, sunday, sunday)

	if rec.CurrentStreak != 2 {
		t.Errorf("expected streak 2 across spring-forward, got %d", rec.CurrentStreak)
	}
}

func TestDSTFallBackSameDayIdempotent(t *testing.T) {
	// US DST ends 2024-11-03; the local day is 25 hours long. Two entries
	// more than 24h apart can still be the same local day.
	rec := Default("America/New_York")

	early := instant(t, "2024-11-03T00:30:00-04:00")
	late := instant(t, "2024-11-03T23:45:00-05:00")

	rec = RecordActivity(rec, early, early)
	rec = RecordActivity(rec, late, late)

	if rec.CurrentStreak != 1 {
		t.Errorf("expected streak 1 within 25-hour day, got %d", rec.CurrentStreak)
	}
	if rec.LastEntryDate != "2024-11-03" {
		t.Errorf("expected last entry date 2024-11-03, got %q", rec.LastEntryDate)
	}
}

func TestReconcileOnAccess(t *testing.T) {
	base := Record{CurrentStreak: 5, MaxStreak: 5, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"}

	tests := []struct {
		name   string
		now    string
		expect int
	}{
		{"same day", "2024-01-10T20:00:00Z", 5},
		{"next day, still due", "2024-01-11T08:00:00Z", 5},
		{"one missed day", "2024-01-12T08:00:00Z", 0},
		{"long lapse", "2024-02-01T08:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := instant(t, tt.now)
			rec := ReconcileOnAccess(base, now)
			if rec.CurrentStreak != tt.expect {
				t.Errorf("expected streak %d, got %d", tt.expect, rec.CurrentStreak)
			}
			if rec.MaxStreak != 5 {
				t.Errorf("max streak changed: %d", rec.MaxStreak)
			}
			if rec.LastEntryDate != "2024-01-10" {
				t.Errorf("last entry date changed: %q", rec.LastEntryDate)
			}
			if rec.LastAccessTime == nil || !rec.LastAccessTime.Equal(now) {
				t.Errorf("last access time not refreshed: %v", rec.LastAccessTime)
			}
		})
	}
}

func TestReconcileOnAccessEmptyRecord(t *testing.T) {
	now := instant(t, "2024-01-10T20:00:00Z")
	rec := ReconcileOnAccess(Default("UTC"), now)

	if rec.CurrentStreak != 0 || rec.LastEntryDate != "" {
		t.Errorf("empty record mutated: %+v", rec)
	}
	if rec.LastAccessTime == nil {
		t.Error("expected last access time refreshed")
	}
}

func TestResetPreservesMax(t *testing.T) {
	at := instant(t, "2024-01-10T20:00:00Z")
	rec := Record{CurrentStreak: 9, MaxStreak: 12, LastEntryDate: "2024-01-10", LastAccessTime: &at, UserTimeZone: "Europe/Sofia"}

	rec = Reset(rec)

	if rec.CurrentStreak != 0 {
		t.Errorf("expected streak 0, got %d", rec.CurrentStreak)
	}
	if rec.MaxStreak != 12 {
		t.Errorf("expected max preserved at 12, got %d", rec.MaxStreak)
	}
	if rec.LastEntryDate != "" || rec.LastAccessTime != nil {
		t.Errorf("expected entry markers cleared, got %q / %v", rec.LastEntryDate, rec.LastAccessTime)
	}
	if rec.UserTimeZone != "Europe/Sofia" {
		t.Errorf("timezone changed: %q", rec.UserTimeZone)
	}
}

func TestLoadOrDefault(t *testing.T) {
	tests := []struct {
		name   string
		stored *Record
		tz     string
		expect Record
	}{
		{
			name:   "nil record",
			stored: nil,
			tz:     "Europe/Sofia",
			expect: Record{UserTimeZone: "Europe/Sofia"},
		},
		{
			name:   "nil record, bad detected zone",
			stored: nil,
			tz:     "Mars/Olympus",
			expect: Record{UserTimeZone: "UTC"},
		},
		{
			name:   "valid record unchanged",
			stored: &Record{CurrentStreak: 3, MaxStreak: 5, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"},
			tz:     "Europe/Sofia",
			expect: Record{CurrentStreak: 3, MaxStreak: 5, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"},
		},
		{
			name:   "malformed date degrades to no history",
			stored: &Record{CurrentStreak: 3, MaxStreak: 5, LastEntryDate: "10/01/2024", UserTimeZone: "UTC"},
			tz:     "UTC",
			expect: Record{CurrentStreak: 0, MaxStreak: 5, UserTimeZone: "UTC"},
		},
		{
			name:   "negative counters clamped",
			stored: &Record{CurrentStreak: -2, MaxStreak: -7, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"},
			tz:     "UTC",
			expect: Record{CurrentStreak: 0, MaxStreak: 0, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"},
		},
		{
			name:   "max raised to current",
			stored: &Record{CurrentStreak: 8, MaxStreak: 3, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"},
			tz:     "UTC",
			expect: Record{CurrentStreak: 8, MaxStreak: 8, LastEntryDate: "2024-01-10", UserTimeZone: "UTC"},
		},
		{
			name:   "invalid stored zone replaced by detected",
			stored: &Record{CurrentStreak: 1, MaxStreak: 1, LastEntryDate: "2024-01-10", UserTimeZone: "Not/AZone"},
			tz:     "Europe/Sofia",
			expect: Record{CurrentStreak: 1, MaxStreak: 1, LastEntryDate: "2024-01-10", UserTimeZone: "Europe/Sofia"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LoadOrDefault(tt.stored, tt.tz)
			if got != tt.expect {
				t.Errorf("got %+v, want %+v", got, tt.expect)
			}
		})
	}
}

func TestDayDiff(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2024-01-01", "2024-01-01", 0},
		{"2024-01-01", "2024-01-02", 1},
		{"2024-01-02", "2024-01-01", -1},
		{"2024-02-28", "2024-03-01", 2},  // leap year
		{"2023-02-28", "2023-03-01", 1},  // non-leap
		{"2023-12-31", "2024-01-01", 1},
		{"2024-01-01", "2025-01-01", 366}, // leap year span
	}

	for _, tt := range tests {
		if got := DayDiff(tt.from, tt.to); got != tt.want {
			t.Errorf("DayDiff(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStreakLifecycleSequence(t *testing.T) {
	// The end-to-end sequence: first entry, same-day repeat, next-day growth,
	// gap reset, then access-time expiry.
	rec := Default("UTC")

	at := instant(t, "2024-01-01T10:00:00Z")
	rec = RecordActivity(rec, at, at)
	at = instant(t, "2024-01-01T22:00:00Z")
	rec = RecordActivity(rec, at, at)
	at = instant(t, "2024-01-02T09:00:00Z")
	rec = RecordActivity(rec, at, at)

	if rec.CurrentStreak != 2 || rec.MaxStreak != 2 || rec.LastEntryDate != "2024-01-02" {
		t.Fatalf("after three entries: %+v", rec)
	}

	at = instant(t, "2024-01-05T09:00:00Z")
	rec = RecordActivity(rec, at, at)
	if rec.CurrentStreak != 1 || rec.MaxStreak != 2 || rec.LastEntryDate != "2024-01-05" {
		t.Fatalf("after gap: %+v", rec)
	}

	rec = ReconcileOnAccess(rec, instant(t, "2024-01-06T09:00:00Z"))
	if rec.CurrentStreak != 1 {
		t.Fatalf("reconcile one day later expired streak: %+v", rec)
	}

	rec = ReconcileOnAccess(rec, instant(t, "2024-01-07T09:00:00Z"))
	if rec.CurrentStreak != 0 || rec.MaxStreak != 2 {
		t.Fatalf("reconcile two days later: %+v", rec)
	}
}
