// Package streak is the canonical streak engine for diary activity.
//
// A streak is the number of consecutive local calendar days with at least
// one diary entry, measured in the user's own timezone. The engine is pure:
// every operation takes a Record and returns a new one, and persistence is
// the caller's job. Day continuity is computed by differencing calendar
// dates, never by dividing durations by 24h, so DST transitions and
// variable-length days cannot skew the result.
package streak

import (
	"time"
)

// DateLayout is the wire format of Record.LastEntryDate.
const DateLayout = "2006-01-02"

// Record is the per-user streak state.
//
// LastEntryDate is a calendar date string ("2006-01-02") or empty when the
// user has no recorded activity. It deliberately carries no time-of-day.
type Record struct {
	CurrentStreak  int        `json:"current_streak" db:"current_streak"`
	MaxStreak      int        `json:"max_streak" db:"max_streak"`
	LastEntryDate  string     `json:"last_entry_date,omitempty" db:"last_entry_date"`
	LastAccessTime *time.Time `json:"last_access_time,omitempty" db:"last_access_time"`
	UserTimeZone   string     `json:"user_time_zone" db:"user_time_zone"`
}

// Default returns the record for a user with no history. tz is validated;
// an unknown zone falls back to UTC.
func Default(tz string) Record {
	return Record{UserTimeZone: validZone(tz)}
}

// LoadOrDefault sanitizes a stored record. A nil record, or one whose fields
// fail to parse, degrades to the default record rather than surfacing an
// error: corrupted storage means "no streak", never a failed read path.
// detectedTZ is adopted only when the stored zone is missing or invalid.
func LoadOrDefault(stored *Record, detectedTZ string) Record {
	if stored == nil {
		return Default(detectedTZ)
	}

	rec := *stored

	if _, err := time.LoadLocation(rec.UserTimeZone); err != nil || rec.UserTimeZone == "" {
		rec.UserTimeZone = validZone(detectedTZ)
	}

	if rec.LastEntryDate != "" {
		if _, err := time.ParseInLocation(DateLayout, rec.LastEntryDate, time.UTC); err != nil {
			rec.LastEntryDate = ""
		}
	}

	if rec.CurrentStreak < 0 {
		rec.CurrentStreak = 0
	}
	if rec.MaxStreak < 0 {
		rec.MaxStreak = 0
	}

	// A streak with no last entry date is meaningless.
	if rec.LastEntryDate == "" {
		rec.CurrentStreak = 0
	}
	if rec.MaxStreak < rec.CurrentStreak {
		rec.MaxStreak = rec.CurrentStreak
	}

	return rec
}

// RecordActivity applies one qualifying activity (a new diary entry) to the
// record. Repeated activity within the same local day is idempotent: only
// LastAccessTime changes. Activity on the next local day extends the streak;
// any gap, or an activity dated before the last one, starts a new streak of 1.
func RecordActivity(rec Record, activityAt, now time.Time) Record {
	rec.UserTimeZone = validZone(rec.UserTimeZone)

	activityDate := LocalDate(activityAt, rec.UserTimeZone)

	if rec.LastEntryDate == "" {
		rec.CurrentStreak = 1
		if rec.MaxStreak < 1 {
			rec.MaxStreak = 1
		}
		rec.LastEntryDate = activityDate
		rec.LastAccessTime = &now
		return rec
	}

	switch diff := DayDiff(rec.LastEntryDate, activityDate); {
	case diff == 0:
		// Same local day: idempotent.
	case diff == 1:
		rec.CurrentStreak++
		if rec.MaxStreak < rec.CurrentStreak {
			rec.MaxStreak = rec.CurrentStreak
		}
		rec.LastEntryDate = activityDate
	default:
		// Gap or backdated activity: new streak.
		rec.CurrentStreak = 1
		if rec.MaxStreak < 1 {
			rec.MaxStreak = 1
		}
		rec.LastEntryDate = activityDate
	}

	rec.LastAccessTime = &now
	return rec
}

// ReconcileOnAccess expires the streak if more than one full local day has
// passed since the last entry. Called on app foreground, so a lapsed streak
// reads zero even before the user tries to add a new entry. MaxStreak and
// LastEntryDate are left untouched on expiry.
func ReconcileOnAccess(rec Record, now time.Time) Record {
	rec.UserTimeZone = validZone(rec.UserTimeZone)
	rec.LastAccessTime = &now

	if rec.LastEntryDate == "" {
		return rec
	}

	today := LocalDate(now, rec.UserTimeZone)
	if DayDiff(rec.LastEntryDate, today) > 1 {
		rec.CurrentStreak = 0
	}
	return rec
}

// Reset zeroes the running streak and clears the activity markers while
// preserving the historical best and the user's timezone.
func Reset(rec Record) Record {
	rec.CurrentStreak = 0
	rec.LastEntryDate = ""
	rec.LastAccessTime = nil
	return rec
}

// LocalDate renders an instant as a calendar date in the given IANA zone.
// An unknown zone falls back to UTC.
func LocalDate(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// DayDiff returns the number of calendar days from one date string to
// another. Both are parsed as UTC midnights, so the difference is an exact
// multiple of 24h regardless of DST in the zone that produced them.
// Malformed inputs count as day zero.
func DayDiff(from, to string) int {
	f, err := time.ParseInLocation(DateLayout, from, time.UTC)
	if err != nil {
		return 0
	}
	t, err := time.ParseInLocation(DateLayout, to, time.UTC)
	if err != nil {
		return 0
	}
	return int(t.Sub(f) / (24 * time.Hour))
}

func validZone(tz string) string {
	if tz == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "UTC"
	}
	return tz
}
