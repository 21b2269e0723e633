package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// RECURRENCE - Descriptor for repeating Income / Expense transactions
// =============================================================================

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// Recurrence describes when a repeating transaction produces a new
// occurrence. Occurrences fire at midnight UTC of the matching day.
type Recurrence struct {
	Frequency  Frequency
	Weekday    time.Weekday // weekly
	DayOfMonth int          // monthly, yearly (1-31, clamped to month length)
	Month      time.Month   // yearly
	EndAfter   time.Time    // last day an occurrence may be produced

	// LastRun is the day of the most recent generated occurrence.
	LastRun time.Time
}

func (r Recurrence) Validate() error {
	if r.EndAfter.IsZero() {
		return &MissingFieldError{Field: "endAfter"}
	}
	switch r.Frequency {
	case FreqDaily:
	case FreqWeekly:
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return fmt.Errorf("%w: weekday %d", ErrInvalidType, r.Weekday)
		}
	case FreqMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d", ErrInvalidType, r.DayOfMonth)
		}
	case FreqYearly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 || r.Month < time.January || r.Month > time.December {
			return fmt.Errorf("%w: yearly recurrence needs date and month", ErrInvalidType)
		}
	default:
		return fmt.Errorf("%w: frequency %q", ErrInvalidType, r.Frequency)
	}
	return nil
}

// matches reports whether day (midnight UTC) is an occurrence day.
func (r Recurrence) matches(day time.Time) bool {
	switch r.Frequency {
	case FreqDaily:
		return true
	case FreqWeekly:
		return day.Weekday() == r.Weekday
	case FreqMonthly:
		return day.Day() == clampDay(day.Year(), day.Month(), r.DayOfMonth)
	case FreqYearly:
		return day.Month() == r.Month && day.Day() == clampDay(day.Year(), r.Month, r.DayOfMonth)
	}
	return false
}

// Due reports whether an occurrence should be generated for the day of now:
// the day matches the frequency, is not past EndAfter and has not already
// been generated.
func (r Recurrence) Due(now time.Time) bool {
	day := truncateDay(now)
	if day.After(truncateDay(r.EndAfter)) {
		return false
	}
	if !r.LastRun.IsZero() && !truncateDay(r.LastRun).Before(day) {
		return false
	}
	return r.matches(day)
}

// Next returns the first occurrence day strictly after `after`, or false
// when the recurrence has ended.
func (r Recurrence) Next(after time.Time) (time.Time, bool) {
	end := truncateDay(r.EndAfter)
	day := truncateDay(after).AddDate(0, 0, 1)
	// A yearly rule repeats within 366 days; anything longer has ended.
	for i := 0; i < 367 && !day.After(end); i++ {
		if r.matches(day) {
			return day, true
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}
