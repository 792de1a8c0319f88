// Package schedule implements the pure occurrence math for recurring
// templates: calendar-aware date stepping and idempotent instance
// generation. Nothing in this package touches storage; persistence and
// uniqueness enforcement belong to the service layer.
package schedule

import (
	"time"

	"cashlog/internal/models"
)

// Horizon bounds a generation run. At least one of Count or Until must be
// set; Count counts occurrence positions from the template's start date, so
// repeated calls with the same horizon are idempotent. From, when set,
// drops occurrences scheduled strictly before it (used by update cascades
// that must only regenerate the future).
type Horizon struct {
	Count int
	Until time.Time
	From  time.Time
}

// Bounded reports whether the horizon terminates generation at all.
func (h Horizon) Bounded() bool {
	return h.Count > 0 || !h.Until.IsZero()
}

// Occurrence returns the scheduled time of occurrence n (0-based) for a
// template starting at start. Hour and day frequencies step linearly;
// month and year frequencies step by calendar months anchored at the start
// date, clamping to the last valid day of the target month (one month
// after Jan 31 is Feb 28/29, not Mar 2).
func Occurrence(start time.Time, frequency models.RecurringFrequency, interval, n int) time.Time {
	steps := interval * n
	switch frequency {
	case models.FrequencyHour:
		return start.Add(time.Duration(steps) * time.Hour)
	case models.FrequencyDay:
		return start.AddDate(0, 0, steps)
	case models.FrequencyMonth:
		return addMonthsClamped(start, steps)
	case models.FrequencyYear:
		return addMonthsClamped(start, 12*steps)
	}
	return start
}

// addMonthsClamped advances t by the given number of months, keeping the
// day-of-month when it exists in the target month and clamping to the
// month's last day otherwise.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)

	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Generate produces the ordered list of pending instances for rec that are
// within the horizon and not present in existing (the scheduled dates
// already materialized for the template, in any status). It is pure and
// idempotent: generating twice against the same existing set yields no
// duplicates. Paused, completed, and cancelled templates generate nothing.
func Generate(rec *models.Recurring, existing []time.Time, h Horizon) []models.RecurringInstance {
	if rec.Status != models.RecurringStatusActive || rec.Interval < 1 || !h.Bounded() {
		return nil
	}
	switch rec.Frequency {
	case models.FrequencyHour, models.FrequencyDay, models.FrequencyMonth, models.FrequencyYear:
	default:
		// An unknown unit would never advance past Until.
		return nil
	}

	seen := make(map[int64]struct{}, len(existing))
	for _, t := range existing {
		seen[t.Unix()] = struct{}{}
	}

	var out []models.RecurringInstance
	for n := 0; ; n++ {
		if h.Count > 0 && n >= h.Count {
			break
		}
		at := Occurrence(rec.StartDate, rec.Frequency, rec.Interval, n)
		if !h.Until.IsZero() && at.After(h.Until) {
			break
		}
		if !h.From.IsZero() && at.Before(h.From) {
			continue
		}
		if _, ok := seen[at.Unix()]; ok {
			continue
		}
		out = append(out, models.RecurringInstance{
			RecurringID:     rec.ID,
			ScheduledDate:   at,
			ScheduledAmount: rec.Amount,
			Direction:       rec.Direction,
			Status:          models.InstanceStatusPending,
		})
	}
	return out
}
