package services

import (
	"time"

	"gigtracker/internal/core"
)

// GenerateOccurrences returns every day in [anchor, end] whose weekday is in
// weekdays, ascending. An invalid definition (zero dates, end before anchor,
// empty weekday set) yields an empty result rather than an error.
func GenerateOccurrences(anchor, end core.Date, weekdays core.WeekdaySet) []core.Date {
	if anchor.IsZero() || end.IsZero() || end.Before(anchor) || weekdays.IsEmpty() {
		return nil
	}
	if weekdays.Len() == 1 {
		return generateWeekly(anchor, end, weekdays.Days()[0])
	}
	return generateDaily(anchor, end, weekdays)
}

// generateDaily walks every calendar day of the range.
func generateDaily(anchor, end core.Date, weekdays core.WeekdaySet) []core.Date {
	out := make([]core.Date, 0, (anchor.DaysUntil(end)/7+1)*weekdays.Len())
	for d := anchor; !d.After(end); d = d.AddDays(1) {
		if weekdays.Contains(d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

// generateWeekly aligns to the first matching weekday and then jumps a week
// at a time. Output is identical to generateDaily for a single-day set.
func generateWeekly(anchor, end core.Date, day time.Weekday) []core.Date {
	offset := (int(day) - int(anchor.Weekday()) + 7) % 7
	first := anchor.AddDays(offset)
	if first.After(end) {
		return nil
	}
	out := make([]core.Date, 0, first.DaysUntil(end)/7+1)
	for d := first; !d.After(end); d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}

// occursOn reports whether date is generated by the definition, without
// materializing the sequence.
func occursOn(anchor, end core.Date, weekdays core.WeekdaySet, date core.Date) bool {
	if anchor.IsZero() || end.IsZero() || date.IsZero() {
		return false
	}
	if date.Before(anchor) || date.After(end) {
		return false
	}
	return weekdays.Contains(date.Weekday())
}

// occursBetween reports whether any generated day falls inside [from, to].
func occursBetween(anchor, end core.Date, weekdays core.WeekdaySet, from, to core.Date) bool {
	if anchor.IsZero() || end.IsZero() || weekdays.IsEmpty() {
		return false
	}
	lo := core.MaxDate(anchor, from)
	hi := core.MinDate(end, to)
	for d, n := lo, 0; !d.After(hi) && n < 7; d, n = d.AddDays(1), n+1 {
		if weekdays.Contains(d.Weekday()) {
			return true
		}
	}
	return false
}
