// Package ics renders gigs as an iCalendar feed.
//
// One-off gigs become single all-day events. A recurring gig becomes one
// all-day event carrying a weekly RRULE, plus one RECURRENCE-ID event for
// every override that still matches an occurrence.
package ics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"gigtracker/internal/core"
	"gigtracker/internal/services"
)

const (
	ProductID = "-//gigtracker//gig calendar//EN"
	dateValue = "20060102"
)

var byDay = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// UID is the stable event identifier of a gig.
func UID(gigID int64) string {
	return fmt.Sprintf("gig-%d@gigtracker", gigID)
}

// Export renders gigs and their overrides. stamp is used as DTSTAMP.
func Export(gigs []core.Gig, overridesByGig map[int64]map[core.Date]core.Override, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName("Gigs")

	for _, g := range gigs {
		if services.Classify(g) == core.Recurring {
			addRecurring(cal, g, overridesByGig[g.ID], stamp)
			continue
		}
		if g.Date.IsZero() {
			continue
		}
		ev := addDay(cal, UID(g.ID), g, g.Date, stamp)
		ev.SetSummary(summary(g.Title, g.Amount))
		ev.SetStatus(eventStatus(g.Status))
	}
	return cal.Serialize()
}

func addRecurring(cal *ical.Calendar, g core.Gig, overrides map[core.Date]core.Override, stamp time.Time) {
	rule := RRule(g)
	if rule == "" {
		return
	}
	// DTSTART must be the first instance; the anchor may fall on a day
	// outside the weekday set.
	strategy := services.StrategyFor(g)
	occs := strategy.Occurrences(g)
	if len(occs) == 0 {
		return
	}
	ev := addDay(cal, UID(g.ID), g, occs[0], stamp)
	ev.SetSummary(summary(g.Title, g.Amount))
	ev.SetStatus(ical.ObjectStatusConfirmed)
	ev.AddRrule(rule)

	dates := make([]core.Date, 0, len(overrides))
	for d := range overrides {
		if strategy.OccursOn(g, d) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		occ := services.ResolveOn(g, d, overrides)
		ex := addDay(cal, UID(g.ID), g, d, stamp)
		ex.SetProperty(ical.ComponentPropertyRecurrenceId, d.Time().Format(dateValue), dateParam())
		ex.SetSummary(summary(g.Title, occ.Amount))
		ex.SetStatus(eventStatus(occ.Status))
		if occ.Notes != "" {
			ex.SetDescription(occ.Notes)
		}
	}
}

func addDay(cal *ical.Calendar, uid string, g core.Gig, day core.Date, stamp time.Time) *ical.VEvent {
	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(stamp)
	ev.SetAllDayStartAt(day.Time())
	ev.SetAllDayEndAt(day.AddDays(1).Time())
	if g.Place != "" {
		ev.SetLocation(g.Place)
	}
	if g.Description != "" {
		ev.SetDescription(g.Description)
	}
	return ev
}

// RRule returns the weekly rule of a recurring gig, e.g.
// "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20240131", or "" when the gig has no
// usable recurrence. UNTIL is a DATE to match the all-day DTSTART.
func RRule(g core.Gig) string {
	days := g.EffectiveWeekdays().Days()
	if len(days) == 0 || g.Date.IsZero() || g.RecurringEndDate.IsZero() || g.RecurringEndDate.Before(g.Date) {
		return ""
	}
	tokens := make([]string, len(days))
	for i, d := range days {
		tokens[i] = byDay[d].String()
	}
	return fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;UNTIL=%s",
		strings.Join(tokens, ","), g.RecurringEndDate.Time().Format(dateValue))
}

// Expand evaluates a rule produced by RRule from anchor, for consumers that
// want the dates back without the services package.
func Expand(rule string, anchor core.Date) ([]core.Date, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule: %w", err)
	}
	opt.Dtstart = anchor.Time()
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}
	times := r.All()
	out := make([]core.Date, len(times))
	for i, t := range times {
		out[i] = core.DateOf(t.UTC())
	}
	return out, nil
}

func summary(title string, amount core.Money) string {
	return fmt.Sprintf("%s (%s)", title, amount.String())
}

func eventStatus(s core.Status) ical.ObjectStatus {
	if s == core.StatusCancelled {
		return ical.ObjectStatusCancelled
	}
	return ical.ObjectStatusConfirmed
}

func dateParam() ical.PropertyParameter {
	return &ical.KeyValues{Key: string(ical.ParameterValue), Value: []string{"DATE"}}
}
