// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for gig schedules. Each gig type
// (one-off, recurring) has its own strategy that knows which dates the gig
// occurs on and how those dates resolve against per-date overrides.

package services

import (
	"fmt"

	"gigtracker/internal/core"
)

// OccurrenceStrategy is the strategy interface for one gig type.
type OccurrenceStrategy interface {
	// Occurrences returns the dates the gig occurs on, ascending.
	Occurrences(g core.Gig) []core.Date
	// OccursOn reports whether the gig occurs on date.
	OccursOn(g core.Gig, date core.Date) bool
	// OccursBetween reports whether the gig occurs on any date in [from, to].
	OccursBetween(g core.Gig, from, to core.Date) bool
	// Resolve merges the gig's occurrences with its overrides.
	Resolve(g core.Gig, overrides map[core.Date]core.Override) []core.ResolvedOccurrence
}

// OneOffStrategy implements OccurrenceStrategy for single-date gigs.
type OneOffStrategy struct{}

// Occurrences returns the gig's own date.
func (OneOffStrategy) Occurrences(g core.Gig) []core.Date {
	if g.Date.IsZero() {
		return nil
	}
	return []core.Date{g.Date}
}

func (OneOffStrategy) OccursOn(g core.Gig, date core.Date) bool {
	return !g.Date.IsZero() && g.Date.Equal(date)
}

func (OneOffStrategy) OccursBetween(g core.Gig, from, to core.Date) bool {
	return !g.Date.IsZero() && !g.Date.Before(from) && !g.Date.After(to)
}

// Resolve returns the gig's own terms; one-off gigs carry status on the gig
// row, so overrides are ignored.
func (s OneOffStrategy) Resolve(g core.Gig, _ map[core.Date]core.Override) []core.ResolvedOccurrence {
	if g.Date.IsZero() {
		return nil
	}
	status := g.Status
	if !status.Valid() {
		status = core.StatusPending
	}
	return []core.ResolvedOccurrence{{
		Date:   g.Date,
		Status: status,
		Amount: g.Amount,
		Notes:  "",
	}}
}

// RecurringStrategy implements OccurrenceStrategy for weekday-set recurrences.
type RecurringStrategy struct{}

func (RecurringStrategy) Occurrences(g core.Gig) []core.Date {
	return GenerateOccurrences(g.Date, g.RecurringEndDate, g.EffectiveWeekdays())
}

func (RecurringStrategy) OccursOn(g core.Gig, date core.Date) bool {
	return occursOn(g.Date, g.RecurringEndDate, g.EffectiveWeekdays(), date)
}

func (RecurringStrategy) OccursBetween(g core.Gig, from, to core.Date) bool {
	return occursBetween(g.Date, g.RecurringEndDate, g.EffectiveWeekdays(), from, to)
}

func (RecurringStrategy) Resolve(g core.Gig, overrides map[core.Date]core.Override) []core.ResolvedOccurrence {
	return Resolve(g, overrides)
}

// occurrenceStrategies maps gig types to their strategies.
var occurrenceStrategies = map[core.GigType]OccurrenceStrategy{
	core.OneOff:    OneOffStrategy{},
	core.Recurring: RecurringStrategy{},
}

// Classify returns the gig's effective type. Unknown or missing types are
// treated as one-off.
func Classify(g core.Gig) core.GigType {
	if g.Type == core.Recurring {
		return core.Recurring
	}
	return core.OneOff
}

// StrategyFor returns the strategy that applies to g.
func StrategyFor(g core.Gig) OccurrenceStrategy {
	return occurrenceStrategies[Classify(g)]
}

// GetOccurrenceStrategy returns the strategy registered for a gig type.
// Returns an error if the type is not supported.
func GetOccurrenceStrategy(t core.GigType) (OccurrenceStrategy, error) {
	s, ok := occurrenceStrategies[t]
	if !ok {
		return nil, fmt.Errorf("unknown gig type: %s", t)
	}
	return s, nil
}
