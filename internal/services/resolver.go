package services

import (
	"gigtracker/internal/core"
)

// Resolve merges a recurring gig's generated dates with its overrides.
//
// The result has exactly one entry per generated date, ascending. Dates
// without an override resolve to pending at the gig's amount with empty
// notes; an override with a nil or negative amount keeps the gig's amount.
func Resolve(g core.Gig, overrides map[core.Date]core.Override) []core.ResolvedOccurrence {
	dates := GenerateOccurrences(g.Date, g.RecurringEndDate, g.EffectiveWeekdays())
	out := make([]core.ResolvedOccurrence, len(dates))
	for i, d := range dates {
		out[i] = resolveOne(g, d, overrides)
	}
	return out
}

// ResolveOn resolves a single date of g.
func ResolveOn(g core.Gig, date core.Date, overrides map[core.Date]core.Override) core.ResolvedOccurrence {
	return resolveOne(g, date, overrides)
}

func resolveOne(g core.Gig, date core.Date, overrides map[core.Date]core.Override) core.ResolvedOccurrence {
	occ := core.ResolvedOccurrence{
		Date:   date,
		Status: core.StatusPending,
		Amount: g.Amount,
	}
	o, ok := overrides[date]
	if !ok {
		return occ
	}
	occ.Overridden = true
	if o.Status.Valid() {
		occ.Status = o.Status
	}
	if o.Amount != nil && o.Amount.Cents >= 0 {
		occ.Amount = *o.Amount
	}
	occ.Notes = o.Notes
	return occ
}

// IndexOverrides keys overrides by date. When the input holds duplicates the
// last one wins, matching upsert semantics.
func IndexOverrides(list []core.Override) map[core.Date]core.Override {
	m := make(map[core.Date]core.Override, len(list))
	for _, o := range list {
		m[o.Date] = o
	}
	return m
}
