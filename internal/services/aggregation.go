package services

import (
	"sort"

	"gigtracker/internal/core"
)

// Selector picks a single date or an inclusive date range. The zero
// Selector matches every gig.
type Selector struct {
	From core.Date
	To   core.Date
}

// NewDateSelector selects a single day.
func NewDateSelector(d core.Date) Selector {
	return Selector{From: d, To: d}
}

// NewRangeSelector selects [from, to]; the bounds are swapped if reversed.
func NewRangeSelector(from, to core.Date) Selector {
	if to.Before(from) {
		from, to = to, from
	}
	return Selector{From: from, To: to}
}

func (s Selector) IsZero() bool { return s.From.IsZero() && s.To.IsZero() }

// IsSingleDay reports whether the selector covers exactly one day.
func (s Selector) IsSingleDay() bool { return !s.IsZero() && s.From.Equal(s.To) }

// AggregateByDay folds every gig's resolved occurrences into one entry per day.
//
// Gigs are processed in slice order. When two contributions land on the same
// day the later one replaces the earlier, except that a completed entry is
// never replaced by a pending or cancelled one.
func AggregateByDay(gigs []core.Gig, overridesByGig map[int64]map[core.Date]core.Override) map[core.Date]core.DayEntry {
	days := make(map[core.Date]core.DayEntry)
	for _, g := range gigs {
		for _, occ := range StrategyFor(g).Resolve(g, overridesByGig[g.ID]) {
			contribute(days, occ.Date, core.DayEntry{
				Amount: occ.Amount,
				Status: occ.Status,
				GigID:  g.ID,
			})
		}
	}
	return days
}

func contribute(days map[core.Date]core.DayEntry, date core.Date, entry core.DayEntry) {
	if cur, ok := days[date]; ok && cur.Status == core.StatusCompleted && entry.Status != core.StatusCompleted {
		return
	}
	days[date] = entry
}

// DailyEarnings flattens an aggregation into a date-ordered list, keeping only
// days inside sel (all days for the zero Selector).
func DailyEarnings(days map[core.Date]core.DayEntry, sel Selector) []core.DayEarning {
	out := make([]core.DayEarning, 0, len(days))
	for d, e := range days {
		if !sel.IsZero() && (d.Before(sel.From) || d.After(sel.To)) {
			continue
		}
		out = append(out, core.DayEarning{Date: d, Amount: e.Amount, Status: e.Status, GigID: e.GigID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FilterByDateOrRange returns the gigs that occur on the selected day or on
// any day of the selected range, each at most once and in input order.
// Overrides play no part: a cancelled occurrence still matches.
func FilterByDateOrRange(gigs []core.Gig, sel Selector) []core.Gig {
	if sel.IsZero() {
		return gigs
	}
	out := make([]core.Gig, 0, len(gigs))
	for _, g := range gigs {
		if StrategyFor(g).OccursBetween(g, sel.From, sel.To) {
			out = append(out, g)
		}
	}
	return out
}

// ComputeStats totals completed earnings and all expenses. A one-off gig
// earns when its own status is completed; a recurring gig earns once for
// every occurrence that resolves to completed.
func ComputeStats(gigs []core.Gig, overridesByGig map[int64]map[core.Date]core.Override, expenses []core.Expense) core.Stats {
	var st core.Stats
	for _, g := range gigs {
		for _, occ := range StrategyFor(g).Resolve(g, overridesByGig[g.ID]) {
			if occ.Status == core.StatusCompleted {
				st.TotalEarnings = st.TotalEarnings.Add(occ.Amount)
			}
		}
	}
	for _, e := range expenses {
		st.TotalExpenses = st.TotalExpenses.Add(e.Amount)
	}
	st.NetIncome = st.TotalEarnings.Sub(st.TotalExpenses)
	return st
}
