package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"gigtracker/internal/core"
	"gigtracker/internal/ports"
)

// DefaultFetchConcurrency bounds the override fan-out when none is configured.
const DefaultFetchConcurrency = 8

// GigService orchestrates gig, override and expense operations over a store
// and announces every successful write on the optional publisher.
type GigService struct {
	store            ports.Store
	overrides        *OverrideAdapter
	publisher        ports.EventPublisher
	fetchConcurrency int
}

// Snapshot is every gig with its overrides, joined by gig id.
type Snapshot struct {
	Gigs      []core.Gig
	Overrides map[int64]map[core.Date]core.Override
}

func NewGigService(store ports.Store, publisher ports.EventPublisher, fetchConcurrency int) *GigService {
	if fetchConcurrency <= 0 {
		fetchConcurrency = DefaultFetchConcurrency
	}
	return &GigService{
		store:            store,
		overrides:        NewOverrideAdapter(store),
		publisher:        publisher,
		fetchConcurrency: fetchConcurrency,
	}
}

// Overrides exposes the date-keyed override adapter.
func (s *GigService) Overrides() *OverrideAdapter { return s.overrides }

// CreateGig validates and stores a new gig, creating its place on first use.
func (s *GigService) CreateGig(ctx context.Context, g core.Gig) (core.Gig, error) {
	g, err := s.prepare(ctx, g)
	if err != nil {
		return core.Gig{}, err
	}
	id, err := s.store.CreateGig(ctx, g)
	if err != nil {
		return core.Gig{}, fmt.Errorf("create gig: %w", err)
	}
	slog.InfoContext(ctx, "Gig created", "gig_id", id, "gig_type", g.Type, "amount_cents", g.Amount.Cents)
	s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpGigUpserted})
	return s.GetGig(ctx, id)
}

// UpdateGig replaces an existing gig's fields. Overrides are left alone;
// those no longer matching an occurrence are ignored by resolution.
func (s *GigService) UpdateGig(ctx context.Context, g core.Gig) (core.Gig, error) {
	if _, err := s.GetGig(ctx, g.ID); err != nil {
		return core.Gig{}, err
	}
	g, err := s.prepare(ctx, g)
	if err != nil {
		return core.Gig{}, err
	}
	if err := s.store.UpdateGig(ctx, g); err != nil {
		return core.Gig{}, fmt.Errorf("update gig %d: %w", g.ID, err)
	}
	s.publish(ctx, ports.GigEvent{GigID: g.ID, Op: ports.OpGigUpserted})
	return s.GetGig(ctx, g.ID)
}

// prepare normalizes a gig before it is written: defaults, legacy weekday
// pattern, cleared recurrence fields for one-off gigs, place lookup.
func (s *GigService) prepare(ctx context.Context, g core.Gig) (core.Gig, error) {
	g.Title = strings.TrimSpace(g.Title)
	g.Place = strings.TrimSpace(g.Place)
	if g.Status == "" {
		g.Status = core.StatusPending
	}
	if g.Type == "" {
		g.Type = core.OneOff
	}
	switch g.Type {
	case core.Recurring:
		g.Weekdays = g.EffectiveWeekdays()
		if !g.Weekdays.IsEmpty() {
			g.Pattern = core.PatternWeekly
		}
	case core.OneOff:
		g.RecurringEndDate = core.Date{}
		g.Weekdays = 0
		g.Pattern = ""
	}
	if err := g.Validate(); err != nil {
		return core.Gig{}, err
	}
	g.PlaceID = 0
	if g.Place != "" {
		p, err := s.store.GetOrCreatePlace(ctx, g.Place)
		if err != nil {
			return core.Gig{}, fmt.Errorf("get or create place %q: %w", g.Place, err)
		}
		g.PlaceID = p.ID
		g.Place = p.Name
	}
	return g, nil
}

func (s *GigService) GetGig(ctx context.Context, id int64) (core.Gig, error) {
	g, err := s.store.GetGig(ctx, id)
	if err != nil {
		return core.Gig{}, fmt.Errorf("get gig %d: %w", id, err)
	}
	return g, nil
}

func (s *GigService) ListGigs(ctx context.Context) ([]core.Gig, error) {
	gigs, err := s.store.ListGigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gigs: %w", err)
	}
	return gigs, nil
}

func (s *GigService) ListGigsByType(ctx context.Context, t core.GigType) ([]core.Gig, error) {
	if _, err := GetOccurrenceStrategy(t); err != nil {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidGigType, t)
	}
	gigs, err := s.store.ListGigsByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list %s gigs: %w", t, err)
	}
	return gigs, nil
}

// GigsFor lists gigs of an optional type that occur on the selected day or
// range. An empty type means every type.
func (s *GigService) GigsFor(ctx context.Context, t core.GigType, sel Selector) ([]core.Gig, error) {
	var (
		gigs []core.Gig
		err  error
	)
	if t == "" {
		gigs, err = s.ListGigs(ctx)
	} else {
		gigs, err = s.ListGigsByType(ctx, t)
	}
	if err != nil {
		return nil, err
	}
	return FilterByDateOrRange(gigs, sel), nil
}

// DeleteGig removes a gig's overrides and then the gig. Re-running after a
// partial failure is safe because override deletion is idempotent.
func (s *GigService) DeleteGig(ctx context.Context, id int64) error {
	if _, err := s.GetGig(ctx, id); err != nil {
		return err
	}
	n, err := s.overrides.DeleteAll(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGig(ctx, id); err != nil {
		return fmt.Errorf("delete gig %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Gig deleted", "gig_id", id, "overrides_deleted", n)
	s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpGigDeleted})
	return nil
}

// LoadOverrides fetches the overrides of every recurring gig concurrently.
// Any failure aborts the whole load and no partial result is returned.
func (s *GigService) LoadOverrides(ctx context.Context, gigs []core.Gig) (map[int64]map[core.Date]core.Override, error) {
	results := make([]map[core.Date]core.Override, len(gigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, gig := range gigs {
		if Classify(gig) != core.Recurring {
			continue
		}
		g.Go(func() error {
			m, err := s.overrides.All(gctx, gig.ID)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	out := make(map[int64]map[core.Date]core.Override, len(gigs))
	for i, gig := range gigs {
		if results[i] != nil {
			out[gig.ID] = results[i]
		}
	}
	return out, nil
}

// Snapshot loads every gig and its overrides.
func (s *GigService) Snapshot(ctx context.Context) (Snapshot, error) {
	gigs, err := s.ListGigs(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	overrides, err := s.LoadOverrides(ctx, gigs)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Gigs: gigs, Overrides: overrides}, nil
}

// Occurrences resolves every occurrence of one gig.
func (s *GigService) Occurrences(ctx context.Context, id int64) ([]core.ResolvedOccurrence, error) {
	g, err := s.GetGig(ctx, id)
	if err != nil {
		return nil, err
	}
	var overrides map[core.Date]core.Override
	if Classify(g) == core.Recurring {
		if overrides, err = s.overrides.All(ctx, id); err != nil {
			return nil, err
		}
	}
	return StrategyFor(g).Resolve(g, overrides), nil
}

// ListOverrides returns a gig's overrides in date order.
func (s *GigService) ListOverrides(ctx context.Context, id int64) ([]core.Override, error) {
	if _, err := s.GetGig(ctx, id); err != nil {
		return nil, err
	}
	m, err := s.overrides.All(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]core.Override, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetOverride returns core.ErrNotFound when the date has no override.
func (s *GigService) GetOverride(ctx context.Context, id int64, date core.Date) (core.Override, error) {
	o, ok, err := s.overrides.Get(ctx, id, date)
	if err != nil {
		return core.Override{}, err
	}
	if !ok {
		return core.Override{}, fmt.Errorf("override %d/%s: %w", id, date, core.ErrNotFound)
	}
	return o, nil
}

// SetOverride upserts an override on a date that is an occurrence of a
// recurring gig.
func (s *GigService) SetOverride(ctx context.Context, id int64, date core.Date, status core.Status, amount *core.Money, notes string) (core.Override, error) {
	g, err := s.occurrenceOf(ctx, id, date)
	if err != nil {
		return core.Override{}, err
	}
	if Classify(g) != core.Recurring {
		return core.Override{}, fmt.Errorf("%w: gig %d is not recurring", core.ErrNotAnOccurrence, id)
	}
	o, err := s.overrides.Set(ctx, id, date, status, amount, notes)
	if err != nil {
		return core.Override{}, err
	}
	s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpOverrideSet, Date: date})
	return o, nil
}

// DeleteOverride removes an override; deleted is false when none existed.
func (s *GigService) DeleteOverride(ctx context.Context, id int64, date core.Date) (bool, error) {
	deleted, err := s.overrides.Delete(ctx, id, date)
	if err != nil {
		return false, err
	}
	if deleted {
		s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpOverrideDeleted, Date: date})
	}
	return deleted, nil
}

// CompleteOccurrence marks one occurrence completed and propagates the
// result to the parent gig.
//
// For a recurring gig a completed override is written carrying the
// occurrence's effective amount and existing notes; once no occurrence of the
// gig is still pending the gig itself becomes completed. A one-off gig is
// completed directly.
func (s *GigService) CompleteOccurrence(ctx context.Context, id int64, date core.Date) (core.Gig, core.ResolvedOccurrence, error) {
	g, err := s.occurrenceOf(ctx, id, date)
	if err != nil {
		return core.Gig{}, core.ResolvedOccurrence{}, err
	}

	if Classify(g) != core.Recurring {
		g.Status = core.StatusCompleted
		if err := s.store.UpdateGig(ctx, g); err != nil {
			return core.Gig{}, core.ResolvedOccurrence{}, fmt.Errorf("complete gig %d: %w", id, err)
		}
		s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpGigUpserted})
		return g, StrategyFor(g).Resolve(g, nil)[0], nil
	}

	overrides, err := s.overrides.All(ctx, id)
	if err != nil {
		return core.Gig{}, core.ResolvedOccurrence{}, err
	}
	current := ResolveOn(g, date, overrides)
	amount := current.Amount
	o, err := s.overrides.Set(ctx, id, date, core.StatusCompleted, &amount, current.Notes)
	if err != nil {
		return core.Gig{}, core.ResolvedOccurrence{}, err
	}
	s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpOverrideSet, Date: date})
	overrides[date] = o

	if g.Status != core.StatusCompleted && !anyPending(Resolve(g, overrides)) {
		g.Status = core.StatusCompleted
		if err := s.store.UpdateGig(ctx, g); err != nil {
			return core.Gig{}, core.ResolvedOccurrence{}, fmt.Errorf("propagate completion to gig %d: %w", id, err)
		}
		slog.InfoContext(ctx, "Recurring gig completed", "gig_id", id, "date", date.String())
		s.publish(ctx, ports.GigEvent{GigID: id, Op: ports.OpGigUpserted})
	}
	return g, ResolveOn(g, date, overrides), nil
}

func anyPending(occs []core.ResolvedOccurrence) bool {
	for _, o := range occs {
		if o.Status == core.StatusPending {
			return true
		}
	}
	return false
}

// occurrenceOf loads the gig and checks that date is one of its occurrences.
func (s *GigService) occurrenceOf(ctx context.Context, id int64, date core.Date) (core.Gig, error) {
	g, err := s.GetGig(ctx, id)
	if err != nil {
		return core.Gig{}, err
	}
	if !StrategyFor(g).OccursOn(g, date) {
		return core.Gig{}, fmt.Errorf("%w: gig %d on %s", core.ErrNotAnOccurrence, id, date)
	}
	return g, nil
}

// DailyEarnings aggregates every gig by day and lists the days in sel.
func (s *GigService) DailyEarnings(ctx context.Context, sel Selector) ([]core.DayEarning, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return DailyEarnings(AggregateByDay(snap.Gigs, snap.Overrides), sel), nil
}

func (s *GigService) Stats(ctx context.Context) (core.Stats, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	expenses, err := s.ListExpenses(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	return ComputeStats(snap.Gigs, snap.Overrides, expenses), nil
}

func (s *GigService) ListPlaces(ctx context.Context) ([]core.Place, error) {
	places, err := s.store.ListPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	return places, nil
}

// CreateExpense stores an expense, optionally linked to an existing gig.
func (s *GigService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	var gigID int64
	if e.GigID != nil {
		g, err := s.GetGig(ctx, *e.GigID)
		if err != nil {
			return core.Expense{}, err
		}
		gigID = g.ID
		e.GigTitle = g.Title
	}
	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID = id
	s.publish(ctx, ports.GigEvent{GigID: gigID, Op: ports.OpExpenseCreated})
	return e, nil
}

func (s *GigService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	list, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

func (s *GigService) ListExpensesByGig(ctx context.Context, gigID int64) ([]core.Expense, error) {
	if _, err := s.GetGig(ctx, gigID); err != nil {
		return nil, err
	}
	list, err := s.store.ListExpensesByGig(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("list expenses for gig %d: %w", gigID, err)
	}
	return list, nil
}

// publish announces a change. The write already succeeded, so a failure is
// logged and swallowed.
func (s *GigService) publish(ctx context.Context, ev ports.GigEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishGigEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish gig event",
			"gig_id", ev.GigID, "op", string(ev.Op), "error", err)
	}
}

// IsValidationError reports whether err is a caller mistake rather than a
// storage failure.
func IsValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidStatus, core.ErrInvalidGigType, core.ErrInvalidDate,
		core.ErrInvalidAmount, core.ErrEmptyTitle, core.ErrEmptyDescription,
		core.ErrEmptyWeekdays, core.ErrEndBeforeAnchor, core.ErrNotAnOccurrence,
		core.ErrTooLong, core.ErrMissingGigID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
