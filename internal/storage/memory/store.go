// Package memory is an in-process ports.Store used by tests and by the
// "memory" data backend. It enforces the same uniqueness and foreign key
// rules as the SQLite schema.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gigtracker/internal/core"
)

// ErrReferenced mirrors SQLite's foreign key failure when a gig that still
// has overrides is deleted.
var ErrReferenced = errors.New("FOREIGN KEY constraint failed")

type overrideKey struct {
	gigID int64
	date  core.Date
}

type Store struct {
	mu sync.Mutex
	// Per-table sequences, like SQLite rowids.
	seq       map[string]int64
	places    map[string]core.Place
	gigs      map[int64]core.Gig
	overrides map[overrideKey]core.Override
	expenses  []core.Expense
}

func New() *Store {
	return &Store{
		seq:       map[string]int64{},
		places:    map[string]core.Place{},
		gigs:      map[int64]core.Gig{},
		overrides: map[overrideKey]core.Override{},
	}
}

func (s *Store) id(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetOrCreatePlace(_ context.Context, name string) (core.Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Place{}, errors.New("empty place name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.places[name]; ok {
		return p, nil
	}
	p := core.Place{ID: s.id("gig_places"), Name: name}
	s.places[name] = p
	return p, nil
}

func (s *Store) ListPlaces(context.Context) ([]core.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Place, 0, len(s.places))
	for _, p := range s.places {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateGig(_ context.Context, g core.Gig) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id("gigs")
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt
	s.gigs[g.ID] = g
	return g.ID, nil
}

func (s *Store) GetGig(_ context.Context, id int64) (core.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[id]
	if !ok {
		return core.Gig{}, fmt.Errorf("gig %d: %w", id, core.ErrNotFound)
	}
	return g, nil
}

func (s *Store) ListGigs(context.Context) ([]core.Gig, error) {
	return s.listGigs(func(core.Gig) bool { return true }), nil
}

func (s *Store) ListGigsByType(_ context.Context, t core.GigType) ([]core.Gig, error) {
	return s.listGigs(func(g core.Gig) bool {
		if g.Type == core.Recurring {
			return t == core.Recurring
		}
		return t != core.Recurring
	}), nil
}

// listGigs returns matching gigs ordered by date then id, like the SQL queries.
func (s *Store) listGigs(keep func(core.Gig) bool) []core.Gig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Gig, 0, len(s.gigs))
	for _, g := range s.gigs {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) UpdateGig(_ context.Context, g core.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.gigs[g.ID]
	if !ok {
		return fmt.Errorf("gig %d: %w", g.ID, core.ErrNotFound)
	}
	g.CreatedAt = cur.CreatedAt
	g.UpdatedAt = time.Now().UTC()
	s.gigs[g.ID] = g
	return nil
}

func (s *Store) DeleteGig(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gigs[id]; !ok {
		return fmt.Errorf("gig %d: %w", id, core.ErrNotFound)
	}
	for k := range s.overrides {
		if k.gigID == id {
			return fmt.Errorf("delete gig %d: %w", id, ErrReferenced)
		}
	}
	delete(s.gigs, id)
	for i := range s.expenses {
		if e := s.expenses[i]; e.GigID != nil && *e.GigID == id {
			s.expenses[i].GigID = nil
		}
	}
	return nil
}

func (s *Store) GetOverride(_ context.Context, gigID int64, date core.Date) (core.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[overrideKey{gigID, date}]
	if !ok {
		return core.Override{}, fmt.Errorf("override %d/%s: %w", gigID, date, core.ErrNotFound)
	}
	return o, nil
}

func (s *Store) ListOverrides(_ context.Context, gigID int64) ([]core.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Override
	for k, o := range s.overrides {
		if k.gigID == gigID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpsertOverride(_ context.Context, o core.Override) (core.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gigs[o.GigID]; !ok {
		return core.Override{}, fmt.Errorf("upsert override for gig %d: %w", o.GigID, ErrReferenced)
	}
	if o.Amount != nil {
		amount := *o.Amount
		o.Amount = &amount
	}
	o.UpdatedAt = time.Now().UTC()
	s.overrides[overrideKey{o.GigID, o.Date}] = o
	return o, nil
}

func (s *Store) DeleteOverride(_ context.Context, gigID int64, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := overrideKey{gigID, date}
	if _, ok := s.overrides[k]; !ok {
		return fmt.Errorf("override %d/%s: %w", gigID, date, core.ErrNotFound)
	}
	delete(s.overrides, k)
	return nil
}

func (s *Store) DeleteOverridesForGig(_ context.Context, gigID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.overrides {
		if k.gigID == gigID {
			delete(s.overrides, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.GigID != nil {
		if _, ok := s.gigs[*e.GigID]; !ok {
			return 0, fmt.Errorf("create expense for gig %d: %w", *e.GigID, ErrReferenced)
		}
		gigID := *e.GigID
		e.GigID = &gigID
	}
	e.ID = s.id("expenses")
	s.expenses = append(s.expenses, e)
	return e.ID, nil
}

func (s *Store) ListExpenses(context.Context) ([]core.Expense, error) {
	return s.listExpenses(func(core.Expense) bool { return true }), nil
}

func (s *Store) ListExpensesByGig(_ context.Context, gigID int64) ([]core.Expense, error) {
	return s.listExpenses(func(e core.Expense) bool { return e.GigID != nil && *e.GigID == gigID }), nil
}

// listExpenses returns newest first and fills in the linked gig's title.
func (s *Store) listExpenses(keep func(core.Expense) bool) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if !keep(e) {
			continue
		}
		e.GigTitle = ""
		if e.GigID != nil {
			e.GigTitle = s.gigs[*e.GigID].Title
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c > 0
		}
		return out[i].ID > out[j].ID
	})
	return out
}
