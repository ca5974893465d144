package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gigtracker/internal/core"
	"gigtracker/internal/ports"
	"gigtracker/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.GigEvent
	err    error
}

func (p *recordingPublisher) PublishGigEvent(_ context.Context, ev ports.GigEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) ops() []ports.GigEventOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ports.GigEventOp, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Op
	}
	return out
}

// failingStore fails ListOverrides for one gig id.
type failingStore struct {
	*memory.Store
	failFor int64
}

func (s failingStore) ListOverrides(ctx context.Context, gigID int64) ([]core.Override, error) {
	if gigID == s.failFor {
		return nil, errors.New("disk on fire")
	}
	return s.Store.ListOverrides(ctx, gigID)
}

// orderRecordingStore records the order in which deletions reach the store.
type orderRecordingStore struct {
	*memory.Store
	calls []string
}

func (s *orderRecordingStore) DeleteOverridesForGig(ctx context.Context, gigID int64) (int64, error) {
	s.calls = append(s.calls, "overrides")
	return s.Store.DeleteOverridesForGig(ctx, gigID)
}

func (s *orderRecordingStore) DeleteGig(ctx context.Context, id int64) error {
	s.calls = append(s.calls, "gig")
	return s.Store.DeleteGig(ctx, id)
}

func newService(t *testing.T) (*GigService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewGigService(memory.New(), pub, 4), pub
}

func createMondays(t *testing.T, svc *GigService) core.Gig {
	t.Helper()
	g, err := svc.CreateGig(context.Background(), core.Gig{
		Title:            " Monday residency ",
		Amount:           core.Money{Cents: 4000},
		Date:             core.NewDate(2024, 1, 1),
		Place:            "Blue Note",
		Type:             core.Recurring,
		RecurringEndDate: core.NewDate(2024, 1, 31),
		Weekdays:         core.NewWeekdaySet(time.Monday),
	})
	if err != nil {
		t.Fatalf("CreateGig: %v", err)
	}
	return g
}

func TestGigService_CreateGigNormalizes(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	g := createMondays(t, svc)
	if g.ID == 0 || g.Title != "Monday residency" || g.Status != core.StatusPending {
		t.Errorf("created gig = %+v", g)
	}
	if g.PlaceID == 0 || g.Place != "Blue Note" {
		t.Errorf("place = %d %q", g.PlaceID, g.Place)
	}
	if g.Pattern != core.PatternWeekly {
		t.Errorf("pattern = %q, want weekly", g.Pattern)
	}

	legacy, err := svc.CreateGig(ctx, core.Gig{
		Title:            "Legacy",
		Amount:           core.Money{Cents: 100},
		Date:             core.NewDate(2024, 1, 1),
		Type:             core.Recurring,
		RecurringEndDate: core.NewDate(2024, 1, 31),
		Pattern:          "weekly_3",
	})
	if err != nil {
		t.Fatalf("CreateGig legacy: %v", err)
	}
	if legacy.Weekdays != core.NewWeekdaySet(time.Wednesday) {
		t.Errorf("legacy weekdays = %s, want 3", legacy.Weekdays)
	}

	single, err := svc.CreateGig(ctx, core.Gig{
		Title:            "Wedding",
		Amount:           core.Money{Cents: 50000},
		Date:             core.NewDate(2024, 6, 1),
		RecurringEndDate: core.NewDate(2024, 7, 1),
		Weekdays:         core.NewWeekdaySet(time.Monday),
	})
	if err != nil {
		t.Fatalf("CreateGig one-off: %v", err)
	}
	if single.Type != core.OneOff || !single.RecurringEndDate.IsZero() || !single.Weekdays.IsEmpty() {
		t.Errorf("one-off kept recurrence fields: %+v", single)
	}

	if got := len(pub.ops()); got != 3 {
		t.Errorf("published %d events, want 3", got)
	}
}

func TestGigService_CreateGigValidation(t *testing.T) {
	svc, _ := newService(t)
	base := core.Gig{Title: "x", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1), Type: core.Recurring, RecurringEndDate: core.NewDate(2024, 1, 31), Weekdays: core.NewWeekdaySet(time.Monday)}

	tests := []struct {
		name   string
		mutate func(*core.Gig)
		want   error
	}{
		{"empty title", func(g *core.Gig) { g.Title = " " }, core.ErrEmptyTitle},
		{"zero amount", func(g *core.Gig) { g.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"no weekdays", func(g *core.Gig) { g.Weekdays = 0 }, core.ErrEmptyWeekdays},
		{"end before anchor", func(g *core.Gig) { g.RecurringEndDate = core.NewDate(2023, 12, 1) }, core.ErrEndBeforeAnchor},
		{"span over ten years", func(g *core.Gig) { g.RecurringEndDate = core.NewDate(2034, 6, 1) }, core.ErrInvalidDate},
		{"unknown type", func(g *core.Gig) { g.Type = "fortnightly" }, core.ErrInvalidGigType},
		{"bad status", func(g *core.Gig) { g.Status = "done" }, core.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base
			tt.mutate(&g)
			_, err := svc.CreateGig(context.Background(), g)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !IsValidationError(err) {
				t.Errorf("IsValidationError(%v) = false", err)
			}
		})
	}
}

func TestGigService_DeleteGigRemovesOverridesFirst(t *testing.T) {
	store := &orderRecordingStore{Store: memory.New()}
	svc := NewGigService(store, nil, 0)
	ctx := context.Background()
	g := createMondays(t, svc)

	for _, d := range []core.Date{core.NewDate(2024, 1, 8), core.NewDate(2024, 1, 15)} {
		if _, err := svc.SetOverride(ctx, g.ID, d, core.StatusCompleted, nil, ""); err != nil {
			t.Fatalf("SetOverride: %v", err)
		}
	}
	if err := svc.DeleteGig(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGig: %v", err)
	}
	if len(store.calls) != 2 || store.calls[0] != "overrides" || store.calls[1] != "gig" {
		t.Errorf("call order = %v", store.calls)
	}
	if _, err := svc.GetGig(ctx, g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetGig after delete = %v", err)
	}
	if err := svc.DeleteGig(ctx, g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteGig = %v, want ErrNotFound", err)
	}
}

func TestGigService_SetOverride(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()
	g := createMondays(t, svc)

	if _, err := svc.SetOverride(ctx, g.ID, core.NewDate(2024, 1, 9), core.StatusCompleted, nil, ""); !errors.Is(err, core.ErrNotAnOccurrence) {
		t.Errorf("tuesday override error = %v, want ErrNotAnOccurrence", err)
	}
	if _, err := svc.SetOverride(ctx, 999, core.NewDate(2024, 1, 8), core.StatusCompleted, nil, ""); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown gig error = %v, want ErrNotFound", err)
	}

	d := core.NewDate(2024, 1, 8)
	if _, err := svc.SetOverride(ctx, g.ID, d, core.StatusCancelled, money(1000), "flu"); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if _, err := svc.SetOverride(ctx, g.ID, d, core.StatusCompleted, money(5000), ""); err != nil {
		t.Fatalf("SetOverride again: %v", err)
	}
	o, err := svc.GetOverride(ctx, g.ID, d)
	if err != nil {
		t.Fatalf("GetOverride: %v", err)
	}
	if o.Status != core.StatusCompleted || o.Amount.Cents != 5000 || o.Notes != "" {
		t.Errorf("override = %+v", o)
	}

	occs, err := svc.Occurrences(ctx, g.ID)
	if err != nil {
		t.Fatalf("Occurrences: %v", err)
	}
	if len(occs) != 5 || occs[1].Status != core.StatusCompleted || occs[1].Amount.Cents != 5000 {
		t.Errorf("occurrences = %+v", occs)
	}

	deleted, err := svc.DeleteOverride(ctx, g.ID, d)
	if err != nil || !deleted {
		t.Fatalf("DeleteOverride = %v, %v", deleted, err)
	}
	deleted, err = svc.DeleteOverride(ctx, g.ID, d)
	if err != nil || deleted {
		t.Errorf("second DeleteOverride = %v, %v; want false, nil", deleted, err)
	}
	if _, err := svc.GetOverride(ctx, g.ID, d); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetOverride after delete = %v", err)
	}

	want := []ports.GigEventOp{ports.OpGigUpserted, ports.OpOverrideSet, ports.OpOverrideSet, ports.OpOverrideDeleted}
	got := pub.ops()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGigService_SetOverrideRejectsOneOff(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGig(ctx, core.Gig{Title: "Gala", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 3, 3)})
	if err != nil {
		t.Fatalf("CreateGig: %v", err)
	}
	if _, err := svc.SetOverride(ctx, g.ID, g.Date, core.StatusCompleted, nil, ""); !errors.Is(err, core.ErrNotAnOccurrence) {
		t.Errorf("error = %v, want ErrNotAnOccurrence", err)
	}
}

func TestGigService_CompleteOccurrencePropagates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGig(ctx, core.Gig{
		Title:            "Two mondays",
		Amount:           core.Money{Cents: 4000},
		Date:             core.NewDate(2024, 1, 1),
		Type:             core.Recurring,
		RecurringEndDate: core.NewDate(2024, 1, 8),
		Weekdays:         core.NewWeekdaySet(time.Monday),
	})
	if err != nil {
		t.Fatalf("CreateGig: %v", err)
	}
	first, second := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 8)
	if _, err := svc.SetOverride(ctx, g.ID, first, core.StatusPending, money(4500), "bring amp"); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	updated, occ, err := svc.CompleteOccurrence(ctx, g.ID, first)
	if err != nil {
		t.Fatalf("CompleteOccurrence: %v", err)
	}
	if occ.Status != core.StatusCompleted || occ.Amount.Cents != 4500 || occ.Notes != "bring amp" {
		t.Errorf("occurrence = %+v", occ)
	}
	if updated.Status != core.StatusPending {
		t.Errorf("gig status after first = %q, want pending", updated.Status)
	}

	updated, occ, err = svc.CompleteOccurrence(ctx, g.ID, second)
	if err != nil {
		t.Fatalf("CompleteOccurrence: %v", err)
	}
	if occ.Amount.Cents != 4000 {
		t.Errorf("second amount = %d, want gig amount 4000", occ.Amount.Cents)
	}
	if updated.Status != core.StatusCompleted {
		t.Errorf("gig status after last = %q, want completed", updated.Status)
	}
	stored, err := svc.GetGig(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGig: %v", err)
	}
	if stored.Status != core.StatusCompleted {
		t.Errorf("stored status = %q, want completed", stored.Status)
	}

	if _, _, err := svc.CompleteOccurrence(ctx, g.ID, core.NewDate(2024, 1, 2)); !errors.Is(err, core.ErrNotAnOccurrence) {
		t.Errorf("non-occurrence error = %v", err)
	}
}

func TestGigService_CompleteOneOff(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g, err := svc.CreateGig(ctx, core.Gig{Title: "Gala", Amount: core.Money{Cents: 10000}, Date: core.NewDate(2024, 3, 3)})
	if err != nil {
		t.Fatalf("CreateGig: %v", err)
	}
	updated, occ, err := svc.CompleteOccurrence(ctx, g.ID, g.Date)
	if err != nil {
		t.Fatalf("CompleteOccurrence: %v", err)
	}
	if updated.Status != core.StatusCompleted || occ.Status != core.StatusCompleted || occ.Amount.Cents != 10000 {
		t.Errorf("gig = %+v, occ = %+v", updated, occ)
	}
	list, err := svc.ListOverrides(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("one-off completion wrote overrides: %+v", list)
	}
}

func TestGigService_LoadOverridesFailsWhole(t *testing.T) {
	mem := memory.New()
	good := NewGigService(mem, nil, 2)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		g := createMondays(t, good)
		if _, err := good.SetOverride(ctx, g.ID, core.NewDate(2024, 1, 8), core.StatusCompleted, nil, ""); err != nil {
			t.Fatalf("SetOverride: %v", err)
		}
		ids = append(ids, g.ID)
	}

	gigs, err := good.ListGigs(ctx)
	if err != nil {
		t.Fatalf("ListGigs: %v", err)
	}
	all, err := good.LoadOverrides(ctx, gigs)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("loaded overrides for %d gigs, want 5", len(all))
	}
	for _, id := range ids {
		if len(all[id]) != 1 {
			t.Errorf("gig %d has %d overrides, want 1", id, len(all[id]))
		}
	}

	bad := NewGigService(failingStore{Store: mem, failFor: ids[3]}, nil, 2)
	got, err := bad.LoadOverrides(ctx, gigs)
	if err == nil {
		t.Fatal("LoadOverrides should fail")
	}
	if got != nil {
		t.Errorf("partial result returned: %v", got)
	}
	if _, err := bad.DailyEarnings(ctx, Selector{}); err == nil {
		t.Error("DailyEarnings should surface the fetch failure")
	}
}

func TestGigService_DailyEarningsAndStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	g := createMondays(t, svc)
	if _, err := svc.SetOverride(ctx, g.ID, core.NewDate(2024, 1, 8), core.StatusCompleted, money(5000), ""); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if _, err := svc.CreateExpense(ctx, core.Expense{GigID: &g.ID, Description: "Taxi", Amount: core.Money{Cents: 1200}, Date: core.NewDate(2024, 1, 8)}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	days, err := svc.DailyEarnings(ctx, NewRangeSelector(core.NewDate(2024, 1, 7), core.NewDate(2024, 1, 9)))
	if err != nil {
		t.Fatalf("DailyEarnings: %v", err)
	}
	if len(days) != 1 || days[0].Amount.Cents != 5000 || days[0].Status != core.StatusCompleted {
		t.Errorf("days = %+v", days)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalEarnings.Cents != 5000 || st.TotalExpenses.Cents != 1200 || st.NetIncome.Cents != 3800 {
		t.Errorf("stats = %+v", st)
	}

	byGig, err := svc.ListExpensesByGig(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListExpensesByGig: %v", err)
	}
	if len(byGig) != 1 || byGig[0].GigTitle != "Monday residency" {
		t.Errorf("expenses = %+v", byGig)
	}
}

func TestGigService_GigsFor(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	createMondays(t, svc)
	if _, err := svc.CreateGig(ctx, core.Gig{Title: "Gala", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 8)}); err != nil {
		t.Fatalf("CreateGig: %v", err)
	}

	tests := []struct {
		name    string
		gigType core.GigType
		sel     Selector
		want    int
	}{
		{"all types on a shared day", "", NewDateSelector(core.NewDate(2024, 1, 8)), 2},
		{"recurring only", core.Recurring, NewDateSelector(core.NewDate(2024, 1, 8)), 1},
		{"one-off only over a range", core.OneOff, NewRangeSelector(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)), 1},
		{"nothing on a tuesday", "", NewDateSelector(core.NewDate(2024, 1, 9)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.GigsFor(ctx, tt.gigType, tt.sel)
			if err != nil {
				t.Fatalf("GigsFor: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d gigs, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := svc.GigsFor(ctx, "weird", Selector{}); !errors.Is(err, core.ErrInvalidGigType) {
		t.Errorf("unknown type error = %v", err)
	}
}

func TestGigService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewGigService(memory.New(), pub, 0)
	if _, err := svc.CreateGig(context.Background(), core.Gig{Title: "Gala", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 3, 3)}); err != nil {
		t.Fatalf("CreateGig: %v", err)
	}
	if len(pub.ops()) != 1 {
		t.Errorf("publish attempts = %d, want 1", len(pub.ops()))
	}
}
