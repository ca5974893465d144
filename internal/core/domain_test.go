package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateParseAndFormat(t *testing.T) {
	d, err := ParseDate("2024-01-08")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2024-01-08" {
		t.Fatalf("got %q", d.String())
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("2024-01-08 should be a Monday, got %v", d.Weekday())
	}

	for _, bad := range []string{"", "2024-13-01", "08/01/2024", "2024-02-30"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateArithmeticAcrossDST(t *testing.T) {
	// 2024-03-10 is the US DST switch and 2024-03-31 the EU one; day steps
	// must stay on calendar boundaries regardless.
	d := MustParseDate("2024-03-09")
	for i := 0; i < 30; i++ {
		next := d.AddDays(1)
		if d.DaysUntil(next) != 1 {
			t.Fatalf("step from %s to %s is not one day", d, next)
		}
		d = next
	}
	if d.String() != "2024-04-08" {
		t.Fatalf("got %s", d)
	}
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	late := time.Date(2024, 1, 1, 23, 30, 0, 0, loc)
	if got := DateOf(late).String(); got != "2024-01-01" {
		t.Fatalf("got %s", got)
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-02-01"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-02-01"}` {
		t.Fatalf("got %s", b)
	}
}

func TestWeekdaySet(t *testing.T) {
	s, err := ParseWeekdaySet("5, 1,3,1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.String() != "1,3,5" || s.Len() != 3 {
		t.Fatalf("got %q len %d", s.String(), s.Len())
	}
	if !s.Contains(time.Wednesday) || s.Contains(time.Sunday) {
		t.Fatalf("membership wrong for %s", s)
	}
	if _, err := ParseWeekdaySet("7"); err == nil {
		t.Fatal("expected error for weekday 7")
	}
	empty, _ := ParseWeekdaySet("")
	if !empty.IsEmpty() {
		t.Fatal("blank input should give the empty set")
	}
}

func TestParseStatusAndType(t *testing.T) {
	if st, err := ParseStatus(""); err != nil || st != StatusPending {
		t.Fatalf("blank status: %v %v", st, err)
	}
	if _, err := ParseStatus("done"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if gt, err := ParseGigType("RECURRING"); err != nil || gt != Recurring {
		t.Fatalf("got %v %v", gt, err)
	}
}

func TestEffectiveWeekdaysLegacyPattern(t *testing.T) {
	g := Gig{Type: Recurring, Pattern: "weekly_2"}
	if got := g.EffectiveWeekdays(); got != NewWeekdaySet(time.Tuesday) {
		t.Fatalf("got %s", got)
	}
	g.Pattern = "weekly_9"
	if !g.EffectiveWeekdays().IsEmpty() {
		t.Fatal("out of range legacy pattern should give the empty set")
	}
}

func TestGigValidate(t *testing.T) {
	good := Gig{
		Title:  "Band practice",
		Amount: Money{Cents: 5000},
		Date:   MustParseDate("2024-01-01"),
		Status: StatusPending,
		Type:   OneOff,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	recurring := good
	recurring.Type = Recurring
	recurring.RecurringEndDate = MustParseDate("2024-01-31")
	recurring.Weekdays = NewWeekdaySet(time.Monday)
	if err := recurring.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	longest := recurring
	longest.RecurringEndDate = longest.Date.AddDays(MaxRecurrenceDays)
	if err := longest.Validate(); err != nil {
		t.Fatalf("span of exactly %d days: expected ok, got %v", MaxRecurrenceDays, err)
	}

	tests := []struct {
		name string
		mut  func(*Gig)
		want error
	}{
		{"empty title", func(g *Gig) { g.Title = " " }, ErrEmptyTitle},
		{"zero amount", func(g *Gig) { g.Amount = Money{} }, ErrInvalidAmount},
		{"missing date", func(g *Gig) { g.Date = Date{} }, ErrInvalidDate},
		{"bad status", func(g *Gig) { g.Status = "done" }, ErrInvalidStatus},
		{"no weekdays", func(g *Gig) { g.Weekdays = 0 }, ErrEmptyWeekdays},
		{"end before anchor", func(g *Gig) { g.RecurringEndDate = MustParseDate("2023-12-31") }, ErrEndBeforeAnchor},
		{"span too long", func(g *Gig) { g.RecurringEndDate = g.Date.AddDays(MaxRecurrenceDays + 1) }, ErrInvalidDate},
		{"bad type", func(g *Gig) { g.Type = "monthly" }, ErrInvalidGigType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := recurring
			tt.mut(&g)
			if err := g.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOverrideValidate(t *testing.T) {
	o := Override{GigID: 1, Date: MustParseDate("2024-01-08"), Status: StatusCompleted}
	if err := o.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	o.Amount = &Money{Cents: -1}
	if err := o.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
