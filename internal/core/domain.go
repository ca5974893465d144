package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	OneOff    GigType = "one_off"
	Recurring GigType = "recurring"
)

const (
	// PatternWeekly is the descriptor stored for weekday-set recurrences.
	PatternWeekly = "weekly"
	// legacyWeeklyPrefix is the single-weekday form, e.g. "weekly_1" for Mondays.
	legacyWeeklyPrefix = "weekly_"
)

type (
	Status string

	GigType string

	Place struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Gig struct {
		ID          int64   `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description,omitempty"`
		Amount      Money   `json:"amount"`
		Date        Date    `json:"date"` // anchor date
		Status      Status  `json:"status"`
		PlaceID     int64   `json:"place_id,omitempty"`
		Place       string  `json:"place"`
		Type        GigType `json:"gig_type"`

		// Recurrence fields, ignored for one-off gigs.
		RecurringEndDate Date       `json:"recurring_end_date,omitzero"`
		Weekdays         WeekdaySet `json:"weekdays,omitempty"`
		Pattern          string     `json:"recurring_pattern,omitempty"`

		CreatedAt time.Time `json:"created_at,omitzero"`
		UpdatedAt time.Time `json:"updated_at,omitzero"`
	}

	// Override is a per-date exception to a recurring gig's default terms.
	// A nil Amount means "use the gig's amount".
	Override struct {
		GigID     int64     `json:"gig_id"`
		Date      Date      `json:"date"`
		Status    Status    `json:"status"`
		Amount    *Money    `json:"amount"`
		Notes     string    `json:"notes"`
		UpdatedAt time.Time `json:"updated_at,omitzero"`
	}

	// ResolvedOccurrence is the effective view of one dated instance of a gig.
	ResolvedOccurrence struct {
		Date       Date   `json:"date"`
		Status     Status `json:"status"`
		Amount     Money  `json:"amount"`
		Notes      string `json:"notes"`
		Overridden bool   `json:"overridden"`
	}

	Expense struct {
		ID          int64  `json:"id"`
		GigID       *int64 `json:"gig_id,omitempty"`
		GigTitle    string `json:"gig_title,omitempty"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Category    string `json:"category,omitempty"`
	}
)

// MaxRecurrenceDays bounds the anchor-to-end span of a recurring gig, about
// ten years, so expanding a series stays finite in practice.
const MaxRecurrenceDays = 3660

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidGigType   = errors.New("invalid gig type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyWeekdays    = errors.New("recurring gig needs at least one weekday")
	ErrEndBeforeAnchor  = errors.New("recurrence end date is before the anchor date")
	ErrNotAnOccurrence  = errors.New("date is not an occurrence of the gig")
	ErrTooLong          = errors.New("too long")
	ErrMissingGigID     = errors.New("missing gig id")
)

// ParseStatus validates a status string. Blank input means pending.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusPending, nil
	case StatusPending, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseGigType validates a gig type string. Blank input means one-off.
func ParseGigType(s string) (GigType, error) {
	switch t := GigType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return OneOff, nil
	case OneOff, Recurring:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGigType, s)
	}
}

// LegacyPatternWeekday extracts N from a "weekly_N" descriptor.
func LegacyPatternWeekday(pattern string) (time.Weekday, bool) {
	if !strings.HasPrefix(pattern, legacyWeeklyPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(pattern, legacyWeeklyPrefix))
	if err != nil || n < 0 || n > 6 {
		return 0, false
	}
	return time.Weekday(n), true
}

// EffectiveWeekdays returns the weekday set, falling back to the legacy
// single-weekday pattern when the set is empty.
func (g Gig) EffectiveWeekdays() WeekdaySet {
	if !g.Weekdays.IsEmpty() {
		return g.Weekdays
	}
	if d, ok := LegacyPatternWeekday(g.Pattern); ok {
		return NewWeekdaySet(d)
	}
	return 0
}

// Validate checks the gig invariants. Recurrence fields are only checked
// for recurring gigs.
func (g Gig) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if len(g.Title) > 200 {
		return fmt.Errorf("%w: title (max 200 characters)", ErrTooLong)
	}
	if err := g.Amount.Validate(); err != nil {
		return err
	}
	if g.Date.IsZero() {
		return fmt.Errorf("%w: missing gig date", ErrInvalidDate)
	}
	if !g.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, g.Status)
	}
	switch g.Type {
	case OneOff, "":
		return nil
	case Recurring:
		if g.EffectiveWeekdays().IsEmpty() {
			return ErrEmptyWeekdays
		}
		if g.RecurringEndDate.IsZero() {
			return fmt.Errorf("%w: missing recurrence end date", ErrInvalidDate)
		}
		if g.RecurringEndDate.Before(g.Date) {
			return ErrEndBeforeAnchor
		}
		if g.Date.DaysUntil(g.RecurringEndDate) > MaxRecurrenceDays {
			return fmt.Errorf("%w: recurrence spans more than %d days", ErrInvalidDate, MaxRecurrenceDays)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidGigType, g.Type)
	}
}

// Validate checks an override before it is written.
func (o Override) Validate() error {
	if o.GigID <= 0 {
		return ErrMissingGigID
	}
	if o.Date.IsZero() {
		return fmt.Errorf("%w: missing override date", ErrInvalidDate)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if o.Amount != nil && o.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w: description (max 200 characters)", ErrTooLong)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing expense date", ErrInvalidDate)
	}
	return nil
}
