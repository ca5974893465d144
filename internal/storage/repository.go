package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gigtracker/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN returns the connection string for dbPath with foreign keys enforced on
// every pooled connection.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return err
}

func (r *SQLiteRepository) GetOrCreatePlace(ctx context.Context, name string) (core.Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Place{}, errors.New("empty place name")
	}
	p, err := r.queries.UpsertPlace(ctx, name)
	if err != nil {
		return core.Place{}, fmt.Errorf("upsert place: %w", err)
	}
	return core.Place{ID: p.ID, Name: p.Name}, nil
}

func (r *SQLiteRepository) ListPlaces(ctx context.Context) ([]core.Place, error) {
	rows, err := r.queries.ListPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	places := make([]core.Place, len(rows))
	for i, p := range rows {
		places[i] = core.Place{ID: p.ID, Name: p.Name}
	}
	return places, nil
}

func (r *SQLiteRepository) CreateGig(ctx context.Context, g core.Gig) (int64, error) {
	id, err := r.queries.CreateGig(ctx, CreateGigParams{
		Title:            g.Title,
		Description:      g.Description,
		AmountCents:      g.Amount.Cents,
		Date:             g.Date.String(),
		Status:           string(g.Status),
		GigPlaceID:       nullID(g.PlaceID),
		GigType:          string(g.Type),
		RecurringEndDate: nullDate(g.RecurringEndDate),
		Weekdays:         g.Weekdays.String(),
		RecurringPattern: g.Pattern,
		Now:              now(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert gig: %w", err)
	}
	slog.InfoContext(ctx, "Gig saved to SQLite",
		"id", id,
		"title", g.Title,
		"amount_cents", g.Amount.Cents,
		"date", g.Date.String())
	return id, nil
}

func (r *SQLiteRepository) GetGig(ctx context.Context, id int64) (core.Gig, error) {
	row, err := r.queries.GetGig(ctx, id)
	if err != nil {
		return core.Gig{}, notFound(err, fmt.Sprintf("gig %d", id))
	}
	return toCoreGig(ctx, row), nil
}

func (r *SQLiteRepository) ListGigs(ctx context.Context) ([]core.Gig, error) {
	rows, err := r.queries.ListGigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gigs: %w", err)
	}
	return toCoreGigs(ctx, rows), nil
}

func (r *SQLiteRepository) ListGigsByType(ctx context.Context, t core.GigType) ([]core.Gig, error) {
	rows, err := r.queries.ListGigsByType(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("list gigs by type: %w", err)
	}
	return toCoreGigs(ctx, rows), nil
}

func (r *SQLiteRepository) UpdateGig(ctx context.Context, g core.Gig) error {
	n, err := r.queries.UpdateGig(ctx, UpdateGigParams{
		ID:               g.ID,
		Title:            g.Title,
		Description:      g.Description,
		AmountCents:      g.Amount.Cents,
		Date:             g.Date.String(),
		Status:           string(g.Status),
		GigPlaceID:       nullID(g.PlaceID),
		GigType:          string(g.Type),
		RecurringEndDate: nullDate(g.RecurringEndDate),
		Weekdays:         g.Weekdays.String(),
		RecurringPattern: g.Pattern,
		Now:              now(),
	})
	if err != nil {
		return fmt.Errorf("update gig: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("gig %d: %w", g.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteGig fails with a foreign key error while overrides reference the gig.
func (r *SQLiteRepository) DeleteGig(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteGig(ctx, id)
	if err != nil {
		return fmt.Errorf("delete gig: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("gig %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetOverride(ctx context.Context, gigID int64, date core.Date) (core.Override, error) {
	row, err := r.queries.GetOverride(ctx, gigID, date.String())
	if err != nil {
		return core.Override{}, notFound(err, fmt.Sprintf("override %d/%s", gigID, date))
	}
	o, ok := toCoreOverride(ctx, row)
	if !ok {
		return core.Override{}, fmt.Errorf("override %d/%s: %w", gigID, date, core.ErrNotFound)
	}
	return o, nil
}

func (r *SQLiteRepository) ListOverrides(ctx context.Context, gigID int64) ([]core.Override, error) {
	rows, err := r.queries.ListOverrides(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	out := make([]core.Override, 0, len(rows))
	for _, row := range rows {
		if o, ok := toCoreOverride(ctx, row); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertOverride(ctx context.Context, o core.Override) (core.Override, error) {
	if o.Date.IsZero() {
		return core.Override{}, fmt.Errorf("upsert override for gig %d: %w", o.GigID, core.ErrInvalidDate)
	}
	var amount sql.NullInt64
	if o.Amount != nil {
		amount = sql.NullInt64{Int64: o.Amount.Cents, Valid: true}
	}
	row, err := r.queries.UpsertOverride(ctx, UpsertOverrideParams{
		GigID:       o.GigID,
		Date:        o.Date.String(),
		Status:      string(o.Status),
		AmountCents: amount,
		Notes:       o.Notes,
		Now:         now(),
	})
	if err != nil {
		return core.Override{}, fmt.Errorf("upsert override: %w", err)
	}
	saved, ok := toCoreOverride(ctx, row)
	if !ok {
		return core.Override{}, fmt.Errorf("upsert override %d/%s: stored row is malformed", o.GigID, o.Date)
	}
	return saved, nil
}

func (r *SQLiteRepository) DeleteOverride(ctx context.Context, gigID int64, date core.Date) error {
	n, err := r.queries.DeleteOverride(ctx, gigID, date.String())
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("override %d/%s: %w", gigID, date, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteOverridesForGig(ctx context.Context, gigID int64) (int64, error) {
	n, err := r.queries.DeleteOverridesForGig(ctx, gigID)
	if err != nil {
		return 0, fmt.Errorf("delete overrides for gig: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	var gigID sql.NullInt64
	if e.GigID != nil {
		gigID = sql.NullInt64{Int64: *e.GigID, Valid: true}
	}
	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		GigID:       gigID,
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		Date:        e.Date.String(),
		Category:    e.Category,
		Now:         now(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"description", e.Description,
		"amount_cents", e.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toCoreExpenses(ctx, rows), nil
}

func (r *SQLiteRepository) ListExpensesByGig(ctx context.Context, gigID int64) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByGig(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("list expenses by gig: %w", err)
	}
	return toCoreExpenses(ctx, rows), nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func nullDate(d core.Date) sql.NullString {
	return sql.NullString{String: d.String(), Valid: !d.IsZero()}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// toCoreGig converts a row, logging and neutralizing malformed fields
// rather than failing the whole listing.
func toCoreGig(ctx context.Context, row Gig) core.Gig {
	g := core.Gig{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Amount:      core.Money{Cents: row.AmountCents},
		Place:       row.PlaceName,
		Pattern:     row.RecurringPattern,
		CreatedAt:   parseTimestamp(row.CreatedAt),
		UpdatedAt:   parseTimestamp(row.UpdatedAt),
	}
	if row.GigPlaceID.Valid {
		g.PlaceID = row.GigPlaceID.Int64
	}

	var err error
	if g.Date, err = core.ParseDate(row.Date); err != nil {
		slog.WarnContext(ctx, "Gig has malformed date", "id", row.ID, "date", row.Date)
	}
	if g.Status, err = core.ParseStatus(row.Status); err != nil {
		slog.WarnContext(ctx, "Gig has unknown status, using pending", "id", row.ID, "status", row.Status)
		g.Status = core.StatusPending
	}
	if g.Type, err = core.ParseGigType(row.GigType); err != nil {
		slog.WarnContext(ctx, "Gig has unknown type, using one_off", "id", row.ID, "gig_type", row.GigType)
		g.Type = core.OneOff
	}
	if g.Type != core.Recurring {
		return g
	}
	if row.RecurringEndDate.Valid {
		if g.RecurringEndDate, err = core.ParseDate(row.RecurringEndDate.String); err != nil {
			slog.WarnContext(ctx, "Gig has malformed recurrence end date", "id", row.ID, "recurring_end_date", row.RecurringEndDate.String)
		}
	}
	if g.Weekdays, err = core.ParseWeekdaySet(row.Weekdays); err != nil {
		slog.WarnContext(ctx, "Gig has malformed weekdays", "id", row.ID, "weekdays", row.Weekdays, "error", err)
		g.Weekdays = 0
	}
	g.Weekdays = g.EffectiveWeekdays()
	return g
}

func toCoreGigs(ctx context.Context, rows []Gig) []core.Gig {
	gigs := make([]core.Gig, len(rows))
	for i, row := range rows {
		gigs[i] = toCoreGig(ctx, row)
	}
	return gigs
}

// toCoreOverride reports false for a row whose date cannot be parsed; such
// a row can never match an occurrence. An unparseable amount loads as nil so
// the occurrence falls back to the gig's amount.
func toCoreOverride(ctx context.Context, row OccurrenceOverride) (core.Override, bool) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		slog.WarnContext(ctx, "Skipping override with malformed date", "id", row.ID, "gig_id", row.GigID, "date", row.Date)
		return core.Override{}, false
	}
	o := core.Override{
		GigID:     row.GigID,
		Date:      date,
		Notes:     row.Notes,
		UpdatedAt: parseTimestamp(row.UpdatedAt),
	}
	if o.Status, err = core.ParseStatus(row.Status); err != nil {
		slog.WarnContext(ctx, "Override has unknown status, using pending", "id", row.ID, "status", row.Status)
		o.Status = core.StatusPending
	}
	if row.Amount.Valid {
		cents, err := strconv.ParseInt(strings.TrimSpace(row.Amount.String), 10, 64)
		if err != nil || cents < 0 {
			slog.WarnContext(ctx, "Override has malformed amount, using gig amount",
				"id", row.ID, "gig_id", row.GigID, "amount", row.Amount.String)
		} else {
			o.Amount = &core.Money{Cents: cents}
		}
	}
	return o, true
}

func toCoreExpenses(ctx context.Context, rows []Expense) []core.Expense {
	out := make([]core.Expense, len(rows))
	for i, row := range rows {
		e := core.Expense{
			ID:          row.ID,
			GigTitle:    row.GigTitle,
			Description: row.Description,
			Amount:      core.Money{Cents: row.AmountCents},
			Category:    row.Category,
		}
		if row.GigID.Valid {
			id := row.GigID.Int64
			e.GigID = &id
		}
		d, err := core.ParseDate(row.Date)
		if err != nil {
			slog.WarnContext(ctx, "Expense has malformed date", "id", row.ID, "date", row.Date)
		}
		e.Date = d
		out[i] = e
	}
	return out
}
