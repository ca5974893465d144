package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL for every table. Rows come back in their stored
// shape; conversion to core types happens in the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Place struct {
	ID   int64
	Name string
}

type Gig struct {
	ID               int64
	Title            string
	Description      string
	AmountCents      int64
	Date             string
	Status           string
	GigPlaceID       sql.NullInt64
	PlaceName        string
	GigType          string
	RecurringEndDate sql.NullString
	Weekdays         string
	RecurringPattern string
	CreatedAt        string
	UpdatedAt        string
}

type OccurrenceOverride struct {
	ID        int64
	GigID     int64
	Date      string
	Status    string
	Amount    sql.NullString // raw column text, parsed leniently
	Notes     string
	UpdatedAt string
}

type Expense struct {
	ID          int64
	GigID       sql.NullInt64
	GigTitle    string
	Description string
	AmountCents int64
	Date        string
	Category    string
	CreatedAt   string
}

const upsertPlace = `
INSERT INTO gig_places (name) VALUES (?)
ON CONFLICT (name) DO UPDATE SET name = excluded.name
RETURNING id, name`

func (q *Queries) UpsertPlace(ctx context.Context, name string) (Place, error) {
	var p Place
	err := q.db.QueryRowContext(ctx, upsertPlace, name).Scan(&p.ID, &p.Name)
	return p, err
}

const listPlaces = `SELECT id, name FROM gig_places ORDER BY name`

func (q *Queries) ListPlaces(ctx context.Context) ([]Place, error) {
	rows, err := q.db.QueryContext(ctx, listPlaces)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Place
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const gigColumns = `
g.id, g.title, g.description, g.amount_cents, g.date, g.status,
g.gig_place_id, COALESCE(p.name, ''), g.gig_type, g.recurring_end_date,
g.weekdays, g.recurring_pattern, g.created_at, g.updated_at`

const gigFrom = `
FROM gigs g LEFT JOIN gig_places p ON p.id = g.gig_place_id`

func scanGig(row interface{ Scan(...any) error }) (Gig, error) {
	var g Gig
	err := row.Scan(
		&g.ID, &g.Title, &g.Description, &g.AmountCents, &g.Date, &g.Status,
		&g.GigPlaceID, &g.PlaceName, &g.GigType, &g.RecurringEndDate,
		&g.Weekdays, &g.RecurringPattern, &g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

type CreateGigParams struct {
	Title            string
	Description      string
	AmountCents      int64
	Date             string
	Status           string
	GigPlaceID       sql.NullInt64
	GigType          string
	RecurringEndDate sql.NullString
	Weekdays         string
	RecurringPattern string
	Now              string
}

const createGig = `
INSERT INTO gigs (
    title, description, amount_cents, date, status, gig_place_id, gig_type,
    recurring_end_date, weekdays, recurring_pattern, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateGig(ctx context.Context, arg CreateGigParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createGig,
		arg.Title, arg.Description, arg.AmountCents, arg.Date, arg.Status,
		arg.GigPlaceID, arg.GigType, arg.RecurringEndDate, arg.Weekdays,
		arg.RecurringPattern, arg.Now, arg.Now,
	).Scan(&id)
	return id, err
}

const getGig = `SELECT ` + gigColumns + gigFrom + ` WHERE g.id = ?`

func (q *Queries) GetGig(ctx context.Context, id int64) (Gig, error) {
	return scanGig(q.db.QueryRowContext(ctx, getGig, id))
}

const listGigs = `SELECT ` + gigColumns + gigFrom + ` ORDER BY g.date, g.id`

func (q *Queries) ListGigs(ctx context.Context) ([]Gig, error) {
	return q.queryGigs(ctx, listGigs)
}

// Rows with an unknown gig_type count as one-off.
const listGigsByType = `SELECT ` + gigColumns + gigFrom + `
WHERE CASE WHEN g.gig_type = 'recurring' THEN 'recurring' ELSE 'one_off' END = ?
ORDER BY g.date, g.id`

func (q *Queries) ListGigsByType(ctx context.Context, gigType string) ([]Gig, error) {
	return q.queryGigs(ctx, listGigsByType, gigType)
}

func (q *Queries) queryGigs(ctx context.Context, query string, args ...any) ([]Gig, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Gig
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

type UpdateGigParams struct {
	ID               int64
	Title            string
	Description      string
	AmountCents      int64
	Date             string
	Status           string
	GigPlaceID       sql.NullInt64
	GigType          string
	RecurringEndDate sql.NullString
	Weekdays         string
	RecurringPattern string
	Now              string
}

const updateGig = `
UPDATE gigs SET
    title = ?, description = ?, amount_cents = ?, date = ?, status = ?,
    gig_place_id = ?, gig_type = ?, recurring_end_date = ?, weekdays = ?,
    recurring_pattern = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateGig(ctx context.Context, arg UpdateGigParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateGig,
		arg.Title, arg.Description, arg.AmountCents, arg.Date, arg.Status,
		arg.GigPlaceID, arg.GigType, arg.RecurringEndDate, arg.Weekdays,
		arg.RecurringPattern, arg.Now, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteGig = `DELETE FROM gigs WHERE id = ?`

func (q *Queries) DeleteGig(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteGig, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const overrideColumns = `id, gig_id, date, status, CAST(amount_cents AS TEXT), notes, updated_at`

func scanOverride(row interface{ Scan(...any) error }) (OccurrenceOverride, error) {
	var o OccurrenceOverride
	err := row.Scan(&o.ID, &o.GigID, &o.Date, &o.Status, &o.Amount, &o.Notes, &o.UpdatedAt)
	return o, err
}

const getOverride = `SELECT ` + overrideColumns + ` FROM occurrence_overrides WHERE gig_id = ? AND date = ?`

func (q *Queries) GetOverride(ctx context.Context, gigID int64, date string) (OccurrenceOverride, error) {
	return scanOverride(q.db.QueryRowContext(ctx, getOverride, gigID, date))
}

const listOverrides = `SELECT ` + overrideColumns + ` FROM occurrence_overrides WHERE gig_id = ? ORDER BY date`

func (q *Queries) ListOverrides(ctx context.Context, gigID int64) ([]OccurrenceOverride, error) {
	rows, err := q.db.QueryContext(ctx, listOverrides, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OccurrenceOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type UpsertOverrideParams struct {
	GigID       int64
	Date        string
	Status      string
	AmountCents sql.NullInt64
	Notes       string
	Now         string
}

const upsertOverride = `
INSERT INTO occurrence_overrides (gig_id, date, status, amount_cents, notes, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (gig_id, date) DO UPDATE SET
    status = excluded.status,
    amount_cents = excluded.amount_cents,
    notes = excluded.notes,
    updated_at = excluded.updated_at
RETURNING ` + overrideColumns

func (q *Queries) UpsertOverride(ctx context.Context, arg UpsertOverrideParams) (OccurrenceOverride, error) {
	return scanOverride(q.db.QueryRowContext(ctx, upsertOverride,
		arg.GigID, arg.Date, arg.Status, arg.AmountCents, arg.Notes, arg.Now,
	))
}

const deleteOverride = `DELETE FROM occurrence_overrides WHERE gig_id = ? AND date = ?`

func (q *Queries) DeleteOverride(ctx context.Context, gigID int64, date string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteOverride, gigID, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteOverridesForGig = `DELETE FROM occurrence_overrides WHERE gig_id = ?`

func (q *Queries) DeleteOverridesForGig(ctx context.Context, gigID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteOverridesForGig, gigID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type CreateExpenseParams struct {
	GigID       sql.NullInt64
	Description string
	AmountCents int64
	Date        string
	Category    string
	Now         string
}

const createExpense = `
INSERT INTO expenses (gig_id, description, amount_cents, date, category, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createExpense,
		arg.GigID, arg.Description, arg.AmountCents, arg.Date, arg.Category, arg.Now,
	).Scan(&id)
	return id, err
}

const expenseSelect = `
SELECT e.id, e.gig_id, COALESCE(g.title, ''), e.description, e.amount_cents,
       e.date, e.category, e.created_at
FROM expenses e LEFT JOIN gigs g ON g.id = e.gig_id`

const listExpenses = expenseSelect + ` ORDER BY e.date DESC, e.id DESC`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpenses)
}

const listExpensesByGig = expenseSelect + ` WHERE e.gig_id = ? ORDER BY e.date DESC, e.id DESC`

func (q *Queries) ListExpensesByGig(ctx context.Context, gigID int64) ([]Expense, error) {
	return q.queryExpenses(ctx, listExpensesByGig, gigID)
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...any) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(
			&e.ID, &e.GigID, &e.GigTitle, &e.Description, &e.AmountCents,
			&e.Date, &e.Category, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
