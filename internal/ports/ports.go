// Package ports declares the storage and outbound boundaries the services
// depend on. Implementations live in internal/storage (SQLite),
// internal/storage/memory, internal/amqp and internal/sheets/google.
package ports

import (
	"context"

	"gigtracker/internal/core"
)

type (
	GigStore interface {
		CreateGig(ctx context.Context, g core.Gig) (int64, error)
		// GetGig returns core.ErrNotFound (wrapped) for an unknown id.
		GetGig(ctx context.Context, id int64) (core.Gig, error)
		ListGigs(ctx context.Context) ([]core.Gig, error)
		ListGigsByType(ctx context.Context, t core.GigType) ([]core.Gig, error)
		UpdateGig(ctx context.Context, g core.Gig) error
		// DeleteGig fails while overrides still reference the gig.
		DeleteGig(ctx context.Context, id int64) error
	}

	OverrideStore interface {
		// GetOverride returns core.ErrNotFound (wrapped) when no override exists.
		GetOverride(ctx context.Context, gigID int64, date core.Date) (core.Override, error)
		ListOverrides(ctx context.Context, gigID int64) ([]core.Override, error)
		// UpsertOverride replaces any override stored for (gig, date).
		UpsertOverride(ctx context.Context, o core.Override) (core.Override, error)
		// DeleteOverride returns core.ErrNotFound (wrapped) when nothing was deleted.
		DeleteOverride(ctx context.Context, gigID int64, date core.Date) error
		DeleteOverridesForGig(ctx context.Context, gigID int64) (int64, error)
	}

	PlaceStore interface {
		GetOrCreatePlace(ctx context.Context, name string) (core.Place, error)
		ListPlaces(ctx context.Context) ([]core.Place, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (int64, error)
		ListExpenses(ctx context.Context) ([]core.Expense, error)
		ListExpensesByGig(ctx context.Context, gigID int64) ([]core.Expense, error)
	}

	// Store is everything a backend provides.
	Store interface {
		GigStore
		OverrideStore
		PlaceStore
		ExpenseStore
	}

	// EventPublisher announces gig changes to downstream consumers.
	EventPublisher interface {
		PublishGigEvent(ctx context.Context, ev GigEvent) error
	}

	// EarningsWriter exports the daily earnings table.
	EarningsWriter interface {
		WriteDailyEarnings(ctx context.Context, days []core.DayEarning) error
	}
)

// GigEventOp names the kind of change.
type GigEventOp string

const (
	OpGigUpserted     GigEventOp = "gig_upserted"
	OpGigDeleted      GigEventOp = "gig_deleted"
	OpOverrideSet     GigEventOp = "override_set"
	OpOverrideDeleted GigEventOp = "override_deleted"
	OpExpenseCreated  GigEventOp = "expense_created"
)

// GigEvent is the payload published after a successful write.
type GigEvent struct {
	GigID int64
	Op    GigEventOp
	Date  core.Date // set for override events
}
