package services

import (
	"context"
	"errors"
	"fmt"

	"gigtracker/internal/core"
	"gigtracker/internal/ports"
)

// OverrideAdapter is the date-keyed view of a gig's occurrence overrides.
type OverrideAdapter struct {
	store ports.OverrideStore
}

func NewOverrideAdapter(store ports.OverrideStore) *OverrideAdapter {
	return &OverrideAdapter{store: store}
}

// Get returns the override for (gigID, date). ok is false when none exists.
func (a *OverrideAdapter) Get(ctx context.Context, gigID int64, date core.Date) (core.Override, bool, error) {
	o, err := a.store.GetOverride(ctx, gigID, date)
	if errors.Is(err, core.ErrNotFound) {
		return core.Override{}, false, nil
	}
	if err != nil {
		return core.Override{}, false, fmt.Errorf("get override %d/%s: %w", gigID, date, err)
	}
	return o, true, nil
}

// All returns every override of a gig keyed by date.
func (a *OverrideAdapter) All(ctx context.Context, gigID int64) (map[core.Date]core.Override, error) {
	list, err := a.store.ListOverrides(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("list overrides for gig %d: %w", gigID, err)
	}
	return IndexOverrides(list), nil
}

// Set creates or replaces the override for (gigID, date). A nil amount means
// the occurrence keeps the gig's amount.
func (a *OverrideAdapter) Set(ctx context.Context, gigID int64, date core.Date, status core.Status, amount *core.Money, notes string) (core.Override, error) {
	o := core.Override{
		GigID:  gigID,
		Date:   date,
		Status: status,
		Amount: amount,
		Notes:  notes,
	}
	if err := o.Validate(); err != nil {
		return core.Override{}, err
	}
	saved, err := a.store.UpsertOverride(ctx, o)
	if err != nil {
		return core.Override{}, fmt.Errorf("upsert override %d/%s: %w", gigID, date, err)
	}
	return saved, nil
}

// Delete removes the override for (gigID, date). Deleting a missing override
// is not an error; deleted reports whether a row went away.
func (a *OverrideAdapter) Delete(ctx context.Context, gigID int64, date core.Date) (bool, error) {
	err := a.store.DeleteOverride(ctx, gigID, date)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete override %d/%s: %w", gigID, date, err)
	}
	return true, nil
}

// DeleteAll removes every override of a gig and reports how many went away.
func (a *OverrideAdapter) DeleteAll(ctx context.Context, gigID int64) (int64, error) {
	n, err := a.store.DeleteOverridesForGig(ctx, gigID)
	if err != nil {
		return 0, fmt.Errorf("delete overrides for gig %d: %w", gigID, err)
	}
	return n, nil
}
