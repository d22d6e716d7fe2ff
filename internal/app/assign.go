package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"otcdesk/internal/dispatch"
	"otcdesk/internal/storage"
)

// AssignOptions configure an operator assignment or release.
type AssignOptions struct {
	UserID   int64
	Strategy string
	// Release frees one slot on AccountID instead of assigning.
	Release   bool
	AccountID int64
}

// Assign routes a user to a customer-service operator, or releases a held
// slot when Release is set.
func (a *App) Assign(ctx context.Context, opts AssignOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := a.newEngine(store)

	if opts.Release {
		if opts.AccountID == 0 {
			return fmt.Errorf("an account id is required to release")
		}
		if err := engine.Release(ctx, opts.UserID, opts.AccountID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "released one slot on account %d\n", opts.AccountID)
		return nil
	}

	parsed, err := a.resolveStrategy(ctx, store, opts.Strategy)
	if err != nil {
		return err
	}

	username, err := engine.Assign(ctx, opts.UserID, parsed)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "assigned @%s\n", username)
	return nil
}

// resolveStrategy picks the dispatch strategy: an explicit override wins,
// then the admin-stored global strategy, then the configured default.
func (a *App) resolveStrategy(ctx context.Context, groups storage.GroupStore, override string) (dispatch.Strategy, error) {
	if override != "" {
		return dispatch.ParseStrategy(override)
	}

	settings, err := groups.GetGlobalSettings(ctx)
	switch {
	case err == nil:
		if settings.Strategy != "" {
			return dispatch.ParseStrategy(settings.Strategy)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return "", fmt.Errorf("load global settings: %w", err)
	}

	return dispatch.ParseStrategy(a.Config.Dispatch.DefaultStrategy)
}
