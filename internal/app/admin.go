package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"otcdesk/internal/dispatch"
	"otcdesk/internal/storage"
)

// GroupSetOptions update a group's markup override and settlement address.
type GroupSetOptions struct {
	GroupID int64
	// Markup is the per-group override; zero resets the group to the
	// global default.
	Markup string
	// Address is the ERC-20 USDT settlement address. Empty leaves the
	// group on the global address.
	Address string
}

// SetGroupConfig writes a group's markup override and settlement address.
func (a *App) SetGroupConfig(ctx context.Context, opts GroupSetOptions) error {
	markup, err := decimal.NewFromString(opts.Markup)
	if err != nil {
		return fmt.Errorf("invalid markup %q: %w", opts.Markup, err)
	}
	if err := validateAddress(opts.Address); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.UpsertGroupConfig(ctx, storage.GroupConfig{
		GroupID:     opts.GroupID,
		Markup:      markup,
		USDTAddress: opts.Address,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "group %d: markup=%s address=%s\n", opts.GroupID, markup, orDash(opts.Address))
	return nil
}

// ClearGroupConfig removes a group's override entirely.
func (a *App) ClearGroupConfig(ctx context.Context, groupID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeleteGroupConfig(ctx, groupID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "group %d config removed\n", groupID)
	return nil
}

// GlobalSetOptions update the singleton fallback settings.
type GlobalSetOptions struct {
	Markup   string
	Address  string
	Strategy string
}

// SetGlobalSettings writes the global markup, settlement address, and
// default dispatch strategy.
func (a *App) SetGlobalSettings(ctx context.Context, opts GlobalSetOptions) error {
	markup, err := decimal.NewFromString(opts.Markup)
	if err != nil {
		return fmt.Errorf("invalid markup %q: %w", opts.Markup, err)
	}
	if err := validateAddress(opts.Address); err != nil {
		return err
	}
	if opts.Strategy != "" {
		if _, err := dispatch.ParseStrategy(opts.Strategy); err != nil {
			return err
		}
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.UpdateGlobalSettings(ctx, storage.GlobalSettings{
		Markup:      markup,
		USDTAddress: opts.Address,
		Strategy:    opts.Strategy,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "global: markup=%s address=%s strategy=%s\n",
		markup, orDash(opts.Address), orDash(opts.Strategy))
	return nil
}

// AccountSetOptions create or update one dispatch-pool operator.
type AccountSetOptions struct {
	AccountID     int64
	Username      string
	DisplayName   string
	Weight        int
	MaxConcurrent int
	Status        string
}

// SetServiceAccount upserts an operator in the dispatch pool.
func (a *App) SetServiceAccount(ctx context.Context, opts AccountSetOptions) error {
	if opts.Username == "" {
		return fmt.Errorf("a username is required")
	}
	if opts.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	status := storage.AccountStatus(opts.Status)
	switch status {
	case storage.AccountAvailable, storage.AccountBusy, storage.AccountOffline, storage.AccountDisabled:
	default:
		return fmt.Errorf("unknown account status %q", opts.Status)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.UpsertServiceAccount(ctx, storage.ServiceAccount{
		AccountID:     opts.AccountID,
		Username:      opts.Username,
		DisplayName:   opts.DisplayName,
		Weight:        opts.Weight,
		MaxConcurrent: opts.MaxConcurrent,
		Status:        status,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "account %d (@%s) saved\n", opts.AccountID, opts.Username)
	return nil
}

// ListServiceAccounts prints every registered operator, including those
// offline, disabled, or at capacity. Dispatch filters its own candidate set.
func (a *App) ListServiceAccounts(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	accounts, err := store.ListAllServiceAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(os.Stdout, "no service accounts registered")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tUsername\tWeight\tLoad\tStatus")
	for _, acc := range accounts {
		fmt.Fprintf(
			writer,
			"%d\t@%s\t%d\t%d/%d\t%s\n",
			acc.AccountID,
			acc.Username,
			acc.Weight,
			acc.CurrentAssigned,
			acc.MaxConcurrent,
			acc.Status,
		)
	}
	return writer.Flush()
}

// validateAddress rejects settlement addresses that are not well-formed
// ERC-20 hex addresses. Empty is allowed and means "inherit".
func validateAddress(address string) error {
	if address == "" {
		return nil
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid ERC-20 address %q", address)
	}
	return nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
