package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"otcdesk/internal/settlement"
	"otcdesk/internal/storage"
)

// MarkPaid transitions a pending transaction to paid on behalf of actor.
func (a *App) MarkPaid(ctx context.Context, transactionID string, actor settlement.Actor, paymentHash *string) error {
	return a.withLifecycle(ctx, func(lc *settlement.Lifecycle) error {
		return lc.MarkPaid(ctx, transactionID, actor, paymentHash)
	})
}

// ConfirmTransaction settles a paid transaction. Admin only.
func (a *App) ConfirmTransaction(ctx context.Context, transactionID string, actor settlement.Actor) error {
	return a.withLifecycle(ctx, func(lc *settlement.Lifecycle) error {
		return lc.Confirm(ctx, transactionID, actor)
	})
}

// CancelTransaction aborts a pending or paid transaction.
func (a *App) CancelTransaction(ctx context.Context, transactionID string, actor settlement.Actor, reason string) error {
	return a.withLifecycle(ctx, func(lc *settlement.Lifecycle) error {
		return lc.Cancel(ctx, transactionID, actor, reason)
	})
}

func (a *App) withLifecycle(ctx context.Context, fn func(*settlement.Lifecycle) error) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(settlement.NewLifecycle(store, a.Logger))
}

// ListTransactions prints transactions matching the filter.
func (a *App) ListTransactions(ctx context.Context, filter storage.TxFilter) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	txs, err := store.ListTransactions(ctx, filter)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Fprintln(os.Stdout, "no transactions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tUser\tUSDT\tRate\tCNY\tStatus\tCreated (UTC)")
	for _, tx := range txs {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			tx.TransactionID,
			tx.UserID,
			tx.USDTAmount.String(),
			formatDecimal(tx.ExchangeRate, 2),
			formatDecimal(tx.CNYAmount, 2),
			tx.Status,
			tx.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

// ShowTransaction prints one transaction in full.
func (a *App) ShowTransaction(ctx context.Context, transactionID string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tx, err := store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}

	address, hash := "-", "-"
	if tx.USDTAddress != nil {
		address = *tx.USDTAddress
	}
	if tx.PaymentHash != nil {
		hash = *tx.PaymentHash
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "ID\t%s\n", tx.TransactionID)
	fmt.Fprintf(writer, "User\t%d\n", tx.UserID)
	if tx.GroupID != nil {
		fmt.Fprintf(writer, "Group\t%d\n", *tx.GroupID)
	}
	fmt.Fprintf(writer, "USDT\t%s\n", tx.USDTAmount.String())
	fmt.Fprintf(writer, "Rate\t%s\n", formatDecimal(tx.ExchangeRate, 2))
	fmt.Fprintf(writer, "Markup\t%s\n", formatDecimal(tx.Markup, 2))
	fmt.Fprintf(writer, "CNY\t%s\n", formatDecimal(tx.CNYAmount, 2))
	fmt.Fprintf(writer, "Address\t%s\n", address)
	fmt.Fprintf(writer, "Payment hash\t%s\n", hash)
	fmt.Fprintf(writer, "Status\t%s\n", tx.Status)
	fmt.Fprintf(writer, "Created\t%s\n", tx.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(writer, "Paid\t%s\n", formatTimePtr(tx.PaidAt))
	fmt.Fprintf(writer, "Confirmed\t%s\n", formatTimePtr(tx.ConfirmedAt))
	fmt.Fprintf(writer, "Cancelled\t%s\n", formatTimePtr(tx.CancelledAt))
	return writer.Flush()
}
