package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteOptions configure a one-shot settlement quote.
type QuoteOptions struct {
	// Amount is the raw user input: a number, a two-operand expression,
	// or a comma/newline separated batch.
	Amount  string
	GroupID *int64
	// UserID owns transactions created with Create.
	UserID int64
	// Create persists each quoted amount as a pending transaction.
	Create bool
}

// Quote resolves the live price once and settles every amount in the input
// against it, optionally materialising pending transactions.
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	calc, err := a.newCalculator(store)
	if err != nil {
		return err
	}

	quotes, err := calc.Calculate(ctx, opts.Amount, opts.GroupID)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "USDT\tBase\tMarkup\tRate\tCNY Total")
	for _, q := range quotes {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			q.USDTAmount.String(),
			formatDecimal(q.BasePrice, 2),
			formatDecimal(q.Markup, 2),
			formatDecimal(q.FinalPrice, 2),
			formatDecimal(q.CNYTotal, 2),
		)
	}
	writer.Flush()

	if !opts.Create {
		return nil
	}
	if opts.UserID == 0 {
		return fmt.Errorf("a user id is required to create transactions")
	}

	for _, q := range quotes {
		tx, err := calc.CreateTransaction(ctx, q, opts.UserID)
		if err != nil {
			return err
		}
		address := ""
		if tx.USDTAddress != nil {
			address = *tx.USDTAddress
		}
		fmt.Fprintf(os.Stdout, "created %s  %s USDT @ %s  %s\n",
			tx.TransactionID, tx.USDTAmount.String(), formatDecimal(tx.ExchangeRate, 2), address)
	}
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
