package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"otcdesk/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	// Transactions switches the listing from price observations to recent
	// transactions.
	Transactions bool
}

// Show prints recent price observations, or recent transactions when
// requested.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Transactions {
		return a.ListTransactions(ctx, storage.TxFilter{Limit: opts.Limit})
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	observations, err := store.ListRecentObservations(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tBase\tMarkup\tFinal\tSource")
	for _, obs := range observations {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			obs.CreatedAt.UTC().Format(time.RFC3339),
			formatDecimal(obs.BasePrice, 2),
			formatDecimal(obs.Markup, 2),
			formatDecimal(obs.FinalPrice, 2),
			obs.Source,
		)
	}
	return writer.Flush()
}
