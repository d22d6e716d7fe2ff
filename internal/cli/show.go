package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"otcdesk/internal/app"
)

var (
	showLimit int
	showTxs   bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent price observations or transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:        showLimit,
			Transactions: showTxs,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showTxs, "tx", false, "Show recent transactions instead of observations")
}
