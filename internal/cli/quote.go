package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"otcdesk/internal/app"
)

var (
	quoteGroupID int64
	quoteUserID  int64
	quoteCreate  bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount>",
	Short: "计算一次结算报价，例如 'quote 20000-200'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if quoteCreate && quoteUserID == 0 {
			return errors.New("--create 需要同时提供 --user")
		}

		opts := app.QuoteOptions{
			Amount: args[0],
			UserID: quoteUserID,
			Create: quoteCreate,
		}
		if quoteGroupID != 0 {
			groupID := quoteGroupID
			opts.GroupID = &groupID
		}

		return getApp().Quote(cmd.Context(), opts)
	},
}

func init() {
	quoteCmd.Flags().Int64Var(&quoteGroupID, "group", 0, "Group id for markup override (0 = global)")
	quoteCmd.Flags().Int64Var(&quoteUserID, "user", 0, "User id owning created transactions")
	quoteCmd.Flags().BoolVar(&quoteCreate, "create", false, "Persist each quoted amount as a pending transaction")
}
