package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"otcdesk/internal/settlement"
	"otcdesk/internal/storage"
)

var (
	txActorID     int64
	txActorAdmin  bool
	txPaymentHash string
	txCancelWhy   string

	txListUser   int64
	txListGroup  int64
	txListStatus string
	txListFrom   string
	txListTo     string
	txListMin    string
	txListMax    string
	txListLimit  int
	txListOffset int
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect and transition settlement transactions",
}

var txPaidCmd = &cobra.Command{
	Use:   "paid <transaction-id>",
	Short: "Mark a pending transaction as paid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var hash *string
		if txPaymentHash != "" {
			hash = &txPaymentHash
		}
		return getApp().MarkPaid(cmd.Context(), args[0], txActor(), hash)
	},
}

var txConfirmCmd = &cobra.Command{
	Use:   "confirm <transaction-id>",
	Short: "Confirm a paid transaction (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ConfirmTransaction(cmd.Context(), args[0], txActor())
	},
}

var txCancelCmd = &cobra.Command{
	Use:   "cancel <transaction-id>",
	Short: "Cancel a pending or paid transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().CancelTransaction(cmd.Context(), args[0], txActor(), txCancelWhy)
	},
}

var txShowCmd = &cobra.Command{
	Use:   "show <transaction-id>",
	Short: "Print one transaction in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowTransaction(cmd.Context(), args[0])
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions matching the given filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := storage.TxFilter{
			Limit:  txListLimit,
			Offset: txListOffset,
		}
		if txListUser != 0 {
			userID := txListUser
			filter.UserID = &userID
		}
		if txListGroup != 0 {
			groupID := txListGroup
			filter.GroupID = &groupID
		}
		if txListStatus != "" {
			status, err := storage.ParseTxStatus(txListStatus)
			if err != nil {
				return err
			}
			filter.Status = &status
		}
		if txListFrom != "" {
			from, err := time.Parse(time.RFC3339, txListFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			filter.From = &from
		}
		if txListTo != "" {
			to, err := time.Parse(time.RFC3339, txListTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			filter.To = &to
		}
		if txListMin != "" {
			min, err := decimal.NewFromString(txListMin)
			if err != nil {
				return fmt.Errorf("invalid --min value: %w", err)
			}
			filter.MinAmount = &min
		}
		if txListMax != "" {
			max, err := decimal.NewFromString(txListMax)
			if err != nil {
				return fmt.Errorf("invalid --max value: %w", err)
			}
			filter.MaxAmount = &max
		}

		return getApp().ListTransactions(cmd.Context(), filter)
	},
}

func txActor() settlement.Actor {
	return settlement.Actor{ID: txActorID, IsAdmin: txActorAdmin}
}

func init() {
	txCmd.PersistentFlags().Int64Var(&txActorID, "actor", 0, "Acting user id")
	txCmd.PersistentFlags().BoolVar(&txActorAdmin, "admin", false, "Act with admin privileges")

	txPaidCmd.Flags().StringVar(&txPaymentHash, "hash", "", "On-chain payment hash")
	txCancelCmd.Flags().StringVar(&txCancelWhy, "reason", "", "Cancellation reason recorded in the audit log")

	txListCmd.Flags().Int64Var(&txListUser, "user", 0, "Filter by user id")
	txListCmd.Flags().Int64Var(&txListGroup, "group", 0, "Filter by group id")
	txListCmd.Flags().StringVar(&txListStatus, "status", "", "Filter by status (pending|paid|confirmed|cancelled)")
	txListCmd.Flags().StringVar(&txListFrom, "from", "", "Created at or after (RFC3339)")
	txListCmd.Flags().StringVar(&txListTo, "to", "", "Created before (RFC3339)")
	txListCmd.Flags().StringVar(&txListMin, "min", "", "Minimum CNY amount")
	txListCmd.Flags().StringVar(&txListMax, "max", "", "Maximum CNY amount")
	txListCmd.Flags().IntVar(&txListLimit, "limit", 50, "Maximum rows to return")
	txListCmd.Flags().IntVar(&txListOffset, "offset", 0, "Rows to skip")

	txCmd.AddCommand(txPaidCmd)
	txCmd.AddCommand(txConfirmCmd)
	txCmd.AddCommand(txCancelCmd)
	txCmd.AddCommand(txShowCmd)
	txCmd.AddCommand(txListCmd)
}
