package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"otcdesk/internal/app"
)

var (
	accountID     int64
	accountName   string
	accountLabel  string
	accountWeight int
	accountMax    int
	accountStatus string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the customer-service dispatch pool",
}

var accountsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update one operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		if accountID == 0 {
			return errors.New("--id is required")
		}

		return getApp().SetServiceAccount(cmd.Context(), app.AccountSetOptions{
			AccountID:     accountID,
			Username:      accountName,
			DisplayName:   accountLabel,
			Weight:        accountWeight,
			MaxConcurrent: accountMax,
			Status:        accountStatus,
		})
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered operators",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListServiceAccounts(cmd.Context())
	},
}

func init() {
	accountsSetCmd.Flags().Int64Var(&accountID, "id", 0, "Account id")
	accountsSetCmd.Flags().StringVar(&accountName, "username", "", "Telegram username (without @)")
	accountsSetCmd.Flags().StringVar(&accountLabel, "name", "", "Display name")
	accountsSetCmd.Flags().IntVar(&accountWeight, "weight", 1, "Weighted-selection weight")
	accountsSetCmd.Flags().IntVar(&accountMax, "max", 5, "Concurrent assignment ceiling")
	accountsSetCmd.Flags().StringVar(&accountStatus, "status", "available", "Account status (available|busy|offline|disabled)")

	accountsCmd.AddCommand(accountsSetCmd)
	accountsCmd.AddCommand(accountsListCmd)
}
