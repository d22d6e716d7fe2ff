package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"otcdesk/internal/app"
)

var (
	assignUserID    int64
	assignStrategy  string
	assignRelease   bool
	assignAccountID int64
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Route a user to a customer-service operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		if assignUserID == 0 {
			return errors.New("--user is required")
		}

		return getApp().Assign(cmd.Context(), app.AssignOptions{
			UserID:    assignUserID,
			Strategy:  assignStrategy,
			Release:   assignRelease,
			AccountID: assignAccountID,
		})
	},
}

func init() {
	assignCmd.Flags().Int64Var(&assignUserID, "user", 0, "Requesting user id")
	assignCmd.Flags().StringVar(&assignStrategy, "strategy", "", "Selection strategy (round_robin|least_busy|weighted|smart)")
	assignCmd.Flags().BoolVar(&assignRelease, "release", false, "Release a held slot instead of assigning")
	assignCmd.Flags().Int64Var(&assignAccountID, "account", 0, "Account id to release")
}
