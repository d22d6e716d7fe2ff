package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"otcdesk/internal/app"
)

var (
	alertUserID int64
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage price threshold alert rules",
}

var alertsAddCmd = &cobra.Command{
	Use:   "add <operator> <threshold>",
	Short: "Register a threshold watch, e.g. 'alerts add \">\" 7.5 --user 42'",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertUserID == 0 {
			return errors.New("--user is required")
		}

		return getApp().AddAlertRule(cmd.Context(), app.AlertAddOptions{
			UserID:    alertUserID,
			Operator:  args[0],
			Threshold: args[1],
		})
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert rules (all active, or one user's with --user)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlertRules(cmd.Context(), alertUserID)
	},
}

var alertsRemoveCmd = &cobra.Command{
	Use:   "remove <rule-id>",
	Short: "Deactivate one of the user's rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertUserID == 0 {
			return errors.New("--user is required")
		}
		ruleID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.New("rule id must be an integer")
		}

		return getApp().RemoveAlertRule(cmd.Context(), ruleID, alertUserID)
	},
}

func init() {
	alertsCmd.PersistentFlags().Int64Var(&alertUserID, "user", 0, "Owning user id")

	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsRemoveCmd)
}
