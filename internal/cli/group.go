package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"otcdesk/internal/app"
)

var (
	groupID       int64
	groupMarkup   string
	groupAddress  string
	globalMarkup  string
	globalAddress string
	globalPolicy  string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage per-group markup and settlement addresses",
}

var groupSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Write a group's markup override and USDT address",
	RunE: func(cmd *cobra.Command, args []string) error {
		if groupID == 0 {
			return errors.New("--group is required")
		}

		return getApp().SetGroupConfig(cmd.Context(), app.GroupSetOptions{
			GroupID: groupID,
			Markup:  groupMarkup,
			Address: groupAddress,
		})
	},
}

var groupClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a group's override entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		if groupID == 0 {
			return errors.New("--group is required")
		}
		return getApp().ClearGroupConfig(cmd.Context(), groupID)
	},
}

var groupGlobalCmd = &cobra.Command{
	Use:   "global",
	Short: "Write the global markup, address, and default strategy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetGlobalSettings(cmd.Context(), app.GlobalSetOptions{
			Markup:   globalMarkup,
			Address:  globalAddress,
			Strategy: globalPolicy,
		})
	},
}

func init() {
	groupCmd.PersistentFlags().Int64Var(&groupID, "group", 0, "Group id")

	groupSetCmd.Flags().StringVar(&groupMarkup, "markup", "0", "Markup override in CNY (0 resets to global)")
	groupSetCmd.Flags().StringVar(&groupAddress, "address", "", "ERC-20 USDT settlement address")

	groupGlobalCmd.Flags().StringVar(&globalMarkup, "markup", "0", "Global markup in CNY")
	groupGlobalCmd.Flags().StringVar(&globalAddress, "address", "", "Global ERC-20 USDT settlement address")
	groupGlobalCmd.Flags().StringVar(&globalPolicy, "strategy", "", "Default dispatch strategy")

	groupCmd.AddCommand(groupSetCmd)
	groupCmd.AddCommand(groupClearCmd)
	groupCmd.AddCommand(groupGlobalCmd)
}
