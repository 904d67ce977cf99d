package main

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the aggregated check health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().Int("hours", 0, "Trailing window in hours (default from config)")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	hours, _ := cmd.Flags().GetInt("hours")

	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	snapshot, err := application.Health(cmd.Context(), hours)
	if err != nil {
		return err
	}
	return printJSON(snapshot)
}
