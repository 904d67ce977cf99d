package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check every active listing once and print the run summary",
	Args:  cobra.NoArgs,
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	summary, err := application.RunOnce(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}
