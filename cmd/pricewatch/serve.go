package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trigger HTTP API and the optional interval scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default from $HTTP_ADDR or :8080)")
	serveCmd.Flags().Duration("interval", 0, "Run a batch on this interval in-process (0 keeps the configured value)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
		cfg.Scheduler.Interval = interval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}
