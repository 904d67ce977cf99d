package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"PriceWatch/internal/app"
	"PriceWatch/internal/config"
	"PriceWatch/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "pricewatch",
	Short:         "PriceWatch - scheduled price checks for tracked listings",
	Long:          "Fetches tracked listing pages, extracts prices (CSS selector, LLM fallback, page metadata), keeps a price history and alerts on degraded health.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json")
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: sqlite, postgres")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database DSN")
}

func initConfig() {
	cfg = config.Load()

	// Override from flags
	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("db-driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("db-dsn"); v != "" {
		cfg.Database.DSN = v
	}

	// Logs go to stderr so command output on stdout stays machine-readable.
	logger = logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

func openApp(ctx context.Context) (*app.Application, error) {
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start application: %w", err)
	}
	return application, nil
}
