package main

import (
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Track a listing and run its first price check",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var checkCmd = &cobra.Command{
	Use:   "check [listing-id]",
	Short: "Recheck a single listing now",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var statsCmd = &cobra.Command{
	Use:   "stats [listing-id]",
	Short: "Show min/max/avg price over the listing's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	addCmd.Flags().String("selector", "", "CSS selector of the price element, if known")
	addCmd.Flags().String("title", "", "Human-readable listing title")
	checkCmd.Flags().String("lang", "en", "Message language: en, pl")
	rootCmd.AddCommand(addCmd, checkCmd, statsCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	selector, _ := cmd.Flags().GetString("selector")
	title, _ := cmd.Flags().GetString("title")

	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	listing, out, err := application.AddListing(cmd.Context(), args[0], selector, title)
	if err != nil {
		return err
	}
	report := checkReport(out, "en")
	report["url"] = listing.URL
	return printJSON(report)
}

func runCheck(cmd *cobra.Command, args []string) error {
	lang, _ := cmd.Flags().GetString("lang")

	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	out, err := application.CheckListing(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(checkReport(out, lang))
}

func runStats(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	stats, err := application.Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"listingId": args[0],
		"count":     stats.Count,
		"min":       stats.Min.StringFixed(2),
		"max":       stats.Max.StringFixed(2),
		"avg":       stats.Avg.StringFixed(2),
	})
}
