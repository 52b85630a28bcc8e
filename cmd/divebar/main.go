package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "divebar",
		Short: "Find underrated dive bars and hole-in-the-wall restaurants from review signals",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(collectCmd())
	root.AddCommand(reviewsCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(aggregateCmd())
	root.AddCommand(topCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Discover locations via Google Places text search",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect()
		},
	}
}

func reviewsCmd() *cobra.Command {
	var perPlace int

	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Scrape reviews for collected locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviews(perPlace)
		},
	}

	cmd.Flags().IntVar(&perPlace, "per-place", 0, "reviews per place (default: from config)")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		limit     int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract signals from unanalyzed reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(batchSize, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max reviews to analyze (0 = all pending)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 25, "reviews fetched per batch")
	return cmd
}

func aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute per-location signal averages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate()
		},
	}
}

func topCmd() *cobra.Command {
	var (
		lensName   string
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show top-ranked locations under a lens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(lensName, jsonOutput, limit)
		},
	}

	cmd.Flags().StringVar(&lensName, "lens", "blended", "lens to rank by (quality, character, underrated, blended)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max locations to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the API server and the analyze/aggregate scheduler together",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: from config)")
	return cmd
}
