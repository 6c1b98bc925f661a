package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pdf>...",
	Short: "Detect rate changes in local PDF documents",
	Long:  "Runs change detection and evidence highlighting on documents that are already on disk, skipping the crawl.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		report := env.Pipeline.Process(ctx, args)
		asJSON, _ := cmd.Flags().GetBool("json")
		return printReport(os.Stdout, report, asJSON)
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
