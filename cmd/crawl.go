package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/R204570/LexAudit-Flow/internal/pipeline"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a source page, detect rate changes and queue them for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "crawl")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Run(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "crawl")
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return printReport(os.Stdout, report, asJSON)
	},
}

// printReport writes a pipeline report as a table or indented JSON.
func printReport(w io.Writer, r *pipeline.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if len(r.Results) == 0 {
		fmt.Fprintln(w, "No documents processed.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tCHANGE\tITEM\tNEW RATE\tUPDATE\tEVIDENCE")
	for _, res := range r.Results {
		change := "no"
		if res.Error != "" {
			change = "error: " + res.Error
		} else if res.ChangeDetected {
			change = "yes"
		}
		rate := ""
		if res.NewRate != nil {
			rate = fmt.Sprintf("%g%%", *res.NewRate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			res.Document, change, res.Item, rate, shortID(res.UpdateID), res.EvidencePath)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d document(s), %d change(s), %d failure(s)\n", len(r.Results), r.Changes(), r.Failures())
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	crawlCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(crawlCmd)
}
