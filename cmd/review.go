package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/review"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

// -- resolve --

var resolveCmd = &cobra.Command{
	Use:   "resolve <update-id>",
	Short: "Accept or reject a pending update",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		accept, _ := cmd.Flags().GetBool("accept")
		reject, _ := cmd.Flags().GetBool("reject")
		if accept == reject {
			return eris.New("resolve: exactly one of --accept or --reject is required")
		}
		manager, _ := cmd.Flags().GetString("manager")

		if err := cfg.Validate("review"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := review.NewEngine(st).Resolve(ctx, args[0], model.DecisionFromBool(accept), manager)
		if err != nil {
			return err
		}
		formatResolution(os.Stdout, res)
		return nil
	},
}

func formatResolution(w io.Writer, res *model.Resolution) {
	fmt.Fprintf(w, "%s: %s -> %s\n", res.UpdateID, res.OldStatus, res.NewStatus)
	if res.NewStatus == model.UpdateStatusAccepted {
		fmt.Fprintf(w, "%s is now %g%% (was %s)\n", res.Audit.ItemName, res.Audit.NewValue, rateString(res.Audit.OldValue))
	}
}

// -- updates --

var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "List detected updates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		item, _ := cmd.Flags().GetString("item")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.PendingFilter{Status: model.UpdateStatus(status), Item: item, Limit: limit}
		if status == "all" {
			filter.Status = ""
		} else if !filter.Status.Valid() {
			return eris.Errorf("updates: invalid status %q", status)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		updates, err := st.ListPendingUpdates(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "updates")
		}
		if len(updates) == 0 {
			fmt.Fprintln(os.Stderr, "No updates found.")
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, updates)
		}
		formatUpdates(os.Stdout, updates)
		return nil
	},
}

func formatUpdates(w io.Writer, updates []model.PendingUpdate) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM\tCURRENT\tPROPOSED\tSTATUS\tCREATED\tEVIDENCE")
	for _, u := range updates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g%%\t%s\t%s\t%s\n",
			shortID(u.ID), u.DetectedItem, rateString(u.CurrentRate), u.ProposedRate,
			u.Status, u.CreatedAt.Format("2006-01-02 15:04"), u.EvidencePath)
	}
	_ = tw.Flush()
}

// -- items --

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List the authoritative item rates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		items, err := st.ListItems(ctx)
		if err != nil {
			return eris.Wrap(err, "items")
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No items found. Run `lexaudit seed` first.")
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, items)
		}
		formatItems(os.Stdout, items)
		return nil
	},
}

func formatItems(w io.Writer, items []model.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tRATE\tUPDATED\tDESCRIPTION")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%g%%\t%s\t%s\n", it.Name, it.Rate, it.LastUpdated.Format("2006-01-02 15:04"), it.Description)
	}
	_ = tw.Flush()
}

// -- audit --

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit log of resolved updates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		item, _ := cmd.Flags().GetString("item")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListAuditEntries(ctx, store.AuditFilter{Item: item, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "audit")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No audit entries found.")
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, entries)
		}
		formatAudit(os.Stdout, entries)
		return nil
	},
}

func formatAudit(w io.Writer, entries []model.AuditEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tITEM\tOLD\tNEW\tUPDATE\tMANAGER")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g%%\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04"), e.Action, e.ItemName,
			rateString(e.OldValue), e.NewValue, shortID(e.UpdateID), e.ManagerID)
	}
	_ = tw.Flush()
}

func rateString(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%g%%", *r)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	resolveCmd.Flags().Bool("accept", false, "accept the update and apply the new rate")
	resolveCmd.Flags().Bool("reject", false, "reject the update")
	resolveCmd.Flags().String("manager", "", "reviewer id recorded in the audit log")

	updatesCmd.Flags().String("status", "pending", "filter by status (pending, accepted, rejected, all)")
	updatesCmd.Flags().String("item", "", "filter by item name")
	updatesCmd.Flags().Int("limit", 50, "maximum updates to show")
	updatesCmd.Flags().Bool("json", false, "print as JSON")

	itemsCmd.Flags().Bool("json", false, "print as JSON")

	auditCmd.Flags().String("item", "", "filter by item name")
	auditCmd.Flags().Int("limit", 50, "maximum entries to show")
	auditCmd.Flags().Bool("json", false, "print as JSON")

	rootCmd.AddCommand(resolveCmd, updatesCmd, itemsCmd, auditCmd)
}
