package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/mapyard/marker-ingest/internal/model"
	"github.com/mapyard/marker-ingest/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect import run history",
	Long:  "Commands for listing and viewing import runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		account, _ := cmd.Flags().GetString("account")
		mapID, _ := cmd.Flags().GetString("map")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			AccountID: account,
			MapID:     mapID,
			Status:    model.RunStatus(status),
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run, including its audit events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		events, err := st.ListAuditEvents(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show audit events")
		}

		return writeRunDetail(os.Stdout, run, events)
	},
}

func init() {
	runsListCmd.Flags().String("account", "", "filter by account ID")
	runsListCmd.Flags().String("map", "", "filter by map ID")
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, partial, cancelled, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// runDetail is the shape `runs show` prints: the stored run plus the audit
// events recorded during it.
type runDetail struct {
	Run    *model.ImportRun   `json:"run"`
	Events []model.AuditEvent `json:"events,omitempty"`
}

func writeRunDetail(out io.Writer, run *model.ImportRun, events []model.AuditEvent) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(runDetail{Run: run, Events: events})
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.ImportRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tACCOUNT\tMAP\tSTATUS\tADDED\tDUPES\tSKIPPED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t---\t------\t-----\t-----\t-------\t-------")

	for _, r := range runs {
		added, dupes, skipped := "-", "-", "-"
		if r.Result != nil {
			added = fmt.Sprintf("%d", r.Result.MarkersAdded)
			dupes = fmt.Sprintf("%d", r.Result.DuplicatesSkipped)
			skipped = fmt.Sprintf("%d", r.Result.RowsSkipped)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.AccountID,
			r.MapID,
			r.Status,
			added,
			dupes,
			skipped,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
