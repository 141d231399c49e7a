package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/braxsimmons/Cliopa/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs",
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

		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		var after time.Time
		if since > 0 {
			after = time.Now().Add(-since)
		}
		runs, err := st.ListRuns(ctx, after, limit)
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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show call, report and cache counts",
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

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsCmd.Flags().Duration("since", 0, "only runs started within this window (0 = all)")
	runsCmd.Flags().Int("limit", 20, "max runs to show")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(statusCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.SyncRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSTARTED\tDURATION\tINSERTED\tREPORTS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t--------\t-------\t-----")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		inserted, reports := "-", "-"
		if r.Summary != nil {
			inserted = fmt.Sprint(r.Summary.Inserted)
			reports = fmt.Sprintf("%d/%d", r.Summary.ReportsSaved, r.Summary.ReportsSaved+r.Summary.ReportErrors)
		}
		msg := r.Error
		if len(msg) > 40 {
			msg = msg[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Kind,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			inserted,
			reports,
			msg,
		)
	}
	_ = w.Flush()
}

// formatSummary writes the stage counts of one run to out.
func formatSummary(out io.Writer, s *model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Extracted:\t%d\n", s.Extracted)
	_, _ = fmt.Fprintf(w, "Already synced:\t%d\n", s.AlreadySynced)
	_, _ = fmt.Fprintf(w, "Fresh:\t%d\n", s.Fresh)
	_, _ = fmt.Fprintf(w, "With transcript:\t%d\n", s.WithTranscript)
	_, _ = fmt.Fprintf(w, "Agents created:\t%d\n", s.AgentsCreated)
	if s.AgentsFailed > 0 {
		_, _ = fmt.Fprintf(w, "Agents failed:\t%d\n", s.AgentsFailed)
	}
	_, _ = fmt.Fprintf(w, "Inserted:\t%d\n", s.Inserted)
	if s.InsertSkipped > 0 {
		_, _ = fmt.Fprintf(w, "Insert skipped:\t%d\n", s.InsertSkipped)
	}
	if s.Rescanned > 0 {
		_, _ = fmt.Fprintf(w, "Rescanned:\t%d\n", s.Rescanned)
	}
	_, _ = fmt.Fprintf(w, "Scored:\t%d (%d from cache)\n", s.Scored, s.CacheHits)
	_, _ = fmt.Fprintf(w, "Score skipped:\t%d\n", s.ScoreSkipped)
	_, _ = fmt.Fprintf(w, "Score failed:\t%d\n", s.ScoreFailed)
	_, _ = fmt.Fprintf(w, "Reports saved:\t%d\n", s.ReportsSaved)
	_, _ = fmt.Fprintf(w, "Report errors:\t%d\n", s.ReportErrors)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	_ = w.Flush()
}

// formatStats writes store-wide counts to out.
func formatStats(out io.Writer, s *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	statuses := make([]string, 0, len(s.CallsByStatus))
	for status := range s.CallsByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		_, _ = fmt.Fprintf(w, "Calls %s:\t%d\n", status, s.CallsByStatus[model.CallStatus(status)])
	}
	_, _ = fmt.Fprintf(w, "Agents:\t%d\n", s.Agents)
	_, _ = fmt.Fprintf(w, "Reports:\t%d\n", s.Reports)
	_, _ = fmt.Fprintf(w, "Cache entries:\t%d\n", s.CacheEntries)
	_, _ = fmt.Fprintf(w, "Cache hits:\t%d\n", s.CacheHits)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
