package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/bito-analyst/internal/domain/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage the analysis job queue",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs in a state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		stateFlag, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")
		state, err := jobs.ParseState(stateFlag)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.Jobs.ListByState(ctx, state, limit)
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}
		formatJobs(os.Stdout, list)
		return nil
	},
}

// -- jobs stats --

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count jobs by state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Jobs.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "jobs stats")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATE\tCOUNT")
		for _, s := range jobs.States {
			fmt.Fprintf(w, "%s\t%d\n", s, stats[s])
		}
		return w.Flush()
	},
}

// -- jobs retry --

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Revive a dead job and put its analysis back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		j, err := a.svc.Retry(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "job %s requeued for analysis %d\n", j.ID, j.AnalysisID)
		return nil
	},
}

func formatJobs(out io.Writer, list []*jobs.Job) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tANALYSIS\tSTATE\tATTEMPTS\tRUN AT\tLAST ERROR")
	for _, j := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.AnalysisID, j.State, j.Attempts, j.MaxAttempts,
			j.RunAt.Format(time.RFC3339), truncate(j.LastError, 60))
	}
	w.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	jobsListCmd.Flags().String("state", string(jobs.StateDead), "job state (pending, processing, completed, failed, dead)")
	jobsListCmd.Flags().Int("limit", 50, "max rows")
	jobsCmd.AddCommand(jobsListCmd, jobsStatsCmd, jobsRetryCmd)
	rootCmd.AddCommand(jobsCmd)
}
