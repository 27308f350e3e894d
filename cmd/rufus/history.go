package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/rufus/internal/config"
	"github.com/nao1215/rufus/internal/database"
	"github.com/nao1215/rufus/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "List stored crawl runs",
		Long: `History lists the crawl runs stored in the result database, newest first.
Give a seed URL to list only the runs of that seed.

Examples:
  # List all runs
  rufus history

  # List the runs of one seed
  rufus history https://example.com

  # Show a stored run
  rufus history show 3 --markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory of the result database")
	cmd.Flags().IntP("limit", "l", 20,
		"Maximum number of runs listed (0 lists all)")

	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

// runHistoryCmd lists stored runs.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	var seed string
	if len(args) == 1 {
		seed = args[0]
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return err
	}
	defer db.Close()

	return listRuns(cmd.Context(), db, seed, limit, cmd.OutOrStdout())
}

// listRuns prints one line per stored run.
func listRuns(ctx context.Context, db *database.ResultDB, seed string, limit int, w io.Writer) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSEED\tPASSES\tRESULTS\tMEAN\tTOP\tINSTRUCTION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%.2f\t%.2f\t%s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Seed,
			r.Passes,
			r.ResultCount,
			r.MeanScore,
			r.TopScore,
			r.Instruction,
		)
	}
	return tw.Flush()
}

// newHistoryShowCmd creates the history show subcommand.
func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored crawl run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output the full JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Output a Markdown report")

	return cmd
}

// runHistoryShowCmd prints one stored run.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return config.ErrConflictingReportFormats
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return err
	}
	defer db.Close()

	rep, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("run %d not found", id)
	}

	out := cmd.OutOrStdout()
	var w report.Writer
	switch {
	case jsonOut:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case markdownOut:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(getVerboseFlag(cmd)))
	}
	_, err = w.Write(rep)
	return err
}
