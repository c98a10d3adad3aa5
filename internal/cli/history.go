package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/greppy/internal/journal"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List recent sync runs of a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := openProject(argOr(args, "."))
	if err != nil {
		return err
	}
	defer p.Close()

	runs, err := p.journal.List(ctx, p.key, historyLimit)
	if err != nil {
		return err
	}
	printRuns(cmd.OutOrStdout(), runs)
	return nil
}

func printRuns(w io.Writer, runs []*journal.SyncRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No sync runs recorded.")
		return
	}
	for _, run := range runs {
		fmt.Fprintln(w, formatRun(run))
	}
}

func printLastRun(w io.Writer, run *journal.SyncRun) {
	if run == nil {
		return
	}
	state := "succeeded"
	if !run.Succeeded() {
		state = "failed: " + run.Error
	}
	fmt.Fprintf(w, "  Last sync: %s %s, %s\n", run.Kind, humanize.Time(run.FinishedAt), state)
}
