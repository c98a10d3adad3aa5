package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the index status of a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	path := argOr(args, ".")
	p, err := openProject(path)
	if err != nil {
		return err
	}
	defer p.Close()

	out := cmd.OutOrStdout()
	stats, err := p.syncer.Stats(ctx)
	if err != nil {
		return err
	}

	if !stats.Exists {
		fmt.Fprintln(out, "No index found")
		fmt.Fprintf(out, "  Project: %s\n", p.key)
		fmt.Fprintf(out, "Run: greppy index %s\n", path)
		return nil
	}

	fmt.Fprintln(out, "Index exists")
	fmt.Fprintf(out, "  Project: %s\n", p.key)
	fmt.Fprintf(out, "  Root:    %s\n", p.root)
	if p.cfg.Indexing.UseGit && p.git.IsWorkTree(ctx, p.root) {
		if top := p.git.GetWorktreeRoot(ctx, p.root); top != p.root {
			fmt.Fprintf(out, "  Git:     %s\n", top)
		}
	}
	fmt.Fprintf(out, "  Chunks:  %s\n", humanize.Comma(int64(stats.Chunks)))
	fmt.Fprintf(out, "  Files:   %s\n", humanize.Comma(int64(stats.ManifestFiles)))

	det, err := p.syncer.Pending(ctx)
	if err != nil {
		return err
	}
	c := det.Changes
	if c.Empty() {
		fmt.Fprintln(out, "  Up to date")
	} else {
		fmt.Fprintf(out, "  Pending: +%d ~%d -%d files\n", len(c.Added), len(c.Modified), len(c.Deleted))
	}

	last, err := p.journal.Last(ctx, p.key)
	if err != nil {
		return err
	}
	printLastRun(out, last)
	return nil
}
