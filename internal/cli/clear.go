package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearHistory bool

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear [path]",
	Short: "Delete the search index of a project",
	Long: `Clear deletes the project's vector collection and manifest, so the next
'greppy index' rebuilds from scratch. Sync history is kept unless
--history is given. The configuration (.greppy/config.yml) is preserved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearHistory, "history", false, "Also delete the sync history")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := openProject(argOr(args, "."))
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.syncer.Clear(ctx); err != nil {
		return err
	}
	if clearHistory {
		if err := p.journal.Purge(ctx, p.key); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Index cleared for %s\n", p.root)
	return nil
}
