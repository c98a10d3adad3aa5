package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/greppy/internal/pattern"
)

var (
	exactLimit      int
	exactIgnoreCase bool
	exactPath       string
)

// exactCmd represents the exact command
var exactCmd = &cobra.Command{
	Use:   "exact <pattern>",
	Short: "Exact pattern search (ripgrep, falling back to grep)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExact,
}

func init() {
	rootCmd.AddCommand(exactCmd)
	exactCmd.Flags().IntVarP(&exactLimit, "limit", "n", 0, "Max number of results")
	exactCmd.Flags().BoolVarP(&exactIgnoreCase, "ignore-case", "i", false, "Case-insensitive search")
	exactCmd.Flags().StringVarP(&exactPath, "path", "p", ".", "Path to search")
}

func runExact(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	e := pattern.NewExecutor(wd, nil, nil)
	resp, err := e.Search(ctx, &pattern.Request{
		Pattern:    args[0],
		Path:       exactPath,
		IgnoreCase: exactIgnoreCase,
		Limit:      exactLimit,
	})
	if err != nil {
		return err
	}
	printMatches(cmd.OutOrStdout(), resp)
	return nil
}

func printMatches(w io.Writer, resp *pattern.Response) {
	if len(resp.Matches) == 0 {
		fmt.Fprintln(w, "No matches found.")
		return
	}
	for _, m := range resp.Matches {
		fmt.Fprintf(w, "%s:%d:%s\n", m.FilePath, m.Line, m.Text)
	}
	if resp.Total > len(resp.Matches) {
		fmt.Fprintf(w, "(showing %d of %d matches)\n", len(resp.Matches), resp.Total)
	}
}
