package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/greppy/internal/search"
)

var (
	searchLimit int
	searchPath  string
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search across the indexed codebase",
	Long: `Search embeds the query and prints the closest chunks, one per line:

  path/to/file.go:42: first line of the chunk (score: 0.87)`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Number of results (default search.default_limit)")
	searchCmd.Flags().StringVarP(&searchPath, "path", "p", ".", "Project path")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := openProject(searchPath)
	if err != nil {
		return err
	}
	defer p.Close()

	s, err := p.newSearcher()
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.Search(ctx, args[0], searchLimit)
	if errors.Is(err, search.ErrNotIndexed) {
		fmt.Fprintf(cmd.OutOrStdout(), "Codebase not indexed.\nRun: greppy index %s\n", searchPath)
		return err
	}
	if err != nil {
		return err
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s:%d: %s (score: %.2f)\n", r.FilePath, r.StartLine, r.FirstLine(100), r.Score)
	}
}
