package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/greppy/internal/files"
)

var readContext int

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <file[:line|:start-end]>",
	Short: "Print a file window with line numbers",
	Long: `Read prints part of a file with line numbers.

Examples:
  greppy read src/auth.py           # first 50 lines
  greppy read src/auth.py:45        # ~50 lines centred on line 45
  greppy read src/auth.py:30-80     # lines 30 to 80
  greppy read src/auth.py:45 -c 100 # more context`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := parseLocation(args[0], readContext)
		if err != nil {
			return err
		}
		return printWindow(cmd.OutOrStdout(), win)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().IntVarP(&readContext, "context", "c", 50, "Lines of context")
}

// window is a 1-indexed inclusive line range of a file.
type window struct {
	Path       string
	Start, End int
}

// parseLocation parses "file", "file:line" or "file:start-end". A suffix
// that is not a line number is taken as part of the path.
func parseLocation(location string, context int) (window, error) {
	if context <= 0 {
		context = 50
	}
	whole := window{Path: location, Start: 1, End: context}

	i := strings.LastIndexByte(location, ':')
	if i < 0 {
		return whole, nil
	}
	file, suffix := location[:i], location[i+1:]

	if a, b, ok := strings.Cut(suffix, "-"); ok {
		start, err1 := strconv.Atoi(a)
		end, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil {
			return window{}, fmt.Errorf("invalid line range: %s", suffix)
		}
		return window{Path: file, Start: start, End: end}, nil
	}

	center, err := strconv.Atoi(suffix)
	if err != nil {
		return whole, nil
	}
	half := context / 2
	return window{Path: file, Start: max(1, center-half), End: center + half}, nil
}

// printWindow prints a "# path (lines s-e of n)" header, then each line of
// the window clamped to the file's bounds.
func printWindow(w io.Writer, win window) error {
	data, err := os.ReadFile(win.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: %s", win.Path)
		}
		return fmt.Errorf("error reading file: %w", err)
	}

	lines := splitLines(files.DecodeText(data))
	start := max(1, win.Start)
	end := min(len(lines), win.End)

	fmt.Fprintf(w, "# %s (lines %d-%d of %d)\n", win.Path, start, end, len(lines))
	for n := start; n <= end; n++ {
		fmt.Fprintf(w, "%6d\t%s\n", n, lines[n-1])
	}
	return nil
}

// splitLines splits on "\n" without a trailing empty line and drops "\r".
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
