package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/greppy/internal/embed"
	"github.com/mvp-joe/greppy/internal/indexer"
)

var (
	forceFlag bool
	quietFlag bool
	watchFlag bool
	noWait    bool
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase for semantic search",
	Long: `Index scans the project, splits every eligible file into overlapping
line-based chunks, embeds them and stores them in the local vector store.

The first run (or --force) rebuilds the whole index. Later runs only
re-embed files whose content changed since the last sync.

Examples:
  # Index the current directory
  greppy index

  # Rebuild from scratch
  greppy index --force ./myproject

  # Keep the index in sync while you edit
  greppy index --watch

  # Give up at once if another sync is running
  greppy index --no-wait
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Force a full reindex")
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and reindex incrementally")
	indexCmd.Flags().BoolVar(&noWait, "no-wait", false, "Fail instead of waiting when another sync is running")
}

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := openProject(argOr(args, "."))
	if err != nil {
		return err
	}
	defer p.Close()

	out := cmd.OutOrStdout()
	if err := checkProvider(ctx, p.provider, out); err != nil {
		return err
	}

	if !quietFlag {
		fmt.Fprintf(out, "Indexing %s...\n", p.root)
	}
	p.syncer.SetProgress(NewCLIProgressReporter(cmd.ErrOrStderr(), quietFlag))
	p.syncer.SetNoWait(noWait)

	result, err := p.syncer.Sync(ctx, forceFlag)
	if err != nil {
		if errors.Is(err, indexer.ErrSyncInProgress) {
			fmt.Fprintf(out, "Another sync is running for %s.\n", p.root)
			return err
		}
		if ctx.Err() != nil {
			return errors.New("indexing cancelled")
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	stats, err := p.syncer.Stats(ctx)
	if err != nil {
		return err
	}
	printSyncSummary(out, result, stats.Chunks)

	if watchFlag {
		p.syncer.SetNoWait(false)
		return watchProject(ctx, p, out)
	}
	return nil
}

// checkProvider verifies the embedding provider is reachable and has its
// model before any work is done.
func checkProvider(ctx context.Context, provider embed.Provider, out io.Writer) error {
	if err := provider.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	health, err := provider.Check(ctx)
	if err != nil || !health.Reachable {
		fmt.Fprintln(out, "Is the embedding server running? For Ollama start it with: ollama serve")
		if err == nil {
			err = embed.ErrProviderUnavailable
		}
		return fmt.Errorf("embedding provider unreachable: %w", err)
	}
	if !health.ModelAvailable {
		fmt.Fprintf(out, "Install the model first (for Ollama: ollama pull %s)\n", health.Model)
		return fmt.Errorf("%w: %s", embed.ErrModelNotFound, health.Model)
	}
	return nil
}

func argOr(args []string, def string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return def
}
