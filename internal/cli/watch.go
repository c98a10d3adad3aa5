package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/greppy/internal/indexer"
	"github.com/mvp-joe/greppy/internal/watcher"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index in sync with file changes",
	Long: `Watch runs an incremental sync, then re-syncs after every burst of
file changes has settled (watch.debounce, 5s by default) until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	result, err := p.syncer.Sync(ctx, false)
	if err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}
	stats, err := p.syncer.Stats(ctx)
	if err != nil {
		return err
	}
	printSyncSummary(out, result, stats.Chunks)

	return watchProject(ctx, p, out)
}

// watchProject blocks until ctx is cancelled, running an incremental sync
// after each settled burst of changes. A sync in flight when ctx is
// cancelled runs to completion.
func watchProject(ctx context.Context, p *project, out io.Writer) error {
	w, err := watcher.NewFileWatcher(p.root, p.classifier, p.cfg.Watch.Debounce, p.logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	p.syncer.SetProgress(&indexer.NoOpProgressReporter{})
	syncCtx := context.WithoutCancel(ctx)

	err = w.Start(ctx, func(paths []string) {
		p.logger.Debug("changes settled", "paths", len(paths))
		result, err := p.syncer.Sync(syncCtx, false)
		if err != nil {
			p.logger.Error("sync failed", "error", err)
			return
		}
		if result.FilesAdded+result.FilesModified+result.FilesDeleted == 0 {
			return
		}
		fmt.Fprintf(out, "Synced: +%d ~%d -%d files, +%d -%d chunks (%s)\n",
			result.FilesAdded, result.FilesModified, result.FilesDeleted,
			result.ChunksAdded, result.ChunksDeleted, formatDuration(result.Duration))
	})
	if err != nil {
		_ = w.Stop()
		return err
	}

	fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)...\n", p.root)
	<-ctx.Done()
	fmt.Fprintln(out, "\nStopping watcher...")
	return w.Stop()
}
