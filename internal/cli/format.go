package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/indexer"
	"github.com/mvp-joe/greppy/internal/journal"
)

// printSyncSummary prints the outcome of one sync and the resulting chunk total.
func printSyncSummary(w io.Writer, result *indexer.SyncResult, totalChunks int) {
	changed := result.FilesAdded + result.FilesModified + result.FilesDeleted
	switch {
	case result.Kind == journal.KindIncremental && changed == 0:
		fmt.Fprintf(w, "Index up to date (%s chunks).\n", humanize.Comma(int64(totalChunks)))
	case result.Kind == journal.KindFull:
		fmt.Fprintf(w, "Done! Indexed %s chunks from %s files in %s.\n",
			humanize.Comma(int64(result.ChunksAdded)), humanize.Comma(int64(result.FilesAdded)),
			formatDuration(result.Duration))
	default:
		fmt.Fprintf(w, "Done! +%d -%d chunks across %d files (total: %s) in %s.\n",
			result.ChunksAdded, result.ChunksDeleted, changed,
			humanize.Comma(int64(totalChunks)), formatDuration(result.Duration))
	}

	if result.EmbedFailures > 0 {
		fmt.Fprintf(w, "  %d chunks could not be embedded and are stored with a placeholder vector.\n", result.EmbedFailures)
	}
	printSkipped(w, result.Skipped)
}

// printSkipped breaks skipped files down by reason.
func printSkipped(w io.Writer, skipped *files.Skipped) {
	if skipped == nil || skipped.Total() == 0 {
		return
	}
	fmt.Fprintf(w, "  Skipped %d files: %s\n", skipped.Total(), skipped)
	if verbose {
		for _, reason := range files.Reasons {
			for _, p := range skipped.Paths(reason) {
				fmt.Fprintf(w, "    %-8s %s\n", reason, p)
			}
		}
	}
}

// formatDuration formats a duration in compact format.
// Examples: "850ms", "5.2s", "1m 3s", "1h 30m"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	seconds := int(d.Seconds())
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	if secs > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%dm", minutes)
}

// formatRun renders one journal entry on a single line.
func formatRun(run *journal.SyncRun) string {
	status := "ok"
	if !run.Succeeded() {
		status = "FAILED: " + run.Error
	}
	return fmt.Sprintf("%s  %-11s +%d ~%d -%d files, +%d -%d chunks, %s  %s",
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.Kind,
		run.FilesAdded, run.FilesModified, run.FilesDeleted,
		run.ChunksAdded, run.ChunksDeleted,
		formatDuration(run.Duration()),
		status)
}
