package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/greppy/internal/indexer"
)

// CLIProgressReporter reports sync progress with a progress bar on w.
type CLIProgressReporter struct {
	w            io.Writer
	quiet        bool
	embeddingBar *progressbar.ProgressBar
	processed    int
}

var _ indexer.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(w io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{w: w, quiet: quiet}
}

func (c *CLIProgressReporter) OnScanStart() {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.w, "Scanning files...")
}

func (c *CLIProgressReporter) OnScanComplete(validFiles, skippedFiles int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.w, "Found %s files (%s skipped)\n", humanize.Comma(int64(validFiles)), humanize.Comma(int64(skippedFiles)))
}

func (c *CLIProgressReporter) OnChangesDetected(changes *indexer.ChangeSet) {
	if c.quiet || changes.Empty() {
		return
	}
	fmt.Fprintf(c.w, "Incremental update: %d new, %d modified, %d deleted files\n",
		len(changes.Added), len(changes.Modified), len(changes.Deleted))
}

func (c *CLIProgressReporter) OnEmbeddingStart(totalChunks int) {
	if c.quiet || totalChunks == 0 {
		return
	}
	c.processed = 0
	c.embeddingBar = progressbar.NewOptions(totalChunks,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Generating embeddings"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("chunks/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.w)
		}),
	)
}

func (c *CLIProgressReporter) OnEmbeddingProgress(processedChunks, totalChunks int) {
	if c.quiet || c.embeddingBar == nil {
		return
	}
	if delta := processedChunks - c.processed; delta > 0 {
		_ = c.embeddingBar.Add(delta)
		c.processed = processedChunks
	}
}

func (c *CLIProgressReporter) OnWriting(totalChunks int) {
	if c.quiet {
		return
	}
	if c.embeddingBar != nil {
		_ = c.embeddingBar.Finish()
		c.embeddingBar = nil
	}
	fmt.Fprintf(c.w, "Writing %s chunks...\n", humanize.Comma(int64(totalChunks)))
}

func (c *CLIProgressReporter) OnComplete(result *indexer.SyncResult) {
	if c.embeddingBar != nil {
		_ = c.embeddingBar.Finish()
		c.embeddingBar = nil
	}
}
