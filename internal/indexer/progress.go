package indexer

// ProgressReporter provides callbacks for reporting sync progress.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnScanStart is called when file discovery and hashing begins.
	OnScanStart()

	// OnScanComplete is called with the number of valid files and skipped files.
	OnScanComplete(validFiles, skippedFiles int)

	// OnChangesDetected is called on incremental syncs once the diff is known.
	OnChangesDetected(changes *ChangeSet)

	// OnEmbeddingStart is called before generating embeddings.
	OnEmbeddingStart(totalChunks int)

	// OnEmbeddingProgress is called after each provider batch.
	OnEmbeddingProgress(processedChunks, totalChunks int)

	// OnWriting is called when writing chunks to the vector store begins.
	OnWriting(totalChunks int)

	// OnComplete is called when a sync completes successfully.
	OnComplete(result *SyncResult)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnScanStart()                                   {}
func (n *NoOpProgressReporter) OnScanComplete(validFiles, skippedFiles int)    {}
func (n *NoOpProgressReporter) OnChangesDetected(changes *ChangeSet)           {}
func (n *NoOpProgressReporter) OnEmbeddingStart(totalChunks int)               {}
func (n *NoOpProgressReporter) OnEmbeddingProgress(processedChunks, total int) {}
func (n *NoOpProgressReporter) OnWriting(totalChunks int)                      {}
func (n *NoOpProgressReporter) OnComplete(result *SyncResult)                  {}
