package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/greppy/internal/embed"
	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/journal"
	"github.com/mvp-joe/greppy/internal/manifest"
	"github.com/mvp-joe/greppy/internal/storage"
)

// SyncResult summarises one sync run.
type SyncResult struct {
	Kind           journal.Kind
	FilesAdded     int
	FilesModified  int
	FilesDeleted   int
	FilesUnchanged int
	ChunksAdded    int
	ChunksDeleted  int
	EmbedFailures  int
	Skipped        *files.Skipped
	Duration       time.Duration
}

// Stats describes the stored index of a project.
type Stats struct {
	Exists        bool
	Chunks        int
	ManifestFiles int
}

// SyncerOptions holds the collaborators and limits of a Syncer.
type SyncerOptions struct {
	Key            string // project key: collection, manifest and lock name
	Snapshotter    *Snapshotter
	Chunker        *Chunker
	Manifests      *manifest.Store
	Store          storage.VectorStore
	Embedder       *embed.Pool
	Locker         *Locker
	Progress       ProgressReporter // optional
	Journal        journal.Journal  // optional
	WriteBatchSize int
	Concurrency    int // parallel chunking workers
	Logger         *slog.Logger
}

// Syncer reconciles a project's vector store with its working tree.
// Full syncs rebuild the collection; incremental syncs touch only the files
// that changed since the manifest was last saved. At most one sync per
// project runs at a time.
type Syncer struct {
	key         string
	snapshotter *Snapshotter
	detector    *ChangeDetector
	chunker     *Chunker
	manifests   *manifest.Store
	store       storage.VectorStore
	embedder    *embed.Pool
	locker      *Locker
	noWait      bool
	progress    ProgressReporter
	journal     journal.Journal
	writeBatch  int
	concurrency int
	logger      *slog.Logger
}

// NewSyncer validates opts and creates a Syncer.
func NewSyncer(opts SyncerOptions) (*Syncer, error) {
	switch {
	case opts.Key == "":
		return nil, errors.New("syncer: project key is required")
	case opts.Snapshotter == nil, opts.Chunker == nil, opts.Manifests == nil,
		opts.Store == nil, opts.Embedder == nil, opts.Locker == nil:
		return nil, errors.New("syncer: missing collaborator")
	}
	if opts.Progress == nil {
		opts.Progress = &NoOpProgressReporter{}
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.WriteBatchSize <= 0 {
		opts.WriteBatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Syncer{
		key:         opts.Key,
		snapshotter: opts.Snapshotter,
		detector:    NewChangeDetector(opts.Key, opts.Snapshotter, opts.Manifests),
		chunker:     opts.Chunker,
		manifests:   opts.Manifests,
		store:       opts.Store,
		embedder:    opts.Embedder,
		locker:      opts.Locker,
		progress:    opts.Progress,
		journal:     opts.Journal,
		writeBatch:  opts.WriteBatchSize,
		concurrency: opts.Concurrency,
		logger:      opts.Logger.With("project", opts.Key),
	}, nil
}

// Key returns the project key.
func (s *Syncer) Key() string {
	return s.key
}

// SetProgress replaces the progress reporter. Not safe to call during a sync.
func (s *Syncer) SetProgress(p ProgressReporter) {
	if p == nil {
		p = &NoOpProgressReporter{}
	}
	s.progress = p
}

// SetNoWait makes syncs fail with ErrSyncInProgress instead of waiting
// when another sync holds the project lock.
func (s *Syncer) SetNoWait(noWait bool) {
	s.noWait = noWait
}

func (s *Syncer) acquire(ctx context.Context) (func(), error) {
	if s.noWait {
		return s.locker.TryAcquire(s.key)
	}
	return s.locker.Acquire(ctx, s.key)
}

// Sync runs a full sync when force is set, the store is empty or there is
// no manifest; otherwise an incremental sync.
func (s *Syncer) Sync(ctx context.Context, force bool) (*SyncResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	full := force || !s.manifests.Exists(s.key)
	if !full {
		count, err := s.store.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
		full = count == 0
	}
	if full {
		return s.record(ctx, journal.KindFull, s.fullSync)
	}
	return s.record(ctx, journal.KindIncremental, s.incrementalSync)
}

// FullSync rebuilds the collection from every valid file.
func (s *Syncer) FullSync(ctx context.Context) (*SyncResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.record(ctx, journal.KindFull, s.fullSync)
}

// IncrementalSync applies only the changes since the last saved manifest.
func (s *Syncer) IncrementalSync(ctx context.Context) (*SyncResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.record(ctx, journal.KindIncremental, s.incrementalSync)
}

// Pending reports the changes an incremental sync would apply, without
// touching the store or the manifest.
func (s *Syncer) Pending(ctx context.Context) (*Detection, error) {
	return s.detector.DetectChanges(ctx)
}

// Clear deletes the project's collection and manifest.
func (s *Syncer) Clear(ctx context.Context) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}
	if err := s.manifests.Delete(s.key); err != nil {
		return fmt.Errorf("delete manifest: %w", err)
	}
	s.logger.Info("index cleared")
	return nil
}

// Stats reports whether the collection exists, its size and the number of
// files in the manifest.
func (s *Syncer) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Exists:        s.store.Exists(ctx),
		ManifestFiles: len(s.manifests.Load(s.key)),
	}
	if stats.Exists {
		n, err := s.store.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
		stats.Chunks = n
	}
	return stats, nil
}

type syncFunc func(ctx context.Context, result *SyncResult) error

// record runs fn and writes the outcome to the journal, failed or not.
func (s *Syncer) record(ctx context.Context, kind journal.Kind, fn syncFunc) (*SyncResult, error) {
	started := time.Now()
	result := &SyncResult{Kind: kind, Skipped: files.NewSkipped()}

	err := fn(ctx, result)
	result.Duration = time.Since(started)

	run := &journal.SyncRun{
		ProjectKey:     s.key,
		Kind:           kind,
		StartedAt:      started,
		FinishedAt:     started.Add(result.Duration),
		FilesAdded:     result.FilesAdded,
		FilesModified:  result.FilesModified,
		FilesDeleted:   result.FilesDeleted,
		FilesUnchanged: result.FilesUnchanged,
		FilesSkipped:   result.Skipped.Total(),
		ChunksAdded:    result.ChunksAdded,
		ChunksDeleted:  result.ChunksDeleted,
		EmbedFailures:  result.EmbedFailures,
	}
	if err != nil {
		run.Error = err.Error()
	}
	if jerr := s.journal.Record(context.WithoutCancel(ctx), run); jerr != nil {
		s.logger.Warn("failed to record sync run", "error", jerr)
	}

	if err != nil {
		s.logger.Error("sync failed", "kind", kind, "error", err)
		return result, err
	}
	s.logger.Info("sync complete",
		"kind", kind,
		"added", result.FilesAdded,
		"modified", result.FilesModified,
		"deleted", result.FilesDeleted,
		"chunks_added", result.ChunksAdded,
		"chunks_deleted", result.ChunksDeleted,
		"duration", result.Duration)
	s.progress.OnComplete(result)
	return result, nil
}

func (s *Syncer) fullSync(ctx context.Context, result *SyncResult) error {
	s.progress.OnScanStart()
	snap, skipped, err := s.snapshotter.Snapshot(ctx)
	if err != nil {
		return err
	}
	result.Skipped = skipped
	s.progress.OnScanComplete(len(snap), skipped.Total())

	processed, err := s.chunkFiles(ctx, manifest.Manifest(snap).Paths())
	if err != nil {
		return err
	}

	// No manifest exists until the rebuilt collection is complete.
	if err := s.manifests.Delete(s.key); err != nil {
		return fmt.Errorf("delete manifest: %w", err)
	}
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}

	chunks := flatten(processed)
	failures, err := s.embedAndWrite(ctx, chunks)
	if err != nil {
		return err
	}

	next := make(manifest.Manifest, len(processed))
	for _, f := range processed {
		next[f.path] = f.hash
	}
	if err := s.manifests.Save(s.key, next); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	result.FilesAdded = len(processed)
	result.ChunksAdded = len(chunks)
	result.EmbedFailures = failures
	return nil
}

func (s *Syncer) incrementalSync(ctx context.Context, result *SyncResult) error {
	s.progress.OnScanStart()
	det, err := s.detector.DetectChanges(ctx)
	if err != nil {
		return err
	}
	changes := det.Changes
	result.Skipped = det.Skipped
	result.FilesUnchanged = len(changes.Unchanged)
	s.progress.OnScanComplete(len(det.Snapshot), det.Skipped.Total())
	s.progress.OnChangesDetected(changes)

	if changes.Empty() {
		return nil
	}

	stale := append(append([]string(nil), changes.Modified...), changes.Deleted...)
	for _, p := range stale {
		n, err := s.store.DeleteByFile(ctx, p)
		if err != nil {
			return fmt.Errorf("delete chunks for %s: %w", p, err)
		}
		result.ChunksDeleted += n
	}

	toChunk := append(append([]string(nil), changes.Added...), changes.Modified...)
	processed, err := s.chunkFiles(ctx, toChunk)
	if err != nil {
		return err
	}

	chunks := flatten(processed)
	failures, err := s.embedAndWrite(ctx, chunks)
	if err != nil {
		return err
	}

	next := det.Manifest.Clone()
	for _, p := range stale {
		delete(next, p)
	}
	for _, f := range processed {
		next[f.path] = f.hash
	}
	if err := s.manifests.Save(s.key, next); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	result.FilesAdded = len(changes.Added)
	result.FilesModified = len(changes.Modified)
	result.FilesDeleted = len(changes.Deleted)
	result.ChunksAdded = len(chunks)
	result.EmbedFailures = failures
	return nil
}

// chunkedFile is one file's chunks plus the hash of the bytes they came from.
type chunkedFile struct {
	path   string
	hash   string
	chunks []Chunk
}

// chunkFiles chunks paths in parallel. Files that vanished since the
// snapshot are dropped; results keep the order of paths.
func (s *Syncer) chunkFiles(ctx context.Context, paths []string) ([]chunkedFile, error) {
	root := s.snapshotter.RootDir()
	out := make([]*chunkedFile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks, hash, err := s.chunker.ChunkFile(root, p)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					s.logger.Debug("file vanished before chunking", "path", p)
				} else {
					s.logger.Warn("failed to read file", "path", p, "error", err)
				}
				return nil
			}
			out[i] = &chunkedFile{path: p, hash: hash, chunks: chunks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	processed := make([]chunkedFile, 0, len(paths))
	for _, f := range out {
		if f != nil {
			processed = append(processed, *f)
		}
	}
	return processed, nil
}

func flatten(processed []chunkedFile) []Chunk {
	var chunks []Chunk
	for _, f := range processed {
		chunks = append(chunks, f.chunks...)
	}
	return chunks
}

// embedAndWrite embeds chunks in one logical call and upserts them in
// bounded batches. Chunks whose embedding failed are stored with the
// sentinel vector and counted.
func (s *Syncer) embedAndWrite(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	s.progress.OnEmbeddingStart(len(chunks))
	results := s.embedder.EmbedAll(ctx, texts, embed.EmbedModePassage, func(p embed.BatchProgress) {
		s.progress.OnEmbeddingProgress(p.ProcessedTexts, p.TotalTexts)
	})
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dims := s.embedder.Dimensions()
	failures := 0
	docs := make([]storage.Document, len(chunks))
	for i, c := range chunks {
		vec := results[i].Vector
		if !results[i].OK() {
			failures++
			s.logger.Warn("embedding failed, storing placeholder vector",
				"path", c.FilePath, "start_line", c.StartLine, "error", results[i].Err)
			vec = embed.Sentinel(dims)
		}
		docs[i] = storage.Document{
			ID:        c.ID,
			Vector:    vec,
			Content:   c.Content,
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
		}
	}

	s.progress.OnWriting(len(docs))
	for start := 0; start < len(docs); start += s.writeBatch {
		end := min(start+s.writeBatch, len(docs))
		if err := s.store.Upsert(ctx, docs[start:end]); err != nil {
			return failures, fmt.Errorf("upsert chunks: %w", err)
		}
	}
	return failures, nil
}
