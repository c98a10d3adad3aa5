package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mvp-joe/greppy/internal/cache"
	"github.com/mvp-joe/greppy/internal/config"
	"github.com/mvp-joe/greppy/internal/embed"
	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/git"
	"github.com/mvp-joe/greppy/internal/indexer"
	"github.com/mvp-joe/greppy/internal/journal"
	"github.com/mvp-joe/greppy/internal/manifest"
	"github.com/mvp-joe/greppy/internal/search"
	"github.com/mvp-joe/greppy/internal/storage"
)

// project bundles everything a command needs to work on one indexed tree.
type project struct {
	root   string
	key    string
	cfg    *config.Config
	layout cache.Layout

	classifier *files.Classifier
	git        git.Operations
	store      storage.VectorStore
	manifests  *manifest.Store
	journal    *journal.SQLiteJournal
	provider   embed.Provider
	pool       *embed.Pool
	syncer     *indexer.Syncer
	logger     *slog.Logger
}

// resolveRoot returns the absolute path of an existing directory.
func resolveRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("path does not exist: %s", path)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", path)
	}
	return abs, nil
}

// openProject loads the project's configuration and wires the store,
// manifest, journal, embedder and syncer for it.
func openProject(path string) (*project, error) {
	root, err := resolveRoot(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(rootCmd.ErrOrStderr(), cfg.Log.Level)
	logger := slog.Default()

	key, err := cache.ProjectKey(root)
	if err != nil {
		return nil, err
	}
	logger = logger.With("project", key)

	layout := cache.NewLayout(cfg.ResolveDataDir())
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	p := &project{root: root, key: key, cfg: cfg, layout: layout, logger: logger}
	if err := p.wire(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *project) wire() error {
	var err error

	p.store, err = storage.OpenChromem(p.layout.ChromaDir(), p.cfg.Storage.Compress, p.key, p.cfg.Embedding.Dimensions)
	if err != nil {
		return err
	}
	p.manifests = manifest.NewStore(p.layout.ManifestDir(), p.logger)

	p.journal, err = journal.Open(p.layout.JournalPath())
	if err != nil {
		return fmt.Errorf("failed to open sync journal: %w", err)
	}

	p.provider, err = embed.NewProvider(p.cfg.Embedding)
	if err != nil {
		return err
	}
	p.pool = embed.NewPool(p.provider, embed.PoolOptionsFromConfig(p.cfg.Embedding), p.logger)

	p.classifier = files.New(files.OptionsFromConfig(p.cfg.Files))
	p.git = git.NewOperations()
	discovery, err := indexer.NewFileDiscovery(p.root, p.classifier, p.cfg.Files.Ignore,
		p.cfg.Indexing.UseGit, p.git, p.logger)
	if err != nil {
		return err
	}

	p.syncer, err = indexer.NewSyncer(indexer.SyncerOptions{
		Key:            p.key,
		Snapshotter:    indexer.NewSnapshotter(discovery, p.cfg.Indexing.Concurrency),
		Chunker:        indexer.NewChunker(indexer.ChunkerOptionsFromConfig(p.cfg.Chunking)),
		Manifests:      p.manifests,
		Store:          p.store,
		Embedder:       p.pool,
		Locker:         indexer.NewLocker(p.layout.LockDir()),
		Journal:        p.journal,
		WriteBatchSize: p.cfg.Storage.WriteBatchSize,
		Concurrency:    p.cfg.Indexing.Concurrency,
		Logger:         p.logger,
	})
	return err
}

// newSearcher creates a semantic searcher over the project's store.
func (p *project) newSearcher() (*search.Searcher, error) {
	return search.New(p.store, p.pool, search.Options{
		DefaultLimit: p.cfg.Search.DefaultLimit,
		CacheSize:    p.cfg.Search.CacheSize,
		CacheTTL:     p.cfg.Search.CacheTTL,
		Logger:       p.logger,
	})
}

// Close releases every handle the project opened.
func (p *project) Close() {
	if p.provider != nil {
		_ = p.provider.Close()
	}
	if p.journal != nil {
		if err := p.journal.Close(); err != nil {
			p.logger.Warn("failed to close journal", "error", err)
		}
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
