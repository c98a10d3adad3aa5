package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete greppy configuration.
// It can be loaded from .greppy/config.yml with environment variable overrides.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Files     FilesConfig     `yaml:"files" mapstructure:"files"`
	Indexing  IndexingConfig  `yaml:"indexing" mapstructure:"indexing"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// EmbeddingConfig configures the embedding provider and the worker pool in front of it.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider"`               // "ollama", "openai" or "hash"
	Model          string        `yaml:"model" mapstructure:"model"`                     // e.g., "nomic-embed-text"
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`               // provider base URL
	APIKey         string        `yaml:"api_key" mapstructure:"api_key"`                 // bearer token for openai-compatible servers
	Dimensions     int           `yaml:"dimensions" mapstructure:"dimensions"`           // embedding vector dimensions
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`           // texts per provider request
	Concurrency    int           `yaml:"concurrency" mapstructure:"concurrency"`         // in-flight provider requests
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`                 // per-request timeout
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`         // retries per batch before per-item fallback
	MaxTextChars   int           `yaml:"max_text_chars" mapstructure:"max_text_chars"`   // texts are truncated to this many runes
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"`           // requests per second, 0 disables
	CacheSize      int           `yaml:"cache_size" mapstructure:"cache_size"`           // LRU entries, 0 disables
	QueryPrefix    string        `yaml:"query_prefix" mapstructure:"query_prefix"`       // prepended to search queries
	DocumentPrefix string        `yaml:"document_prefix" mapstructure:"document_prefix"` // prepended to indexed chunks
}

// ChunkingConfig defines how file content is split into chunks.
type ChunkingConfig struct {
	MaxChunkSize  int     `yaml:"max_chunk_size" mapstructure:"max_chunk_size"`   // character budget per chunk
	OverlapLines  int     `yaml:"overlap_lines" mapstructure:"overlap_lines"`     // lines carried into the next chunk
	MinChunkChars int     `yaml:"min_chunk_chars" mapstructure:"min_chunk_chars"` // shorter chunks are dropped
	MinAlnumRatio float64 `yaml:"min_alnum_ratio" mapstructure:"min_alnum_ratio"` // alnum-or-space share required
}

// FilesConfig defines which files are eligible and the heuristics that reject them.
type FilesConfig struct {
	MaxFileSize        int64    `yaml:"max_file_size" mapstructure:"max_file_size"`
	SniffBytes         int      `yaml:"sniff_bytes" mapstructure:"sniff_bytes"`
	MaxLineLength      int      `yaml:"max_line_length" mapstructure:"max_line_length"`
	MinifiedCheckLines int      `yaml:"minified_check_lines" mapstructure:"minified_check_lines"`
	Extensions         []string `yaml:"extensions" mapstructure:"extensions"`
	SkipDirs           []string `yaml:"skip_dirs" mapstructure:"skip_dirs"`
	SkipFiles          []string `yaml:"skip_files" mapstructure:"skip_files"`
	Ignore             []string `yaml:"ignore" mapstructure:"ignore"` // extra glob patterns, relative to the project root
}

// IndexingConfig controls file scanning.
type IndexingConfig struct {
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"` // parallel hash/chunk workers
	UseGit      bool `yaml:"use_git" mapstructure:"use_git"`         // prefer git ls-files for discovery
}

// StorageConfig defines where indexes, manifests and the journal live.
type StorageConfig struct {
	DataDir        string `yaml:"data_dir" mapstructure:"data_dir"` // empty means ~/.greppy
	WriteBatchSize int    `yaml:"write_batch_size" mapstructure:"write_batch_size"`
	Compress       bool   `yaml:"compress" mapstructure:"compress"`
}

// WatchConfig configures the change watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// SearchConfig configures semantic search.
type SearchConfig struct {
	DefaultLimit int           `yaml:"default_limit" mapstructure:"default_limit"`
	CacheSize    int           `yaml:"cache_size" mapstructure:"cache_size"` // cached query embeddings
	CacheTTL     time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// DefaultExtensions is the allow-list of indexable file extensions.
var DefaultExtensions = []string{
	".py", ".js", ".ts", ".tsx", ".jsx", ".go", ".rs", ".java", ".kt",
	".c", ".cpp", ".h", ".hpp", ".rb", ".php", ".swift",
	".md", ".txt", ".yaml", ".yml", ".json",
}

// DefaultSkipDirs lists directory names that are never descended into.
// Dot-directories are skipped regardless of this list.
var DefaultSkipDirs = []string{
	"node_modules", ".git", "__pycache__", ".venv", "venv", "myenv", "env",
	"dist", "build", ".next", ".nuxt", "target", ".idea", ".vscode", "vendor",
	".cache", "data", "research_data", "research_data2",
}

// DefaultSkipFiles lists lockfiles that are never indexed.
var DefaultSkipFiles = []string{
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"poetry.lock", "Pipfile.lock", "composer.lock",
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:     "ollama",
			Model:        "nomic-embed-text",
			Endpoint:     "http://localhost:11434",
			Dimensions:   768,
			BatchSize:    32,
			Concurrency:  4,
			Timeout:      30 * time.Second,
			MaxRetries:   2,
			MaxTextChars: 24000,
			CacheSize:    4096,
		},
		Chunking: ChunkingConfig{
			MaxChunkSize:  2000,
			OverlapLines:  3,
			MinChunkChars: 10,
			MinAlnumRatio: 0.3,
		},
		Files: FilesConfig{
			MaxFileSize:        512 * 1024,
			SniffBytes:         8192,
			MaxLineLength:      2000,
			MinifiedCheckLines: 10,
			Extensions:         append([]string(nil), DefaultExtensions...),
			SkipDirs:           append([]string(nil), DefaultSkipDirs...),
			SkipFiles:          append([]string(nil), DefaultSkipFiles...),
			Ignore:             []string{},
		},
		Indexing: IndexingConfig{
			Concurrency: 8,
			UseGit:      true,
		},
		Storage: StorageConfig{
			DataDir:        "", // Empty means use default ~/.greppy
			WriteBatchSize: 500,
		},
		Watch: WatchConfig{
			Debounce: 5 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			CacheSize:    256,
			CacheTTL:     10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ResolveDataDir returns the absolute data directory, expanding a leading "~".
func (c *Config) ResolveDataDir() string {
	dir := c.Storage.DataDir
	if dir == "" {
		dir = "~/.greppy"
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
