package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigDirName is the per-project directory holding config.yml.
// It is a dot-directory, so it is never indexed.
const ConfigDirName = ".greppy"

// EnvPrefix prefixes every environment override (e.g. GREPPY_EMBEDDING_MODEL).
const EnvPrefix = "GREPPY"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// envKeys are bound explicitly so overrides work for keys that never
// appear in a config file.
var envKeys = []string{
	"embedding.provider",
	"embedding.model",
	"embedding.endpoint",
	"embedding.api_key",
	"embedding.dimensions",
	"embedding.batch_size",
	"embedding.concurrency",
	"embedding.timeout",
	"embedding.max_retries",
	"embedding.max_text_chars",
	"embedding.rate_limit",
	"embedding.cache_size",
	"embedding.query_prefix",
	"embedding.document_prefix",
	"chunking.max_chunk_size",
	"chunking.overlap_lines",
	"chunking.min_chunk_chars",
	"chunking.min_alnum_ratio",
	"files.max_file_size",
	"files.ignore",
	"indexing.concurrency",
	"indexing.use_git",
	"storage.data_dir",
	"storage.write_batch_size",
	"storage.compress",
	"watch.debounce",
	"search.default_limit",
	"log.level",
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (GREPPY_*)
// 2. Config file (.greppy/config.yml or .greppy/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, ConfigDirName))

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// GREPPY_EMBEDDING_PROVIDER -> embedding.provider
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.endpoint", d.Embedding.Endpoint)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.concurrency", d.Embedding.Concurrency)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)
	v.SetDefault("embedding.max_retries", d.Embedding.MaxRetries)
	v.SetDefault("embedding.max_text_chars", d.Embedding.MaxTextChars)
	v.SetDefault("embedding.rate_limit", d.Embedding.RateLimit)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)
	v.SetDefault("embedding.query_prefix", d.Embedding.QueryPrefix)
	v.SetDefault("embedding.document_prefix", d.Embedding.DocumentPrefix)

	v.SetDefault("chunking.max_chunk_size", d.Chunking.MaxChunkSize)
	v.SetDefault("chunking.overlap_lines", d.Chunking.OverlapLines)
	v.SetDefault("chunking.min_chunk_chars", d.Chunking.MinChunkChars)
	v.SetDefault("chunking.min_alnum_ratio", d.Chunking.MinAlnumRatio)

	v.SetDefault("files.max_file_size", d.Files.MaxFileSize)
	v.SetDefault("files.sniff_bytes", d.Files.SniffBytes)
	v.SetDefault("files.max_line_length", d.Files.MaxLineLength)
	v.SetDefault("files.minified_check_lines", d.Files.MinifiedCheckLines)
	v.SetDefault("files.extensions", d.Files.Extensions)
	v.SetDefault("files.skip_dirs", d.Files.SkipDirs)
	v.SetDefault("files.skip_files", d.Files.SkipFiles)
	v.SetDefault("files.ignore", d.Files.Ignore)

	v.SetDefault("indexing.concurrency", d.Indexing.Concurrency)
	v.SetDefault("indexing.use_git", d.Indexing.UseGit)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.write_batch_size", d.Storage.WriteBatchSize)
	v.SetDefault("storage.compress", d.Storage.Compress)

	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("search.default_limit", d.Search.DefaultLimit)
	v.SetDefault("search.cache_size", d.Search.CacheSize)
	v.SetDefault("search.cache_ttl", d.Search.CacheTTL)

	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
