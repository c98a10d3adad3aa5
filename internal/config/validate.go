package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported embedding provider
	ErrInvalidProvider = errors.New("invalid embedding provider")

	// ErrInvalidDimensions indicates invalid embedding dimensions
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrEmptyEndpoint indicates missing embedding endpoint
	ErrEmptyEndpoint = errors.New("empty embedding endpoint")

	// ErrEmptyModel indicates missing embedding model
	ErrEmptyModel = errors.New("empty embedding model")

	// ErrInvalidBatchSize indicates a non-positive batch or worker setting
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidChunkSize indicates invalid chunk size configuration
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap indicates invalid overlap configuration
	ErrInvalidOverlap = errors.New("invalid overlap")

	// ErrInvalidRatio indicates a ratio outside [0, 1]
	ErrInvalidRatio = errors.New("invalid ratio")

	// ErrInvalidExtension indicates an extension without a leading dot
	ErrInvalidExtension = errors.New("invalid extension")

	// ErrInvalidFileLimits indicates invalid file heuristics
	ErrInvalidFileLimits = errors.New("invalid file limits")

	// ErrInvalidDuration indicates a non-positive duration
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Providers lists the supported embedding providers.
var Providers = []string{"ollama", "openai", "hash"}

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateEmbedding(&cfg.Embedding); err != nil {
		errs = append(errs, err)
	}
	if err := validateChunking(&cfg.Chunking); err != nil {
		errs = append(errs, err)
	}
	if err := validateFiles(&cfg.Files); err != nil {
		errs = append(errs, err)
	}
	if cfg.Indexing.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: indexing.concurrency must be positive, got %d", ErrInvalidBatchSize, cfg.Indexing.Concurrency))
	}
	if cfg.Storage.WriteBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: storage.write_batch_size must be positive, got %d", ErrInvalidBatchSize, cfg.Storage.WriteBatchSize))
	}
	if cfg.Watch.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("%w: watch.debounce must be positive, got %s", ErrInvalidDuration, cfg.Watch.Debounce))
	}
	if cfg.Search.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: search.default_limit must be positive, got %d", ErrInvalidBatchSize, cfg.Search.DefaultLimit))
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: got '%s'", ErrInvalidLogLevel, cfg.Log.Level))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateEmbedding(cfg *EmbeddingConfig) error {
	var errs []error

	provider := strings.ToLower(cfg.Provider)
	known := false
	for _, p := range Providers {
		if p == provider {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("%w: must be one of %s, got '%s'", ErrInvalidProvider, strings.Join(Providers, ", "), cfg.Provider))
	}

	if strings.TrimSpace(cfg.Model) == "" {
		errs = append(errs, fmt.Errorf("%w: model is required", ErrEmptyModel))
	}

	if cfg.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidDimensions, cfg.Dimensions))
	}

	// The hash provider never talks to a server.
	if provider != "hash" && strings.TrimSpace(cfg.Endpoint) == "" {
		errs = append(errs, fmt.Errorf("%w: endpoint is required", ErrEmptyEndpoint))
	}

	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.batch_size must be positive, got %d", ErrInvalidBatchSize, cfg.BatchSize))
	}
	if cfg.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.concurrency must be positive, got %d", ErrInvalidBatchSize, cfg.Concurrency))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.timeout must be positive, got %s", ErrInvalidDuration, cfg.Timeout))
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.max_retries cannot be negative, got %d", ErrInvalidBatchSize, cfg.MaxRetries))
	}
	if cfg.MaxTextChars <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.max_text_chars must be positive, got %d", ErrInvalidChunkSize, cfg.MaxTextChars))
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.rate_limit cannot be negative, got %.2f", ErrInvalidBatchSize, cfg.RateLimit))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateChunking(cfg *ChunkingConfig) error {
	var errs []error

	if cfg.MaxChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_chunk_size must be positive, got %d", ErrInvalidChunkSize, cfg.MaxChunkSize))
	}
	if cfg.OverlapLines < 0 {
		errs = append(errs, fmt.Errorf("%w: overlap_lines cannot be negative, got %d", ErrInvalidOverlap, cfg.OverlapLines))
	}
	if cfg.MinChunkChars < 0 {
		errs = append(errs, fmt.Errorf("%w: min_chunk_chars cannot be negative, got %d", ErrInvalidChunkSize, cfg.MinChunkChars))
	}
	if cfg.MinAlnumRatio < 0 || cfg.MinAlnumRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: min_alnum_ratio must be within [0, 1], got %.2f", ErrInvalidRatio, cfg.MinAlnumRatio))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateFiles(cfg *FilesConfig) error {
	var errs []error

	if cfg.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_size must be positive, got %d", ErrInvalidFileLimits, cfg.MaxFileSize))
	}
	if cfg.SniffBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: sniff_bytes must be positive, got %d", ErrInvalidFileLimits, cfg.SniffBytes))
	}
	if cfg.MaxLineLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_line_length must be positive, got %d", ErrInvalidFileLimits, cfg.MaxLineLength))
	}
	if cfg.MinifiedCheckLines < 0 {
		errs = append(errs, fmt.Errorf("%w: minified_check_lines cannot be negative, got %d", ErrInvalidFileLimits, cfg.MinifiedCheckLines))
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: '%s' must start with '.'", ErrInvalidExtension, ext))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
