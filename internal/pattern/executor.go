package pattern

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	// ExecutionTimeout is the maximum time allowed for one provider run.
	ExecutionTimeout = 30 * time.Second
)

// ErrNoProvider is returned when no provider binary is installed or every
// provider failed.
var ErrNoProvider = errors.New("no search tool available (install ripgrep or grep)")

// Executor runs requests against an ordered list of providers, falling back
// to the next one when a tool is missing or fails.
type Executor struct {
	root      string
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

var _ Searcher = (*Executor)(nil)

// NewExecutor searches beneath root. Nil providers means DefaultProviders.
func NewExecutor(root string, providers []Provider, logger *slog.Logger) *Executor {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{root: root, providers: providers, timeout: ExecutionTimeout, logger: logger}
}

// Search runs req with the first provider that completes.
//
// Exit status 0 means matches, 1 means no matches, and anything else is a
// provider failure that moves on to the next provider.
func (e *Executor) Search(ctx context.Context, req *Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	var errs []error
	for _, p := range e.providers {
		if !Available(p) {
			continue
		}
		resp, err := e.run(ctx, p, req)
		if err == nil {
			return applyLimit(resp, req.Limit), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Debug("search provider failed", "provider", p.Name(), "error", err)
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, ErrNoProvider
	}
	return nil, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
}

func (e *Executor) run(ctx context.Context, p Provider, req *Request) (*Response, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, p.Binary(), p.Args(req)...)
	cmd.Dir = e.root
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	tookMs := time.Since(startTime).Milliseconds()

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out (%s)", p.Name(), e.timeout)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s error: %s", p.Name(), msg)
			}
			return nil, fmt.Errorf("%s failed: %w", p.Name(), err)
		}
		// Exit status 1: no matches.
		return &Response{Provider: p.Name(), TookMs: tookMs}, nil
	}

	matches := parseLines(stdout.Bytes())
	return &Response{
		Matches:  matches,
		Total:    len(matches),
		Provider: p.Name(),
		TookMs:   tookMs,
	}, nil
}
