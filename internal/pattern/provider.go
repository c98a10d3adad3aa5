package pattern

import (
	"os/exec"
	"strconv"
)

// Provider is a line-oriented search tool that prints "path:line:text".
type Provider interface {
	// Name identifies the provider in responses and logs.
	Name() string
	// Binary is the executable looked up on PATH.
	Binary() string
	// Args builds the argument list for req.
	Args(req *Request) []string
}

// Available reports whether p's binary is on PATH.
func Available(p Provider) bool {
	_, err := exec.LookPath(p.Binary())
	return err == nil
}

// RipgrepProvider searches with rg.
type RipgrepProvider struct{}

func (RipgrepProvider) Name() string   { return "ripgrep" }
func (RipgrepProvider) Binary() string { return "rg" }

func (RipgrepProvider) Args(req *Request) []string {
	args := []string{"-n", "--color=never", "--no-heading"}
	if req.IgnoreCase {
		args = append(args, "-i")
	}
	if req.Limit > 0 {
		args = append(args, "--max-count="+strconv.Itoa(req.Limit))
	}
	return append(args, "-e", req.Pattern, searchPath(req))
}

// GrepProvider searches with grep -r.
type GrepProvider struct{}

func (GrepProvider) Name() string   { return "grep" }
func (GrepProvider) Binary() string { return "grep" }

func (GrepProvider) Args(req *Request) []string {
	args := []string{"-rn", "-I"}
	if req.IgnoreCase {
		args = append(args, "-i")
	}
	if req.Limit > 0 {
		args = append(args, "-m"+strconv.Itoa(req.Limit))
	}
	return append(args, "-e", req.Pattern, searchPath(req))
}

// DefaultProviders returns ripgrep with grep as fallback.
func DefaultProviders() []Provider {
	return []Provider{RipgrepProvider{}, GrepProvider{}}
}
