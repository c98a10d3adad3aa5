package files

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Reason explains why a file was excluded from indexing.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonLarge    Reason = "large"
	ReasonBinary   Reason = "binary"
	ReasonMinified Reason = "minified"
	ReasonEmpty    Reason = "empty"
	ReasonEncoding Reason = "encoding"
	ReasonError    Reason = "error"
)

// Reasons lists every skip reason in report order.
var Reasons = []Reason{ReasonLarge, ReasonBinary, ReasonMinified, ReasonEmpty, ReasonEncoding, ReasonError}

// Skipped accumulates excluded files by reason. Safe for concurrent use.
type Skipped struct {
	mu    sync.Mutex
	paths map[Reason][]string
}

// NewSkipped creates an empty report.
func NewSkipped() *Skipped {
	return &Skipped{paths: make(map[Reason][]string)}
}

// Add records path under reason. ReasonNone is ignored.
func (s *Skipped) Add(reason Reason, path string) {
	if reason == ReasonNone {
		return
	}
	s.mu.Lock()
	s.paths[reason] = append(s.paths[reason], path)
	s.mu.Unlock()
}

// Paths returns the sorted paths recorded for reason.
func (s *Skipped) Paths(reason Reason) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.paths[reason]...)
	sort.Strings(out)
	return out
}

// Counts returns the number of files per reason, omitting empty reasons.
func (s *Skipped) Counts() map[Reason]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Reason]int, len(s.paths))
	for r, p := range s.paths {
		if len(p) > 0 {
			out[r] = len(p)
		}
	}
	return out
}

// Total returns the number of skipped files.
func (s *Skipped) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.paths {
		n += len(p)
	}
	return n
}

// String formats the report as "2 large, 1 binary".
func (s *Skipped) String() string {
	counts := s.Counts()
	var parts []string
	for _, r := range Reasons {
		if n := counts[r]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, r))
		}
	}
	return strings.Join(parts, ", ")
}
