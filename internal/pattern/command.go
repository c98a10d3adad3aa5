package pattern

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// ValidateRequest validates a Request and returns an error if invalid
func ValidateRequest(req *Request) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}
	if req.Pattern == "" {
		return errors.New("pattern is required")
	}
	if req.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

// searchPath returns the request path, defaulting to the current directory.
func searchPath(req *Request) string {
	if req.Path == "" {
		return "."
	}
	return req.Path
}

// parseLines parses "path:line:text" output as produced by rg -n and grep -rn.
// Lines that do not fit the format are skipped.
func parseLines(data []byte) []Match {
	var matches []Match
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if m, ok := parseLine(scanner.Text()); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func parseLine(line string) (Match, bool) {
	// The line number is the first all-digit field after a colon, which
	// tolerates colons inside file names.
	rest := line
	offset := 0
	for {
		i := strings.IndexByte(rest, ':')
		if i < 0 {
			return Match{}, false
		}
		after := rest[i+1:]
		j := strings.IndexByte(after, ':')
		if j > 0 {
			if n, err := strconv.Atoi(after[:j]); err == nil && n > 0 {
				return Match{
					FilePath: strings.TrimPrefix(line[:offset+i], "./"),
					Line:     n,
					Text:     after[j+1:],
				}, true
			}
		}
		offset += i + 1
		rest = after
	}
}

// applyLimit truncates matches to the request limit, keeping Total.
func applyLimit(resp *Response, limit int) *Response {
	if limit <= 0 || len(resp.Matches) <= limit {
		return resp
	}
	resp.Matches = resp.Matches[:limit]
	return resp
}
