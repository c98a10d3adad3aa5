package pattern

// Request is a literal pattern search over a directory tree.
type Request struct {
	Pattern    string // regular expression in the tool's dialect
	Path       string // file or directory to search; empty means "."
	IgnoreCase bool
	Limit      int // max matches returned, 0 for no limit
}

// Match is one matching line.
type Match struct {
	FilePath string
	Line     int // 1-indexed
	Text     string
}

// Response holds the matches of one search.
type Response struct {
	Matches  []Match
	Total    int    // matches found before the limit was applied
	Provider string // tool that produced the matches
	TookMs   int64
}
