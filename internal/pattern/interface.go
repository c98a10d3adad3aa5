package pattern

import "context"

// Searcher runs literal pattern searches.
type Searcher interface {
	// Search runs req against the first available provider. A search that
	// finds nothing returns an empty Response, not an error.
	Search(ctx context.Context, req *Request) (*Response, error)
}
