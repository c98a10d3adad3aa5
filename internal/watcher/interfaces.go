package watcher

import "context"

// FileWatcher monitors a project tree and reports debounced batches of changes.
type FileWatcher interface {
	// Start begins watching, calling callback once per settled burst of changes.
	Start(ctx context.Context, callback func(paths []string)) error

	// Stop stops the watcher. A callback already running is allowed to finish.
	Stop() error
}
