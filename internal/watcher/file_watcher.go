package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PathFilter reports whether a project-relative, slash-separated path is
// worth a resync.
type PathFilter interface {
	Eligible(relPath string) bool
	SkipDir(name string) bool
}

// fileWatcher implements FileWatcher over fsnotify.
type fileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	filter    PathFilter
	debouncer *Debouncer
	callback  func(paths []string)
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	accumulated   map[string]struct{} // relative paths changed since the last callback
	accumulatedMu sync.Mutex
	dirs          map[string]struct{} // watched directories, absolute
	dirsMu        sync.Mutex

	stopOnce sync.Once
	doneCh   chan struct{} // closed when the event loop exits
}

// NewFileWatcher watches root recursively. Directories rejected by
// filter.SkipDir are never watched. Bursts of events for eligible paths
// settle for quiet before the callback passed to Start runs.
func NewFileWatcher(root string, filter PathFilter, quiet time.Duration, logger *slog.Logger) (FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fileWatcher{
		root:        abs,
		watcher:     watcher,
		filter:      filter,
		logger:      logger,
		accumulated: make(map[string]struct{}),
		dirs:        make(map[string]struct{}),
		doneCh:      make(chan struct{}),
	}
	fw.debouncer = NewDebouncer(quiet, fw.flush, logger)

	if err := fw.addDirectoriesRecursively(abs); err != nil {
		watcher.Close()
		return nil, err
	}
	return fw, nil
}

// Start begins delivering events. callback receives the sorted relative
// paths that changed during the settled burst.
func (fw *fileWatcher) Start(ctx context.Context, callback func(paths []string)) error {
	if callback == nil {
		return errors.New("watcher: callback is required")
	}
	fw.callback = callback
	fw.ctx, fw.cancel = context.WithCancel(ctx)

	go fw.watch()
	fw.logger.Debug("watching for changes", "root", fw.root, "dirs", fw.watchedDirs())
	return nil
}

// Stop stops the event loop, cancels a pending callback and waits for a
// running one to finish, then closes the fsnotify handle.
func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			close(fw.doneCh)
		}
		fw.debouncer.Stop()
		err = fw.watcher.Close()
	})
	return err
}

// watch is the main event loop.
func (fw *fileWatcher) watch() {
	defer close(fw.doneCh)

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (fw *fileWatcher) handleEvent(event fsnotify.Event) {
	// New directories are watched as they appear.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if fw.filter.SkipDir(filepath.Base(event.Name)) {
				return
			}
			if err := fw.addDirectoriesRecursively(event.Name); err != nil {
				fw.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			// Files written before the watch was added produce no events.
			fw.record(event.Name)
			return
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if fw.forgetDir(event.Name) {
			fw.record(event.Name)
			return
		}
	}

	if !fw.shouldProcessEvent(event) {
		return
	}
	fw.record(event.Name)
}

// record accumulates a changed path and re-arms the debouncer.
func (fw *fileWatcher) record(absPath string) {
	rel, err := filepath.Rel(fw.root, absPath)
	if err != nil {
		return
	}
	fw.accumulatedMu.Lock()
	fw.accumulated[filepath.ToSlash(rel)] = struct{}{}
	fw.accumulatedMu.Unlock()

	fw.debouncer.Trigger()
}

// flush runs on the debouncer's timer once a burst has settled.
func (fw *fileWatcher) flush() {
	fw.accumulatedMu.Lock()
	paths := make([]string, 0, len(fw.accumulated))
	for p := range fw.accumulated {
		paths = append(paths, p)
	}
	fw.accumulated = make(map[string]struct{})
	fw.accumulatedMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	fw.callback(paths)
}

// shouldProcessEvent keeps writes, creates, removes and renames of eligible files.
func (fw *fileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	rel, err := filepath.Rel(fw.root, event.Name)
	if err != nil {
		return false
	}
	return fw.filter.Eligible(filepath.ToSlash(rel))
}

// addDirectoriesRecursively adds every non-skipped directory under rootPath.
func (fw *fileWatcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			fw.logger.Debug("error accessing path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != fw.root && fw.filter.SkipDir(d.Name()) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		fw.dirsMu.Lock()
		fw.dirs[path] = struct{}{}
		fw.dirsMu.Unlock()
		return nil
	})
}

// forgetDir drops a removed directory and its subtree, reporting whether
// path was a watched directory.
func (fw *fileWatcher) forgetDir(path string) bool {
	fw.dirsMu.Lock()
	defer fw.dirsMu.Unlock()

	if _, ok := fw.dirs[path]; !ok {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range fw.dirs {
		if dir == path || len(dir) > len(prefix) && dir[:len(prefix)] == prefix {
			delete(fw.dirs, dir)
		}
	}
	return true
}

func (fw *fileWatcher) watchedDirs() int {
	fw.dirsMu.Lock()
	defer fw.dirsMu.Unlock()
	return len(fw.dirs)
}
