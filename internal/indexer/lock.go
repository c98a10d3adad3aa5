package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrSyncInProgress is returned by TryAcquire when another sync holds the project lock.
var ErrSyncInProgress = errors.New("sync already in progress")

// lockRetryDelay is how often a blocked Acquire re-tries the file lock.
const lockRetryDelay = 100 * time.Millisecond

// Locker serializes syncs per project key, both within this process and
// across processes sharing a data directory.
type Locker struct {
	dir string

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocker creates a locker whose lock files live in dir.
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir, slots: make(map[string]chan struct{})}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until the lock for key is held or ctx is done. The returned
// release func must be called exactly once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	slot := l.slot(key)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	fl, err := l.fileLock(key)
	if err != nil {
		<-slot
		return nil, err
	}
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		<-slot
		if err == nil {
			err = ErrSyncInProgress
		}
		return nil, fmt.Errorf("acquire lock %s: %w", fl.Path(), err)
	}
	return l.releaser(slot, fl), nil
}

// TryAcquire takes the lock for key without waiting. It returns
// ErrSyncInProgress when the lock is held elsewhere.
func (l *Locker) TryAcquire(key string) (func(), error) {
	slot := l.slot(key)
	select {
	case slot <- struct{}{}:
	default:
		return nil, ErrSyncInProgress
	}

	fl, err := l.fileLock(key)
	if err != nil {
		<-slot
		return nil, err
	}
	locked, err := fl.TryLock()
	if err != nil {
		<-slot
		return nil, fmt.Errorf("acquire lock %s: %w", fl.Path(), err)
	}
	if !locked {
		<-slot
		return nil, ErrSyncInProgress
	}
	return l.releaser(slot, fl), nil
}

func (l *Locker) fileLock(key string) (*flock.Flock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return flock.New(filepath.Join(l.dir, key+".lock")), nil
}

func (l *Locker) releaser(slot chan struct{}, fl *flock.Flock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fl.Unlock()
			<-slot
		})
	}
}
