package shoplist

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/PascalSV/shopping-list-pwa/internal/store"
)

// syncLock keeps two processes sharing one replica from syncing at once.
type syncLock struct {
	fl *flock.Flock
}

// newSyncLock returns a lock on "<localPath>.lock". In-memory replicas are
// private to the process and get a no-op lock.
func newSyncLock(localPath string) *syncLock {
	if localPath == store.InMemory {
		return &syncLock{}
	}
	return &syncLock{fl: flock.New(localPath + ".lock")}
}

// Lock blocks until the lock is held or ctx is done.
func (l *syncLock) Lock(ctx context.Context) error {
	if l.fl == nil {
		return nil
	}
	ok, err := l.fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire sync lock: %s is held by another process", l.fl.Path())
	}
	return nil
}

// Unlock releases the lock.
func (l *syncLock) Unlock() error {
	if l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
