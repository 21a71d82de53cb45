package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
)

// lockRetryInterval is how often a blocked Lock retries.
const lockRetryInterval = 50 * time.Millisecond

// FileLock provides cross-platform file locking using flock.
type FileLock struct {
	lock *flock.Flock
}

// NewFileLock creates a new file lock for the given path.
// The lock file will be created at path + ".lock".
func NewFileLock(path string) *FileLock {
	return &FileLock{
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.lock.Path()
}

// Lock acquires the file lock, retrying until it is acquired or ctx is done.
func (l *FileLock) Lock(ctx context.Context) error {
	locked, err := l.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout")
	}
	return nil
}

// Unlock releases the file lock.
func (l *FileLock) Unlock() error {
	return l.lock.Unlock()
}

// LockDir returns the directory holding per-key lock files. It is a
// sibling of the base folder so lock files never appear in ListKeys.
func (s *Store) LockDir() string {
	return s.baseFolder + ".locks"
}

// LockKey acquires an exclusive lock for key and returns it held. The
// store's own operations never take this lock; callers that need
// same-key writers serialized take it around Set or Remove.
func (s *Store) LockKey(ctx context.Context, key string) (Locker, error) {
	if _, err := s.entryPath(key); err != nil {
		return nil, err
	}
	dir := s.LockDir()
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, &kverrors.KVError{Op: "create lock folder", Path: dir, Err: err}
	}

	lock := NewFileLock(s.resolver.PathForKey(dir, key))
	if err := lock.Lock(ctx); err != nil {
		return nil, &kverrors.KVError{Op: "lock", Key: key, Path: lock.Path(), Err: err}
	}
	return lock, nil
}
