package auth

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// PasswordWorkers bounds how many bcrypt operations run at once so that
// hashing bursts cannot take every CPU away from unrelated requests.
type PasswordWorkers struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
	size   int64
}

// NewPasswordWorkers wraps hasher with a pool of size slots, GOMAXPROCS when size <= 0
func NewPasswordWorkers(hasher PasswordHasher, size int) *PasswordWorkers {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &PasswordWorkers{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
	}
}

// Size returns the number of concurrent hashing slots
func (w *PasswordWorkers) Size() int {
	return int(w.size)
}

// Hash waits for a free slot and hashes password
func (w *PasswordWorkers) Hash(ctx context.Context, password string) (string, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return "", wrapError(ErrStoreUnavailable, err).WithMetadata(map[string]any{"operation": "hash_password"})
	}
	defer w.sem.Release(1)

	return w.hasher.Hash(password)
}

// Verify waits for a free slot and compares password against hash
func (w *PasswordWorkers) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return false, wrapError(ErrStoreUnavailable, err).WithMetadata(map[string]any{"operation": "verify_password"})
	}
	defer w.sem.Release(1)

	return w.hasher.Verify(password, hash), nil
}
