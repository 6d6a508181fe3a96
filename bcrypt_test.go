package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost).WithLogger(auth.NopLogger{})

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, hasher.Verify("secret1", hash))
	assert.False(t, hasher.Verify("secret2", hash))
}

func TestBcryptHasherSaltsEveryHash(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash("secret1")
	require.NoError(t, err)
	second, err := hasher.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasherRejectsEmptyPassword(t *testing.T) {
	_, err := auth.NewBcryptHasher(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestBcryptHasherMalformedHashIsMismatch(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost).WithLogger(auth.NopLogger{})
	assert.False(t, hasher.Verify("secret1", "not-a-bcrypt-hash"))
	assert.False(t, hasher.Verify("secret1", ""))
}

func TestBcryptHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, auth.NewBcryptHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, auth.NewBcryptHasher(99).Cost())
}

func TestPasswordWorkers(t *testing.T) {
	workers := auth.NewPasswordWorkers(auth.NewBcryptHasher(bcrypt.MinCost), 2)
	assert.Equal(t, 2, workers.Size())

	hash, err := workers.Hash(context.Background(), "secret1")
	require.NoError(t, err)

	ok, err := workers.Verify(context.Background(), "secret1", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

type blockingHasher struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingHasher) Hash(password string) (string, error) {
	close(b.started)
	<-b.release
	return "hash", nil
}

func (b blockingHasher) Verify(password, hash string) bool { return false }

func TestPasswordWorkersHonorContext(t *testing.T) {
	hasher := blockingHasher{started: make(chan struct{}), release: make(chan struct{})}
	workers := auth.NewPasswordWorkers(hasher, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = workers.Hash(context.Background(), "secret1")
	}()
	<-hasher.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := workers.Hash(ctx, "secret2")
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)

	close(hasher.release)
	<-done
}
