package auth

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// AccountFinder is the read side of the store used during credential checks
type AccountFinder interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// UserProvider verifies credentials against stored accounts
type UserProvider struct {
	store     AccountFinder
	workers   *PasswordWorkers
	logger    Logger
	dummyOnce sync.Once
	dummyHash string
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store AccountFinder, workers *PasswordWorkers) *UserProvider {
	if workers == nil {
		workers = NewPasswordWorkers(nil, 0)
	}
	return &UserProvider{
		store:   store,
		workers: workers,
		logger:  defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the account, check it is active and compare the password.
// An unknown email and a wrong password both fail with ErrInvalidCredentials.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (*Account, error) {
	account, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			// unknown emails pay for a comparison too so timing does not
			// tell them apart from a wrong password
			if _, verr := u.workers.Verify(ctx, password, u.timingHash()); verr != nil {
				return nil, verr
			}
			return nil, ErrInvalidCredentials
		}
		u.logger.Error("failed to retrieve account during verification", "error", err)
		return nil, err
	}

	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := u.VerifyPassword(ctx, account, password); err != nil {
		return nil, err
	}

	return account, nil
}

// VerifyPassword compares password with the stored hash of account
func (u *UserProvider) VerifyPassword(ctx context.Context, account *Account, password string) error {
	if account == nil {
		return ErrInvalidCredentials
	}

	ok, err := u.workers.Verify(ctx, password, account.PasswordHash)
	if err != nil {
		return err
	}

	if !ok {
		return ErrInvalidCredentials
	}

	return nil
}

// timingHash is hashed once with the configured hasher so its cost
// matches the stored hashes
func (u *UserProvider) timingHash() string {
	u.dummyOnce.Do(func() {
		hash, err := u.workers.hasher.Hash("es-parfumerie-timing-equalizer")
		if err != nil {
			u.logger.Warn("failed to prepare timing hash", "error", err)
			return
		}
		u.dummyHash = hash
	})
	return u.dummyHash
}

// TrackSuccessfulLogin touches last_login_at, failures are only logged
func (u *UserProvider) TrackSuccessfulLogin(ctx context.Context, account *Account) {
	if account == nil {
		return
	}
	if err := u.store.TouchLastLogin(ctx, account.ID); err != nil {
		u.logger.Warn("failed to track successful login", "account_id", account.ID.String(), "error", err)
	}
}
