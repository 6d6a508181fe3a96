package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage creates a new account. Role defaults to customer,
// only privileged callers set it to admin.
type RegisterAccountMessage struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       UserRole
	OnResponse func(*Account)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// RegisterAccountHandler runs the existence check and the insert in one transaction
type RegisterAccountHandler struct {
	repo    RepositoryManager
	workers *PasswordWorkers
}

// NewRegisterAccountHandler returns a handler bound to repo
func NewRegisterAccountHandler(repo RepositoryManager, workers *PasswordWorkers) *RegisterAccountHandler {
	if workers == nil {
		workers = NewPasswordWorkers(nil, 0)
	}
	return &RegisterAccountHandler{repo: repo, workers: workers}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return wrapError(ErrStoreUnavailable, ctx.Err()).WithMetadata(map[string]any{
			"operation": event.Type(),
		})
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := validatePassword(event.Password); err != nil {
		return err
	}

	hash, err := h.workers.Hash(ctx, event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	role := event.Role
	if role == "" {
		role = RoleCustomer
	}

	account := &Account{
		Name:         strings.TrimSpace(event.Name),
		Email:        strings.TrimSpace(event.Email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.repo.Accounts().GetByEmailTx(ctx, tx, account.Email)
		switch {
		case err == nil:
			return ErrEmailTaken
		case !goerrors.Is(err, ErrAccountNotFound):
			return err
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		if goerrors.Is(err, ErrConstraintViolation) {
			return wrapError(ErrEmailTaken, err)
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return err
		}

		return wrapError(ErrStoreUnavailable, err).WithMetadata(map[string]any{
			"operation": event.Type(),
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
