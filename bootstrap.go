package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// AdminBootstrapper guarantees that the distinguished admin account exists,
// is active and carries the admin role.
type AdminBootstrapper struct {
	store         CredentialStore
	workers       *PasswordWorkers
	adminEmail    string
	adminName     string
	adminPassword string
	logger        Logger
	activitySink  ActivitySink
	now           func() time.Time
}

// NewAdminBootstrapper creates a bootstrapper for the admin identity in cfg
func NewAdminBootstrapper(store CredentialStore, workers *PasswordWorkers, cfg Config) *AdminBootstrapper {
	if workers == nil {
		workers = NewPasswordWorkers(nil, 0)
	}

	name := strings.TrimSpace(cfg.GetAdminName())
	if name == "" {
		name = DefaultAdminName
	}

	return &AdminBootstrapper{
		store:         store,
		workers:       workers,
		adminEmail:    strings.TrimSpace(cfg.GetAdminEmail()),
		adminName:     name,
		adminPassword: cfg.GetAdminPassword(),
		logger:        defLogger{},
		activitySink:  noopActivitySink{},
		now:           time.Now,
	}
}

func (b *AdminBootstrapper) WithLogger(logger Logger) *AdminBootstrapper {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithActivitySink configures an ActivitySink for bootstrap events.
func (b *AdminBootstrapper) WithActivitySink(sink ActivitySink) *AdminBootstrapper {
	b.activitySink = normalizeActivitySink(sink)
	return b
}

// AdminEmail returns the configured distinguished admin email
func (b *AdminBootstrapper) AdminEmail() string {
	return b.adminEmail
}

// Matches reports whether email is the distinguished admin email
func (b *AdminBootstrapper) Matches(email string) bool {
	if b.adminEmail == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(email), b.adminEmail)
}

// EnsureAdmin looks up the admin account, creating it when absent and
// correcting its role when needed. The caller must still verify the password
// against the returned account. Inactive accounts fail with ErrAccountDisabled
// and are left inactive.
func (b *AdminBootstrapper) EnsureAdmin(ctx context.Context, email, suppliedPassword string) (*Account, error) {
	email = strings.TrimSpace(email)

	account, err := b.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case goerrors.Is(err, ErrAccountNotFound):
		if account, err = b.create(ctx, email, suppliedPassword); err != nil {
			return nil, err
		}
	default:
		b.logger.Error("admin bootstrap lookup failed", "error", err)
		return nil, err
	}

	if account.Role != RoleAdmin {
		from := account.Role
		if err := b.store.UpdateRole(ctx, account.ID, RoleAdmin); err != nil {
			b.logger.Error("admin bootstrap role correction failed", "account_id", account.ID.String(), "error", err)
			return nil, err
		}
		account.Role = RoleAdmin

		b.logger.Warn("admin bootstrap corrected role", "account_id", account.ID.String(), "from", from)
		emitActivity(ctx, b.activitySink, b.logger, b.now, ActivityEvent{
			EventType: ActivityEventAdminRoleCorrected,
			Actor:     SystemActor,
			UserID:    account.ID.String(),
			Metadata:  map[string]any{"from_role": string(from), "to_role": string(RoleAdmin)},
		})
	}

	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	return account, nil
}

func (b *AdminBootstrapper) create(ctx context.Context, email, suppliedPassword string) (*Account, error) {
	if b.adminPassword != "" &&
		subtle.ConstantTimeCompare([]byte(suppliedPassword), []byte(b.adminPassword)) != 1 {
		return nil, ErrInvalidCredentials
	}

	if err := validatePassword(suppliedPassword); err != nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := b.workers.Hash(ctx, suppliedPassword)
	if err != nil {
		return nil, err
	}

	record := &Account{
		Name:         b.adminName,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}

	// racing inserts collide on the primary key as well as on the email
	if id, err := hashid.NewUUID(strings.ToLower(email)); err == nil {
		record.ID = id
	}

	created, err := b.store.Create(ctx, record)
	if err == nil {
		b.logger.Info("admin bootstrap created account", "account_id", created.ID.String())
		emitActivity(ctx, b.activitySink, b.logger, b.now, ActivityEvent{
			EventType: ActivityEventAdminCreated,
			Actor:     SystemActor,
			UserID:    created.ID.String(),
		})
		return created, nil
	}

	if !goerrors.Is(err, ErrConstraintViolation) {
		b.logger.Error("admin bootstrap create failed", "error", err)
		return nil, err
	}

	b.logger.Debug("admin bootstrap lost insert race, re-reading account")
	return b.store.GetByEmail(ctx, email)
}
