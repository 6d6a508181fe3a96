package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Auther implements the account use cases on top of the credential store
type Auther struct {
	repo          RepositoryManager
	store         CredentialStore
	hasher        *BcryptHasher
	workers       *PasswordWorkers
	provider      *UserProvider
	bootstrapper  *AdminBootstrapper
	registrar     *RegisterAccountHandler
	tokenService  TokenService
	revocations   RevocationStore
	tokenTTL      time.Duration
	adminTokenTTL time.Duration
	phoneRegion   string
	logger        Logger
	activitySink  ActivitySink
	now           func() time.Time
}

var (
	_ Authenticator        = (*Auther)(nil)
	_ AccountAdministrator = (*Auther)(nil)
)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, opts Config) *Auther {
	hasher := NewBcryptHasher(opts.GetPasswordCost())
	workers := NewPasswordWorkers(hasher, opts.GetHashWorkers())
	store := repo.Accounts()

	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetIssuer(),
		jwt.ClaimStrings(opts.GetAudience()),
		defLogger{},
	)

	return &Auther{
		repo:          repo,
		store:         store,
		hasher:        hasher,
		workers:       workers,
		provider:      NewUserProvider(store, workers),
		bootstrapper:  NewAdminBootstrapper(store, workers, opts),
		registrar:     NewRegisterAccountHandler(repo, workers),
		tokenService:  tokenService,
		revocations:   noopRevocationStore{},
		tokenTTL:      opts.GetTokenTTL(),
		adminTokenTTL: opts.GetAdminTokenTTL(),
		phoneRegion:   opts.GetPhoneRegion(),
		logger:        defLogger{},
		activitySink:  noopActivitySink{},
		now:           time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.hasher.WithLogger(logger)
	s.provider.WithLogger(logger)
	s.bootstrapper.WithLogger(logger)
	if ts, ok := s.tokenService.(*TokenServiceImpl); ok {
		ts.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	s.bootstrapper.WithActivitySink(sink)
	return s
}

// WithTokenService replaces the token service, handy to inject a clock in tests
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithRevocations enables logout revocation, tokens found in store are rejected
func (s *Auther) WithRevocations(store RevocationStore) *Auther {
	if store != nil {
		s.revocations = store
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Bootstrapper returns the admin bootstrapper used by the login flows
func (s *Auther) Bootstrapper() *AdminBootstrapper {
	return s.bootstrapper
}

// Register creates a customer account and signs a token for it. The
// distinguished admin email is reserved for the bootstrapper.
func (s *Auther) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if s.bootstrapper.Matches(email) {
		s.logger.Warn("Register refused for reserved admin email")
		return nil, ErrEmailTaken
	}

	var account *Account
	err := s.registrar.Execute(ctx, RegisterAccountMessage{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     RoleCustomer,
		OnResponse: func(a *Account) {
			account = a
		},
	})
	if err != nil {
		s.logFailure("Register", err)
		return nil, err
	}

	result, err := s.issue(account, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegistered, actorFromAccount(account), account.ID.String(), nil)

	return result, nil
}

// Login verifies credentials and signs a token. The distinguished admin email
// goes through the bootstrapper before the password is checked.
func (s *Auther) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	ttl := s.tokenTTL
	if s.bootstrapper.Matches(account.Email) {
		ttl = s.adminTokenTTL
	}

	return s.completeLogin(ctx, account, ttl)
}

// AdminLogin is Login restricted to admin accounts, the token is short lived
// and carries the "all" permission.
func (s *Auther) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if !account.IsAdmin() {
		s.logger.Warn("AdminLogin attempted by non admin account", "account_id", account.ID.String())
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromAccount(account), account.ID.String(), map[string]any{
			"error": ErrAdminRequired.Error(),
		})
		return nil, ErrAdminRequired
	}

	return s.completeLogin(ctx, account, s.adminTokenTTL, PermissionAll)
}

// Authenticate resolves a bearer token to its active account
func (s *Auther) Authenticate(ctx context.Context, token string) (*Account, AuthClaims, error) {
	claims, err := s.tokenService.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.ResolveAccount(ctx, claims)
	if err != nil {
		return nil, nil, err
	}

	return account, claims, nil
}

// ResolveAccount loads the account named by already verified claims. Accounts
// that were removed make the token invalid, disabled ones fail with ErrAccountDisabled.
func (s *Auther) ResolveAccount(ctx context.Context, claims AuthClaims) (*Account, error) {
	if claims == nil {
		return nil, ErrTokenInvalid
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, wrapError(ErrTokenInvalid, err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		s.logFailure("ResolveAccount", err)
		return nil, err
	}
	if revoked {
		return nil, wrapError(ErrTokenInvalid, nil).WithMetadata(map[string]any{"reason": "revoked"})
	}

	account, err := s.store.GetByID(ctx, id)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return nil, wrapError(ErrTokenInvalid, err)
		}
		s.logFailure("ResolveAccount", err)
		return nil, err
	}

	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	return account, nil
}

// Logout revokes token until it expires. Tokens that no longer verify are
// ignored, there is nothing left to revoke.
func (s *Auther) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.tokenService.Verify(token)
	if err != nil {
		return nil
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID(), claims.Expires()); err != nil {
		s.logFailure("Logout", err)
		return err
	}

	return nil
}

// Profile returns the stored account
func (s *Auther) Profile(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return s.store.GetByID(ctx, accountID)
}

// ChangePassword verifies the current password before storing a hash of the new one
func (s *Auther) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := s.provider.VerifyPassword(ctx, account, currentPassword); err != nil {
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.workers.Hash(ctx, newPassword)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, account.ID, hash); err != nil {
		s.logFailure("ChangePassword", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, actorFromAccount(account), account.ID.String(), nil)

	return nil
}

// UpdateProfile applies the set fields of update, phone numbers are stored in E.164
func (s *Auther) UpdateProfile(ctx context.Context, accountID uuid.UUID, update ProfileUpdate) (*Account, error) {
	update, err := normalizeProfileUpdate(update, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	if update.IsEmpty() {
		return s.store.GetByID(ctx, accountID)
	}

	account, err := s.store.UpdateProfile(ctx, accountID, update)
	if err != nil {
		s.logFailure("UpdateProfile", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventProfileUpdated, actorFromAccount(account), account.ID.String(), map[string]any{
		"fields": update.fields(),
	})

	return account, nil
}

// ListAccounts returns one page of accounts, newest first
func (s *Auther) ListAccounts(ctx context.Context, opts ListOptions) (AccountPage, error) {
	opts = opts.normalize()

	if opts.Role != "" && !opts.Role.IsValid() {
		return AccountPage{}, wrapError(ErrValidationFailed, nil).WithMetadata(map[string]any{"role": "unknown role"})
	}

	accounts, total, err := s.store.List(ctx, opts)
	if err != nil {
		s.logFailure("ListAccounts", err)
		return AccountPage{}, err
	}

	return newAccountPage(accounts, total, opts), nil
}

// SetAccountActive soft deletes or restores an account. Admins cannot
// deactivate their own account.
func (s *Auther) SetAccountActive(ctx context.Context, actor ActorRef, accountID uuid.UUID, active bool) (*Account, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	if !active && actor.ID == accountID.String() {
		return nil, wrapError(ErrValidationFailed, nil).WithMetadata(map[string]any{
			"is_active": "administrators cannot deactivate their own account",
		})
	}

	account, err := s.store.SetActive(ctx, accountID, active)
	if err != nil {
		s.logFailure("SetAccountActive", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventAccountStatusChanged, actor, account.ID.String(), map[string]any{
		"is_active": active,
	})

	return account, nil
}

// ProvisionAdmin creates an admin account on behalf of another admin
func (s *Auther) ProvisionAdmin(ctx context.Context, actor ActorRef, name, email, password string) (*Account, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if s.bootstrapper.Matches(email) {
		return nil, ErrEmailTaken
	}

	var account *Account
	err := s.registrar.Execute(ctx, RegisterAccountMessage{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     RoleAdmin,
		OnResponse: func(a *Account) {
			account = a
		},
	})
	if err != nil {
		s.logFailure("ProvisionAdmin", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventAdminProvisioned, actor, account.ID.String(), nil)

	return account, nil
}

func (s *Auther) verifyCredentials(ctx context.Context, email, password string) (*Account, error) {
	var account *Account
	var err error

	if s.bootstrapper.Matches(email) {
		account, err = s.bootstrapper.EnsureAdmin(ctx, s.bootstrapper.AdminEmail(), password)
		if err == nil {
			err = s.provider.VerifyPassword(ctx, account, password)
		}
	} else {
		account, err = s.provider.VerifyIdentity(ctx, email, password)
	}

	if err != nil {
		s.logFailure("Login", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: ActorTypeUnknown}, "", map[string]any{
			"email": strings.TrimSpace(email),
			"error": err.Error(),
		})
		return nil, err
	}

	return account, nil
}

func (s *Auther) completeLogin(ctx context.Context, account *Account, ttl time.Duration, permissions ...string) (*AuthResult, error) {
	s.provider.TrackSuccessfulLogin(ctx, account)

	result, err := s.issue(account, ttl, permissions...)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromAccount(account), account.ID.String(), map[string]any{
		"role": string(account.Role),
	})

	return result, nil
}

func (s *Auther) issue(account *Account, ttl time.Duration, permissions ...string) (*AuthResult, error) {
	token, expiresAt, err := s.tokenService.Issue(account.ID.String(), account.Role, ttl, permissions...)
	if err != nil {
		s.logger.Error("failed to sign token", "account_id", account.ID.String(), "error", err)
		return nil, err
	}

	result := &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      account.Public(),
	}
	if len(permissions) > 0 {
		result.Permissions = permissions
	}

	return result, nil
}

func (s *Auther) requireAdmin(ctx context.Context, actor ActorRef) error {
	id, err := uuid.Parse(actor.ID)
	if err != nil {
		return ErrAdminRequired
	}

	account, err := s.store.GetByID(ctx, id)
	if err != nil {
		if goerrors.Is(err, ErrAccountNotFound) {
			return ErrAdminRequired
		}
		return err
	}

	if !account.IsAdmin() || !account.IsActive {
		return ErrAdminRequired
	}

	return nil
}

// logFailure keeps expected rejections out of the error log
func (s *Auther) logFailure(operation string, err error) {
	if StatusCode(err) >= http.StatusInternalServerError {
		s.logger.Error(operation+" failed", "error", err)
		return
	}
	s.logger.Debug(operation+" rejected", "text_code", TextCodeOf(err))
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	emitActivity(ctx, normalizeActivitySink(s.activitySink), s.logger, s.now, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}

func actorFromAccount(account *Account) ActorRef {
	if account == nil {
		return ActorRef{Type: ActorTypeUnknown}
	}
	return ActorRef{ID: account.ID.String(), Type: ActorTypeUser}
}

func validateEmail(email string) error {
	err := validation.Validate(email, validation.Required, validation.Length(3, 254), is.Email)
	if err != nil {
		return wrapError(ErrValidationFailed, err).WithMetadata(map[string]any{"email": err.Error()})
	}
	return nil
}
