package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger takes a message followed by key/value pairs
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator holds the account use cases exposed to transports
type Authenticator interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	AdminLogin(ctx context.Context, email, password string) (*AuthResult, error)
	Authenticate(ctx context.Context, token string) (*Account, AuthClaims, error)
	ResolveAccount(ctx context.Context, claims AuthClaims) (*Account, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, accountID uuid.UUID) (*Account, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error
	UpdateProfile(ctx context.Context, accountID uuid.UUID, update ProfileUpdate) (*Account, error)
}

// AccountAdministrator holds the privileged account operations
type AccountAdministrator interface {
	ListAccounts(ctx context.Context, opts ListOptions) (AccountPage, error)
	SetAccountActive(ctx context.Context, actor ActorRef, accountID uuid.UUID, active bool) (*Account, error)
	ProvisionAdmin(ctx context.Context, actor ActorRef, name, email, password string) (*Account, error)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenTTL() time.Duration
	GetAdminTokenTTL() time.Duration
	GetAdminEmail() string
	GetAdminName() string
	GetAdminPassword() string
	GetPasswordCost() int
	GetHashWorkers() int
	GetStoreTimeout() time.Duration
	GetPhoneRegion() string
}

const (
	// DefaultTokenTTL applies to customer tokens
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultAdminTokenTTL applies to tokens issued to the distinguished admin
	DefaultAdminTokenTTL = 24 * time.Hour
	// DefaultStoreTimeout bounds every store call
	DefaultStoreTimeout = 5 * time.Second
	// DefaultAdminName is used when the bootstrapper creates the admin row
	DefaultAdminName = "Administrateur ES"
	// DefaultPhoneRegion is used to parse numbers written without a country code
	DefaultPhoneRegion = "FR"
)

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + formatLine(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + formatLine(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + formatLine(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + formatLine(msg, args))
}

func formatLine(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// NopLogger discards everything, handy in tests
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
