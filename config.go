package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// MinSigningKeyLength is the shortest HMAC secret accepted
const MinSigningKeyLength = 32

// Options is a plain Config implementation, zero values fall back to defaults
type Options struct {
	SigningKey    string        `mapstructure:"signing_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      []string      `mapstructure:"audience"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminTokenTTL time.Duration `mapstructure:"admin_token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminName     string        `mapstructure:"admin_name"`
	AdminPassword string        `mapstructure:"admin_password"`
	PasswordCost  int           `mapstructure:"password_cost"`
	HashWorkers   int           `mapstructure:"hash_workers"`
	StoreTimeout  time.Duration `mapstructure:"store_timeout"`
	PhoneRegion   string        `mapstructure:"phone_region"`
}

var _ Config = Options{}

func (o Options) GetSigningKey() string { return o.SigningKey }
func (o Options) GetIssuer() string     { return o.Issuer }
func (o Options) GetAudience() []string { return o.Audience }

func (o Options) GetTokenTTL() time.Duration {
	if o.TokenTTL <= 0 {
		return DefaultTokenTTL
	}
	return o.TokenTTL
}

func (o Options) GetAdminTokenTTL() time.Duration {
	if o.AdminTokenTTL <= 0 {
		return DefaultAdminTokenTTL
	}
	return o.AdminTokenTTL
}

func (o Options) GetAdminEmail() string { return strings.TrimSpace(o.AdminEmail) }

func (o Options) GetAdminName() string {
	if o.AdminName == "" {
		return DefaultAdminName
	}
	return o.AdminName
}

func (o Options) GetAdminPassword() string { return o.AdminPassword }
func (o Options) GetPasswordCost() int     { return o.PasswordCost }
func (o Options) GetHashWorkers() int      { return o.HashWorkers }

func (o Options) GetStoreTimeout() time.Duration {
	if o.StoreTimeout <= 0 {
		return DefaultStoreTimeout
	}
	return o.StoreTimeout
}

func (o Options) GetPhoneRegion() string {
	if o.PhoneRegion == "" {
		return DefaultPhoneRegion
	}
	return o.PhoneRegion
}

// Validate will run validation rules. The admin password is optional, an
// empty one means the admin account must already exist.
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey,
			validation.Required.Error("signing key is required"),
			validation.Length(MinSigningKeyLength, 0).Error("signing key must be at least 32 characters"),
		),
		validation.Field(&o.AdminEmail, is.Email),
		validation.Field(&o.AdminPassword,
			validation.Length(MinPasswordLength, MaxPasswordBytes).Error("admin password must be between 6 and 72 bytes"),
		),
		validation.Field(&o.PasswordCost, validation.Min(0), validation.Max(bcrypt.MaxCost)),
		validation.Field(&o.HashWorkers, validation.Min(0)),
	)
}

// ValidateConfig rejects configurations the service cannot run with safely
func ValidateConfig(cfg Config) error {
	if cfg == nil {
		return goerrors.New("auth config is required", goerrors.CategoryValidation)
	}

	opts, ok := cfg.(Options)
	if !ok {
		opts = Options{
			SigningKey:    cfg.GetSigningKey(),
			AdminEmail:    cfg.GetAdminEmail(),
			AdminPassword: cfg.GetAdminPassword(),
			PasswordCost:  cfg.GetPasswordCost(),
			HashWorkers:   cfg.GetHashWorkers(),
		}
	}

	return validationError(opts.Validate())
}
