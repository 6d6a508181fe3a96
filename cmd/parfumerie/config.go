package main

import (
	"strings"
	"time"

	auth "github.com/es-parfumerie/go-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	ListenAddr    string `mapstructure:"LISTEN_ADDR"`
	Debug         bool   `mapstructure:"DEBUG"`
	SecureCookies bool   `mapstructure:"SECURE_COOKIES"`

	DBDriver string `mapstructure:"DB_DRIVER"`
	DBDSN    string `mapstructure:"DB_DSN"`

	// RedisAddr enables token revocation on logout when set
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAudience   string        `mapstructure:"JWT_AUDIENCE"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	AdminTokenTTL time.Duration `mapstructure:"ADMIN_TOKEN_TTL"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminName     string `mapstructure:"ADMIN_NAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	PasswordCost int           `mapstructure:"PASSWORD_COST"`
	HashWorkers  int           `mapstructure:"HASH_WORKERS"`
	StoreTimeout time.Duration `mapstructure:"STORE_TIMEOUT"`
	PhoneRegion  string        `mapstructure:"PHONE_REGION"`
}

// LoadConfig reads config.env from path when present, environment variables
// prefixed with PARFUMERIE_ take precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(path)
	v.SetEnvPrefix("PARFUMERIE")
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":5000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("SECURE_COOKIES", true)
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_DSN", "file:parfumerie.db?cache=shared")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "es-parfumerie")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("TOKEN_TTL", auth.DefaultTokenTTL)
	v.SetDefault("ADMIN_TOKEN_TTL", auth.DefaultAdminTokenTTL)
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_NAME", auth.DefaultAdminName)
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("PASSWORD_COST", 0)
	v.SetDefault("HASH_WORKERS", 0)
	v.SetDefault("STORE_TIMEOUT", auth.DefaultStoreTimeout)
	v.SetDefault("PHONE_REGION", auth.DefaultPhoneRegion)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !goerrors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, goerrors.New("DB_DRIVER must be sqlite or postgres", goerrors.CategoryValidation)
	}

	return &cfg, nil
}

// AuthOptions maps the flat environment onto the auth package options
func (c *Config) AuthOptions() auth.Options {
	var audience []string
	for _, aud := range strings.Split(c.JWTAudience, ",") {
		if aud = strings.TrimSpace(aud); aud != "" {
			audience = append(audience, aud)
		}
	}

	return auth.Options{
		SigningKey:    c.JWTSecret,
		Issuer:        c.JWTIssuer,
		Audience:      audience,
		TokenTTL:      c.TokenTTL,
		AdminTokenTTL: c.AdminTokenTTL,
		AdminEmail:    c.AdminEmail,
		AdminName:     c.AdminName,
		AdminPassword: c.AdminPassword,
		PasswordCost:  c.PasswordCost,
		HashWorkers:   c.HashWorkers,
		StoreTimeout:  c.StoreTimeout,
		PhoneRegion:   c.PhoneRegion,
	}
}
