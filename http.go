package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/es-parfumerie/go-auth/middleware/jwtware"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// TokenCookieName is the cookie the login flows store the token in
const TokenCookieName = "token"

// cookieSameSite is the SameSite mode of the token cookie
const cookieSameSite = "Strict"

type RouteAuthenticator struct {
	auth           Authenticator
	tokens         TokenValidator
	cookieName     string
	cookieDuration time.Duration
	secureCookies  bool
	Logger         Logger
	ErrorHandler   router.ErrorHandler
}

// NewHTTPAuthenticator builds the router glue around auther. tokens verifies
// bearer tokens, usually the auther's own TokenService.
func NewHTTPAuthenticator(auther Authenticator, tokens TokenValidator, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		auth:           auther,
		tokens:         tokens,
		cookieName:     TokenCookieName,
		cookieDuration: cfg.GetTokenTTL(),
		secureCookies:  true,
		Logger:         defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithSecureCookies toggles the Secure flag, only disable it for local http
func (a *RouteAuthenticator) WithSecureCookies(secure bool) *RouteAuthenticator {
	a.secureCookies = secure
	return a
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute requires a valid token for an active account. The claims are
// stored under DefaultContextKey and the account under AccountContextKey.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return jwtware.New(a.jwtConfig())
}

// AdminRoute is ProtectedRoute restricted to admin tokens of admin accounts
func (a *RouteAuthenticator) AdminRoute() router.MiddlewareFunc {
	cfg := a.jwtConfig()
	cfg.MinimumRole = string(RoleAdmin)
	cfg.ValidationListeners = append(cfg.ValidationListeners, a.requireAdminAccount)
	return jwtware.New(cfg)
}

func (a *RouteAuthenticator) jwtConfig() jwtware.Config {
	return jwtware.Config{
		ErrorHandler: a.ErrorHandler,
		ContextKey:   DefaultContextKey,
		TokenLookup:  "header:" + router.HeaderAuthorization + ",cookie:" + a.cookieName,
		AuthScheme:   "Bearer",
		TokenValidator: jwtware.TokenValidatorFunc(func(raw string) (jwtware.AuthClaims, error) {
			claims, err := a.tokens.Verify(raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(ctx, ac)
			}
			return ctx
		},
		ValidationListeners: []jwtware.ValidationListener{a.loadAccount},
	}
}

func (a *RouteAuthenticator) loadAccount(c router.Context, claims jwtware.AuthClaims) error {
	ac, ok := claims.(AuthClaims)
	if !ok {
		return ErrTokenInvalid
	}

	account, err := a.auth.ResolveAccount(c.Context(), ac)
	if err != nil {
		return err
	}

	c.Locals(AccountContextKey, account)
	c.SetContext(WithContext(c.Context(), account))
	return nil
}

func (a *RouteAuthenticator) requireAdminAccount(c router.Context, _ jwtware.AuthClaims) error {
	account, ok := GetRouterAccount(c)
	if !ok || !account.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

// SetCookieToken stores token in an http only cookie until expiresAt
func (a *RouteAuthenticator) SetCookieToken(c router.Context, token string, expiresAt time.Time) {
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(a.cookieDuration)
	}
	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: cookieSameSite,
	})
}

// RequestToken returns the bearer token of the request, the cookie is used
// when no Authorization header is present
func (a *RouteAuthenticator) RequestToken(c router.Context) string {
	if header := c.GetString(router.HeaderAuthorization, ""); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			return strings.TrimSpace(header[7:])
		}
		return ""
	}
	return c.Cookies(a.cookieName, "")
}

// Logout clears the token cookie
func (a *RouteAuthenticator) Logout(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: cookieSameSite,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return WriteError(c, a.Logger, err)
}

// WriteError renders err as {success:false, message} with the status of its category
func WriteError(c router.Context, logger Logger, err error) error {
	err = normalizeHTTPError(err)
	status := StatusCode(err)

	if logger != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Metadata != nil {
			logger.Debug("request failed", "path", c.Path(), "details", print.MaybePrettyJSON(richErr.Metadata))
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
		} else {
			logger.Info("request rejected", "path", c.Path(), "status", status, "text_code", TextCodeOf(err))
		}
	}

	return c.JSON(status, map[string]any{
		"success": false,
		"message": PublicMessage(err),
	})
}

func normalizeHTTPError(err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}

	switch {
	case goerrors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		return wrapError(ErrTokenInvalid, err)
	case goerrors.Is(err, jwtware.ErrAccessDenied):
		return wrapError(ErrAdminRequired, err)
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected request failure")
}
