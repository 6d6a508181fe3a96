package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried by the package errors. The ones that exist in
// go-errors reuse its values so clients see a single vocabulary.
const (
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeWeakPassword        = "WEAK_PASSWORD"
	TextCodeValidationFailed    = "VALIDATION_FAILED"
	TextCodeInvalidCredentials  = goerrors.TextCodeInvalidCredentials
	TextCodeAccountDisabled     = goerrors.TextCodeAccountDisabled
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeAdminRequired       = "ADMIN_REQUIRED"
	TextCodeTokenInvalid        = "TOKEN_INVALID"
	TextCodeTokenExpired        = goerrors.TextCodeTokenExpired
	TextCodeStoreUnavailable    = "STORE_UNAVAILABLE"
	TextCodeConstraintViolation = "CONSTRAINT_VIOLATION"
)

// ErrEmailTaken is returned on registration when the email is in use
var ErrEmailTaken = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmailTaken)

// ErrWeakPassword is returned when a password is shorter than MinPasswordLength
var ErrWeakPassword = goerrors.New(fmt.Sprintf("password must be at least %d characters", MinPasswordLength), goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeWeakPassword)

// ErrValidationFailed wraps payload validation failures
var ErrValidationFailed = goerrors.New("invalid request payload", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeValidationFailed)

// ErrInvalidCredentials has a single message no matter if the email or the password was wrong
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrAccountDisabled is returned for accounts with is_active = false
var ErrAccountDisabled = goerrors.New("account has been disabled", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeAccountDisabled)

// ErrAccountNotFound is returned by the store when no row matches
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrAdminRequired is returned when an admin only operation is attempted by a customer
var ErrAdminRequired = goerrors.New("administrator privileges required", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeAdminRequired)

// ErrTokenInvalid covers bad signatures and malformed tokens
var ErrTokenInvalid = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenInvalid)

// ErrTokenExpired is returned once exp has passed
var ErrTokenExpired = goerrors.New("authentication token has expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrStoreUnavailable covers connection failures and timeouts
var ErrStoreUnavailable = goerrors.New("credential store unavailable", goerrors.CategoryExternal).
	WithCode(http.StatusServiceUnavailable).
	WithTextCode(TextCodeStoreUnavailable)

// ErrConstraintViolation is returned when the store rejects a write
var ErrConstraintViolation = goerrors.New("constraint violation", goerrors.CategoryConflict).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeConstraintViolation)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(goerrors.TextCodeEmptyPassword)

// ErrMismatchedHashAndPassword is returned by ComparePasswordAndHash on a wrong password
var ErrMismatchedHashAndPassword = goerrors.New("hashed password does not match the given password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// sentinelChain keeps the sentinel reachable from a derived error so
// errors.Is(err, ErrX) holds after a cause or metadata is attached.
type sentinelChain struct {
	sentinel *goerrors.Error
	cause    error
}

func (s *sentinelChain) Error() string {
	if s.cause == nil {
		return s.sentinel.TextCode
	}
	return s.cause.Error()
}

func (s *sentinelChain) Unwrap() []error {
	if s.cause == nil {
		return []error{s.sentinel}
	}
	return []error{s.sentinel, s.cause}
}

// wrapError returns a copy of sentinel with cause as its source. The
// sentinel itself is never mutated. cause may be nil.
func wrapError(sentinel *goerrors.Error, cause error) *goerrors.Error {
	err := sentinel.Clone()
	err.Source = &sentinelChain{sentinel: sentinel, cause: cause}
	err.Timestamp = time.Now()
	return err
}

// TextCodeOf returns the text code carried by err, or "" when err is not a rich error
func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// StatusCode maps err to an HTTP status based on its category
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message that is safe to send to clients
func PublicMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && StatusCode(richErr) < http.StatusInternalServerError {
		return richErr.Message
	}
	if goerrors.Is(err, ErrStoreUnavailable) {
		return ErrStoreUnavailable.Message
	}
	return "internal server error"
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenInvalid) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
