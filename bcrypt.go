package auth

import (
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used for every stored hash
const DefaultPasswordCost = 10

// MaxPasswordBytes is the longest input bcrypt will hash
const MaxPasswordBytes = 72

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return hashPasswordWithCost(password, passwordHashCost())
}

func hashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if goerrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// PasswordHasher hashes new passwords and verifies candidates against stored hashes
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher is the default PasswordHasher
type BcryptHasher struct {
	cost   int
	logger Logger
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher returns a hasher using cost, or the build default when cost is 0
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = passwordHashCost()
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{
		cost:   cost,
		logger: defLogger{},
	}
}

func (h *BcryptHasher) WithLogger(logger Logger) *BcryptHasher {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Cost returns the configured work factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	return hashPasswordWithCost(password, h.cost)
}

// Verify never fails loudly: a malformed hash is logged and treated as a mismatch
func (h *BcryptHasher) Verify(password, hash string) bool {
	err := ComparePasswordAndHash(password, hash)
	if err == nil {
		return true
	}

	if !goerrors.Is(err, ErrMismatchedHashAndPassword) {
		h.logger.Warn("password hash could not be compared", "error", err, "hash_length", len(hash))
	}

	return false
}
