package auth

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Verify(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Verify satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Verify(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenInvalid
	}
	return f(tokenString)
}

var _ TokenValidator = TokenService(nil)
