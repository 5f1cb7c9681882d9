package auth

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// DefaultLeeway tolerates clock skew between the console and the token issuer.
const DefaultLeeway = 30 * time.Second

// ExpiryChecker reads the exp claim of bearer tokens issued by the remote API.
// Signatures are not verified: the console never trusts claims for authorization, the remote API does.
type ExpiryChecker struct {
	leeway time.Duration
}

func NewExpiryChecker(leeway time.Duration) *ExpiryChecker {
	return &ExpiryChecker{leeway: leeway}
}

// ExpiresAt returns the exp claim. ok is false for opaque tokens and JWTs without exp.
func (c *ExpiryChecker) ExpiresAt(token string) (exp time.Time, ok bool) {
	parsed, err := jwt.ParseInsecure([]byte(token), jwt.WithValidate(false))
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Expiration()
}

// Expired reports whether token is past its exp claim at now. Tokens without a readable exp never expire.
func (c *ExpiryChecker) Expired(token string, now time.Time) bool {
	exp, ok := c.ExpiresAt(token)
	if !ok || exp.IsZero() {
		return false
	}
	return now.After(exp.Add(c.leeway))
}
