// Package auth issues and verifies the signed bearer tokens shared by the
// auth service and the gateway. Tokens are HS256 JWTs; both processes must be
// configured with the same secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of a freshly issued token.
const DefaultTTL = 10 * time.Hour

// Claims is the token payload: the registered claims (sub, iat, exp) plus the
// role set of the subject.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// Username returns the subject the token was issued to.
func (c *Claims) Username() string {
	return c.Subject
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

type Option func(*Issuer)

// WithClock replaces time.Now for both issuing and verification.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns an issuer/verifier bound to secret. A non-positive ttl
// selects DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	i := &Issuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, o := range opts {
		o(i)
	}

	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		// exp has second precision: a token stays valid through its exp second
		jwt.WithTimeFunc(func() time.Time { return i.now().Truncate(time.Second) }),
		jwt.WithLeeway(time.Second),
	)
	return i, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subject carrying roles, valid from now until
// now + TTL.
func (i *Issuer) Issue(subject string, roles []string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}

	issuedAt := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
		Roles: append([]string(nil), roles...),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Failures are one of common.ErrInvalidSignature, common.ErrTokenExpired or
// common.ErrMalformedToken.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := i.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, classify(token, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}

func classify(token string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		// header and payload decode fine, so only the signature segment is broken
		if _, _, uerr := jwt.NewParser().ParseUnverified(token, &Claims{}); uerr == nil {
			return common.ErrInvalidSignature
		}
		return common.ErrMalformedToken
	default:
		return common.ErrMalformedToken
	}
}
