package auth

import (
	"errors"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/paperclip/paperclip/internal/common"
)

var (
	ErrMissingSecret = errors.New("token secret must not be empty")
	ErrInvalidTTL    = errors.New("token ttl must be positive")
)

const (
	ClaimSubject   = "sub"
	ClaimExpiresAt = "exp"
	ClaimEmail     = "email"
)

// Claims is the JSON object carried in a token's middle segment.
type Claims map[string]any

// Subject returns the "sub" claim when it is a non-empty string.
func (c Claims) Subject() (string, bool) {
	sub, ok := c[ClaimSubject].(string)
	return sub, ok && sub != ""
}

// ExpiresAt returns the "exp" claim of a verified token.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, ok := c[ClaimExpiresAt].(int64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(exp, 0), true
}

// Codec issues and verifies HS256 session tokens with a fixed secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a copy of claims with "exp" set to now+ttl in Unix seconds.
// The header is always {"alg":"HS256","typ":"JWT"}. Claims are a map, so the
// payload is encoded with keys in sorted order ({"exp":...,"sub":"42"});
// callers must compare decoded claims, never payload bytes.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	mc := make(jwt.MapClaims, len(claims)+1)
	maps.Copy(mc, claims)
	mc[ClaimExpiresAt] = c.now().Add(ttl).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.secret)
}

// Verify checks the signature and expiry of token and returns its claims.
// Every failure, whatever the cause, is common.ErrInvalidOrExpiredToken so a
// caller cannot tell a forged token from an expired one.
func (c *Codec) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithJSONNumber(),
	)

	mc := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidOrExpiredToken
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, common.ErrInvalidOrExpiredToken
	}

	claims := Claims(mc)
	claims[ClaimExpiresAt] = exp.Unix()
	return claims, nil
}
