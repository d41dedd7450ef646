package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperclip/paperclip/internal/common"
)

var testSecret = []byte("super-secret")

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestCodec(t *testing.T, secret []byte, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(secret, WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

func decodeSegment(t *testing.T, seg string) map[string]any {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewCodec([]byte{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestCodec_Issue_WireFormat(t *testing.T) {
	t.Parallel()

	T := time.Unix(1_700_000_000, 0)
	codec := newTestCodec(t, testSecret, &fakeClock{now: T})

	token, err := codec.Issue(Claims{"sub": "42"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.NotContains(t, p, "=", "segments must be unpadded")
	}

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Equal(t, `{"alg":"HS256","typ":"JWT"}`, string(header))

	assert.Equal(t, map[string]any{
		"sub": "42",
		"exp": json.Number("1700003600"),
	}, decodeSegment(t, parts[1]))

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Equal(t, `{"exp":1700003600,"sub":"42"}`, string(payload), "keys are sorted")

	mac := hmac.New(sha256.New, testSecret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), parts[2])
}

func TestCodec_Issue_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t, testSecret, &fakeClock{now: time.Unix(100, 0)})

	in := Claims{"sub": "7", "role": "reader"}
	_, err := codec.Issue(in, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, Claims{"sub": "7", "role": "reader"}, in)
}

func TestCodec_Issue_RejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t, testSecret, &fakeClock{now: time.Unix(100, 0)})

	_, err := codec.Issue(Claims{"sub": "1"}, 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
	_, err = codec.Issue(Claims{"sub": "1"}, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestCodec_Verify_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	T := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{now: T}
	codec := newTestCodec(t, testSecret, clock)

	token, err := codec.Issue(Claims{"sub": "42"}, 3600*time.Second)
	require.NoError(t, err)

	clock.Set(T.Add(3599 * time.Second))
	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Claims{"sub": "42", "exp": int64(1_700_003_600)}, claims)

	sub, ok := claims.Subject()
	assert.True(t, ok)
	assert.Equal(t, "42", sub)
	exp, ok := claims.ExpiresAt()
	assert.True(t, ok)
	assert.Equal(t, T.Add(time.Hour), exp)

	clock.Set(T.Add(3600 * time.Second))
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken, "exp equal to now is expired")

	clock.Set(T.Add(3601 * time.Second))
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
}

func TestCodec_Verify_PreservesExtraClaims(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t, testSecret, &fakeClock{now: time.Unix(1000, 0)})

	token, err := codec.Issue(Claims{"sub": "u-1", "email": "a@b.c", "admin": true}, time.Minute)
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", claims[ClaimEmail])
	assert.Equal(t, true, claims["admin"])
}

func TestCodec_Verify_TamperingIsIndistinguishableFromExpiry(t *testing.T) {
	t.Parallel()

	T := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{now: T}
	codec := newTestCodec(t, testSecret, clock)

	token, err := codec.Issue(Claims{"sub": "42"}, time.Hour)
	require.NoError(t, err)

	clock.Set(T.Add(2 * time.Hour))
	_, expiredErr := codec.Verify(token)
	require.Error(t, expiredErr)

	clock.Set(T)
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	for i := range payload {
		tampered := append([]byte(nil), payload...)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		forged := parts[0] + "." + string(tampered) + "." + parts[2]

		_, err := codec.Verify(forged)
		assert.Equal(t, expiredErr, err, "position %d", i)
	}
}

func TestCodec_Verify_WrongSecret(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1000, 0)}

	issuer := newTestCodec(t, []byte("right-secret"), clock)
	verifier := newTestCodec(t, []byte("wrong-secret"), clock)

	token, err := issuer.Issue(Claims{"sub": "u2"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
}

func TestCodec_Verify_RejectsForeignTokens(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	codec := newTestCodec(t, testSecret, &fakeClock{now: now})

	sign := func(method jwt.SigningMethod, claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
		require.NoError(t, err)
		return tok
	}
	future := now.Add(time.Hour).Unix()

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "exp": future}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"missing exp":    sign(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}),
		"string exp":     sign(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": "tomorrow"}),
		"HS512":          sign(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "1", "exp": future}),
		"alg none":       noneToken,
		"empty":          "",
		"two segments":   "a.b",
		"four segments":  "a.b.c.d",
		"bad base64":     "!!!.###.$$$",
		"json garbage":   base64.RawURLEncoding.EncodeToString([]byte("{")) + ".e30.sig",
		"garbage bearer": "garbage",
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			claims, err := codec.Verify(tok)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
		})
	}
}

func TestCodec_ConcurrentUse(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t, testSecret, &fakeClock{now: time.Unix(1000, 0)})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := codec.Issue(Claims{"sub": "c"}, time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			_, err = codec.Verify(tok)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
