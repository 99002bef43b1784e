package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-characters"

func newTestTokens(now *time.Time) *TokenService {
	return NewTokenService(TokenOptions{
		Secret:       testSecret,
		TTL:          time.Hour,
		CookieTTL:    90 * 24 * time.Hour,
		SecureCookie: true,
	}).WithClock(func() time.Time { return *now })
}

func TestTokenService_RoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokens(&now)

	token, exp, err := ts.Issue("665f1c2e8b3a4d0012345678")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := ts.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "665f1c2e8b3a4d0012345678", claims.Subject)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_Verify_Failures(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokens(&now)
	token, _, err := ts.Issue("user-1")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte("a-completely-different-signing-key"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		advance time.Duration
		want    error
	}{
		{"Garbage", "not.a.token", 0, ErrInvalidToken},
		{"Wrong Key", otherKey, 0, ErrInvalidToken},
		{"Alg None", noneToken, 0, ErrInvalidToken},
		{"Tampered", token + "x", 0, ErrInvalidToken},
		{"Expired", token, 2 * time.Hour, ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := now.Add(tt.advance)
			local := newTestTokens(&clock)
			_, err := local.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenService_Cookies(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestTokens(&now)

	c := ts.Cookie("abc")
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.True(t, c.HTTPOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, now.Add(90*24*time.Hour), c.Expires)

	gone := ts.ExpiredCookie()
	assert.Empty(t, gone.Value)
	assert.Equal(t, now.Add(10*time.Second), gone.Expires)
}

func TestTokenService_MissingSecret(t *testing.T) {
	t.Parallel()
	_, _, err := NewTokenService(TokenOptions{TTL: time.Hour}).Issue("user-1")
	assert.Error(t, err)
}
