package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Hour)
	tok, exp, err := issuer.Issue("acc-1", "individual", "a@b.com", "+2348031234567")
	require.NoError(t, err)

	claims, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "individual", claims.Kind)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
	assert.True(t, exp.Equal(claims.ExpiresAt.Time), "returned expiry matches the exp claim")
}

func TestParseExpiredIsDistinguished(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := issuer.Issue("acc-1", "individual", "", "")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("test-secret", time.Hour)
	other := NewTokenIssuer("other-secret", time.Hour)
	foreign, _, err := other.Issue("acc-1", "staff", "", "")
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "acc-1"})
	noExpiryStr, err := noExpiry.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	noSubjectStr, err := noSubject.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": foreign,
		"malformed":    "not.a.jwt",
		"empty":        "",
		"no expiry":    noExpiryStr,
		"no subject":   noSubjectStr,
	}

	for name, tok := range tests {
		_, err := issuer.Parse(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
	}
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set(HeaderAccessToken, "header-token")
	assert.Equal(t, "header-token", ExtractToken(r))

	r.Header.Set(HeaderAuthorization, "Bearer bearer-token")
	assert.Equal(t, "bearer-token", ExtractToken(r))

	r.Header.Set(HeaderAuthorization, "Basic dXNlcjpwYXNz")
	assert.Equal(t, "header-token", ExtractToken(r))
}
