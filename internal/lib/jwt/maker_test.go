package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func TestJWTMaker_GenerateAndParseToken_ValidCases(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker(testSecret, "nextgig-auth", tokenTTL)

	tests := []struct {
		name   string
		userID string
		email  string
	}{
		{name: "firebase style uid", userID: "kq2Lr8sYwXh4", email: "user@domain.com"},
		{name: "uuid user", userID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", email: "other@domain.com"},
		{name: "no email", userID: "u-1", email: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.email)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.userID, claims.UserID())
			assert.Equal(t, tt.email, claims.Email)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	maker := NewJWTMaker(testSecret, "nextgig-auth", 15*time.Minute)

	validToken, err := maker.GenerateToken("u-1", "user@domain.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: mustToken(t, NewJWTMaker(testSecret, "nextgig-auth", -time.Hour), "u-1")},
		{name: "wrong secret key", token: mustToken(t, NewJWTMaker("wrong_secret_key", "nextgig-auth", time.Hour), "u-1")},
		{name: "wrong issuer", token: mustToken(t, NewJWTMaker(testSecret, "someone-else", time.Hour), "u-1")},
		{name: "missing subject", token: mustToken(t, NewJWTMaker(testSecret, "nextgig-auth", time.Hour), "")},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "none algorithm", token: noneToken(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_EmptyIssuerSkipsCheck(t *testing.T) {
	maker := NewJWTMaker(testSecret, "", time.Hour)
	token := mustToken(t, NewJWTMaker(testSecret, "any-issuer", time.Hour), "u-1")

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
}

func TestJWTMaker_TokenExpiration(t *testing.T) {
	maker := NewJWTMaker(testSecret, "", 100*time.Millisecond)

	token, err := maker.GenerateToken("u-1", "user@domain.com")
	require.NoError(t, err)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.NotNil(t, claims)

	time.Sleep(150 * time.Millisecond)

	_, err = maker.ParseToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func mustToken(t *testing.T, m *MakerImpl, userID string) string {
	token, err := m.GenerateToken(userID, "user@domain.com")
	require.NoError(t, err)
	return token
}

func noneToken(t *testing.T) string {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}
