package services

import (
	"testing"
	"time"

	"github.com/amirphl/jobboard-alerts/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewTokenService(config.JWTConfig{
		SecretKey: testSecret,
		Issuer:    "accounts",
		Audience:  "jobboard",
	})
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.JWTConfig
		expectError bool
	}{
		{name: "valid symmetric key configuration", cfg: config.JWTConfig{SecretKey: testSecret}},
		{name: "missing secret key", cfg: config.JWTConfig{}, expectError: true},
		{name: "rsa without public key", cfg: config.JWTConfig{UseRSAKeys: true}, expectError: true},
		{name: "rsa with garbage key", cfg: config.JWTConfig{UseRSAKeys: true, PublicKey: "nope"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestValidateToken_RoundTrip(t *testing.T) {
	svc := createTestTokenService(t)

	token, err := svc.SignAccessToken(42, "admin", 15*time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.True(t, claims.IsAdmin("admin"))
	assert.False(t, claims.IsAdmin(""))
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestValidateToken_Expired(t *testing.T) {
	svc := createTestTokenService(t)

	token, err := svc.SignAccessToken(1, "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := createTestTokenService(t)
	now := time.Now()

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"user_id":    7,
			"token_type": "access",
			"iat":        now.Unix(),
			"exp":        now.Add(time.Hour).Unix(),
			"iss":        "accounts",
			"aud":        "jobboard",
		}
	}

	wrongSecret := sign(base(), "another-secret-key-for-jwt-signing-32")
	refresh := base()
	refresh["token_type"] = "refresh"
	noUser := base()
	delete(noUser, "user_id")
	wrongAudience := base()
	wrongAudience["aud"] = "elsewhere"
	noExpiry := base()
	delete(noExpiry, "exp")

	cases := map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   wrongSecret,
		"refresh token":  sign(refresh, testSecret),
		"missing user":   sign(noUser, testSecret),
		"wrong audience": sign(wrongAudience, testSecret),
		"no expiry":      sign(noExpiry, testSecret),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}
