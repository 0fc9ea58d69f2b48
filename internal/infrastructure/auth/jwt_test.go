package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2zsellr/backend/internal/infrastructure/config"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func newTestVerifier() *Verifier {
	return NewVerifier(config.SupabaseConfig{
		JWTSecret:      testSecret,
		ServiceRoleKey: "service-role-key",
	})
}

func sign(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func userClaims(sub string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: "owner@example.com",
		Role:  RoleAuthenticated,
	}
}

func TestVerify_UserToken(t *testing.T) {
	v := newTestVerifier()
	id := uuid.New()
	token := sign(t, userClaims(id.String(), time.Hour), jwt.SigningMethodHS256, []byte(testSecret))

	claims, err := v.Verify(token)
	require.NoError(t, err)

	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, uid)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.False(t, claims.IsAdmin())
	assert.True(t, claims.CanAccessProfile(id))
	assert.False(t, claims.CanAccessProfile(uuid.New()))
}

func TestVerify_Rejections(t *testing.T) {
	v := newTestVerifier()
	sub := uuid.NewString()

	anon := userClaims(sub, time.Hour)
	anon.Role = RoleAnon
	noSub := userClaims("", time.Hour)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrInvalidToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", sign(t, userClaims(sub, time.Hour), jwt.SigningMethodHS256, []byte("other-secret")), ErrInvalidToken},
		{"expired", sign(t, userClaims(sub, -time.Hour), jwt.SigningMethodHS256, []byte(testSecret)), ErrExpiredToken},
		{"wrong algorithm", sign(t, userClaims(sub, time.Hour), jwt.SigningMethodHS512, []byte(testSecret)), ErrInvalidToken},
		{"anon role", sign(t, anon, jwt.SigningMethodHS256, []byte(testSecret)), ErrInvalidToken},
		{"missing subject", sign(t, noSub, jwt.SigningMethodHS256, []byte(testSecret)), ErrMissingSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_NotYetValid(t *testing.T) {
	v := newTestVerifier()
	c := userClaims(uuid.NewString(), 2*time.Hour)
	c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))

	_, err := v.Verify(sign(t, c, jwt.SigningMethodHS256, []byte(testSecret)))
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestVerify_LeewayAllowsClockSkew(t *testing.T) {
	v := newTestVerifier()
	c := userClaims(uuid.NewString(), -10*time.Second)

	_, err := v.Verify(sign(t, c, jwt.SigningMethodHS256, []byte(testSecret)))
	assert.NoError(t, err)
}

func TestVerify_ServiceRole(t *testing.T) {
	v := newTestVerifier()

	claims, err := v.Verify("service-role-key")
	require.NoError(t, err)
	assert.True(t, claims.IsServiceRole())
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.CanAccessProfile(uuid.New()))

	signed := &Claims{Role: RoleServiceRole, RegisteredClaims: jwt.RegisteredClaims{Issuer: "supabase"}}
	claims, err = v.Verify(sign(t, signed, jwt.SigningMethodHS256, []byte(testSecret)))
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

func TestVerify_AppMetadataAdmin(t *testing.T) {
	v := newTestVerifier()
	c := userClaims(uuid.NewString(), time.Hour)
	c.AppMetadata = map[string]any{"role": "admin", "provider": "email"}

	claims, err := v.Verify(sign(t, c, jwt.SigningMethodHS256, []byte(testSecret)))
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.False(t, claims.IsServiceRole())
}

func TestVerify_NoSecretConfigured(t *testing.T) {
	v := NewVerifier(config.SupabaseConfig{})
	_, err := v.Verify("anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
