// Package auth verifies Supabase-issued access tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/a2zsellr/backend/internal/infrastructure/config"
)

// Supabase roles carried in the "role" claim
const (
	RoleAuthenticated = "authenticated"
	RoleServiceRole   = "service_role"
	RoleAnon          = "anon"

	// AdminRole is the app_metadata.role value granting admin endpoints
	AdminRole = "admin"

	defaultLeeway = 30 * time.Second
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing sub in claims")
	ErrNotConfigured    = errors.New("token verification is not configured")
)

// Claims are the parts of a Supabase access token the service reads.
type Claims struct {
	jwt.RegisteredClaims
	Email       string         `json:"email,omitempty"`
	Role        string         `json:"role"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
}

// UserID parses the subject as the profile id. Supabase uses the auth user
// id as the profiles primary key.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IsServiceRole reports whether the token is the project's service key
func (c *Claims) IsServiceRole() bool {
	return c.Role == RoleServiceRole
}

// IsAdmin reports whether the caller may use the admin endpoints.
func (c *Claims) IsAdmin() bool {
	if c.IsServiceRole() {
		return true
	}
	role, _ := c.AppMetadata["role"].(string)
	return role == AdminRole
}

// CanAccessProfile reports whether the caller owns id or is an admin.
func (c *Claims) CanAccessProfile(id uuid.UUID) bool {
	if c.IsAdmin() {
		return true
	}
	uid, err := c.UserID()
	return err == nil && uid == id
}

// Verifier validates HS256 tokens signed with the project JWT secret.
type Verifier struct {
	secret         []byte
	serviceRoleKey []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewVerifier creates a Verifier from the Supabase settings.
func NewVerifier(cfg config.SupabaseConfig) *Verifier {
	return &Verifier{
		secret:         []byte(cfg.JWTSecret),
		serviceRoleKey: []byte(cfg.ServiceRoleKey),
		leeway:         defaultLeeway,
		now:            time.Now,
	}
}

// Verify validates tokenString and returns its claims. The raw service
// role key is accepted as-is, so server-to-server callers work even when
// no JWT secret is configured.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if len(v.serviceRoleKey) > 0 && subtle.ConstantTimeCompare([]byte(tokenString), v.serviceRoleKey) == 1 {
		return &Claims{Role: RoleServiceRole}, nil
	}
	if len(v.secret) == 0 {
		return nil, ErrNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" && !claims.IsServiceRole() {
		return nil, ErrMissingSubject
	}
	if claims.Role == RoleAnon {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
