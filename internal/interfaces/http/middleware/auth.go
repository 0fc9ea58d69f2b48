package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/a2zsellr/backend/internal/infrastructure/auth"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/interfaces/http/dto"
)

const (
	claimsKey = "auth_claims"

	// WebhookSecretHeader carries the shared n8n secret
	WebhookSecretHeader = "X-Webhook-Secret"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SupabaseAuth requires a valid Supabase access token and stores its
// claims on the context
func SupabaseAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, dto.CodeUnauthorized, "Authorization header is required")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abort(c, dto.CodeTokenExpired, "Token has expired")
				return
			}
			logger.L(c.Request.Context()).Debug("Rejected access token")
			abort(c, dto.CodeUnauthorized, "Invalid token")
			return
		}

		c.Set(claimsKey, claims)
		if claims.Subject != "" {
			c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.Subject))
		}
		c.Next()
	}
}

// RequireAdmin allows only service role or admin callers. It must run
// after SupabaseAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			abort(c, dto.CodeUnauthorized, "Authentication required")
			return
		}
		if !claims.IsAdmin() {
			abort(c, dto.CodeForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// GetClaims returns the claims stored by SupabaseAuth, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// CronAuth requires "Authorization: Bearer <secret>". An empty secret
// rejects every request.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || !secretsEqual(token, secret) {
			abort(c, dto.CodeUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

// WebhookSecret requires a matching X-Webhook-Secret header when secret is
// set, and lets everything through otherwise
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && !secretsEqual(c.GetHeader(WebhookSecretHeader), secret) {
			abort(c, dto.CodeUnauthorized, "Invalid webhook secret")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func secretsEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
