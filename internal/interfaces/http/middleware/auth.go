// Package middleware holds gin middleware for the pipeline API.
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/buffalo/orderpipe/internal/infrastructure/auth"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/interfaces/http/dto"
)

// Context keys and header names
const (
	ClaimsKey     = "auth_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates a bearer token
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireScope rejects requests without a valid bearer token granting scope.
// Valid claims are stored under ClaimsKey.
func RequireScope(v TokenValidator, scope string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abort(c, dto.ErrCodeUnauthorized, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abort(c, dto.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abort(c, dto.ErrCodeUnauthorized, "Missing token")
			return
		}

		claims, err := v.Validate(token)
		if err != nil {
			log.Debug("Rejected bearer token",
				zap.String("request_id", logger.GetRequestID(c)),
				zap.Error(err),
			)
			abort(c, dto.ErrCodeUnauthorized, tokenErrorMessage(err))
			return
		}
		if !claims.HasScope(scope) {
			abort(c, dto.ErrCodeForbidden, "Token does not grant the "+scope+" scope")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the claims stored by RequireScope, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "Token is not yet valid"
	default:
		return "Invalid token"
	}
}

func abort(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, logger.GetRequestID(c)))
}
