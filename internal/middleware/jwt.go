package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/cinema-ticket-order/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
	KeyClaims = "claims"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects its claims into the request context. Handlers read the buyer via
// c.Get("claims"); c.Get("user_id") and c.Get("role") stay available for the
// role guard and the rate limiter.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil || claims.Subject == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(KeyUserID, claims.Subject)
			c.Set(KeyRole, claims.Role)
			c.Set(KeyClaims, claims)
			return next(c)
		}
	}
}

// ClaimsOf returns the claims stored by JWTAuth, or nil on public routes.
func ClaimsOf(c echo.Context) *utils.AccessClaims {
	claims, _ := c.Get(KeyClaims).(*utils.AccessClaims)
	return claims
}
