package middleware

import (
	"errors"
	"strings"

	"booklend/internal/core/domain"
	"booklend/internal/pkg/apikey"
	"booklend/internal/pkg/jwt"
	"booklend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CallerKey is the fiber.Locals key holding the authenticated domain.Caller
const CallerKey = "caller"

// PaymentActor is the actor id recorded for payment service callbacks
const PaymentActor = "PAYMENT"

// AuthMiddleware validates the access token issued by the auth service and
// stores the caller in the request locals
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := jwt.ValidateAccessToken(accessToken, secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		role := domain.PlatformRole(claims.Role)
		if role == "" {
			role = domain.PlatformRoleUser
		}
		c.Locals(CallerKey, domain.Caller{ID: claims.UserID, Role: role})

		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.PlatformRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if caller.Role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// ArbiterOnly middleware allows only the ARBITER role
func ArbiterOnly() fiber.Handler {
	return RoleMiddleware(domain.PlatformRoleArbiter)
}

// PaymentKeyMiddleware authenticates the payment service by its shared key,
// sent as X-API-Key or as a bearer token
func PaymentKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get("X-API-Key")
		if provided == "" {
			provided = bearerToken(c)
		}
		if provided == "" {
			return response.Unauthorized(c, "API key required")
		}
		if !apikey.Matches(provided, key) {
			return response.Unauthorized(c, "Invalid API key")
		}

		c.Locals(CallerKey, domain.Caller{ID: PaymentActor, Role: domain.PlatformRolePayment})
		return c.Next()
	}
}

// CallerFrom returns the caller stored by the auth middlewares
func CallerFrom(c *fiber.Ctx) (domain.Caller, bool) {
	caller, ok := c.Locals(CallerKey).(domain.Caller)
	return caller, ok && caller.ID != ""
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
