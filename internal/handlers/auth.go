package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
)

const tenantKey = "tenant_id"

// Auth resolves the caller's tenant. With a secret every request needs a
// bearer token carrying a tenant_id claim; without one the X-Tenant-ID
// header is trusted as is.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headerTenant := 0
		if raw := c.Get("X-Tenant-ID"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil || id <= 0 {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid tenant")
			}
			headerTenant = id
		}

		if secret == "" {
			if headerTenant == 0 {
				return fiber.NewError(fiber.StatusUnauthorized, "Missing tenant")
			}
			c.Locals(tenantKey, headerTenant)
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		tenant, err := tenantFromToken(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		if headerTenant != 0 && headerTenant != tenant {
			return fiber.NewError(fiber.StatusForbidden, "Tenant mismatch")
		}
		c.Locals(tenantKey, tenant)
		return c.Next()
	}
}

func tenantFromToken(tokenString, secret string) (int, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("unexpected claims type")
	}
	// JSON numbers decode as float64
	switch v := claims["tenant_id"].(type) {
	case float64:
		if v > 0 {
			return int(v), nil
		}
	case string:
		if id, err := strconv.Atoi(v); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("token has no tenant_id")
}

func tenantID(c *fiber.Ctx) int {
	id, _ := c.Locals(tenantKey).(int)
	return id
}
