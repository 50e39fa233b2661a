package handlers

import (
	"strings"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"

	"github.com/gofiber/fiber/v2"
)

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// AttachUser puts the cookie session's user into Locals for templates and guards.
func AttachUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := auth.CurrentUser(c.UserContext(), sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	}
}

// RequireRole admits only a signed-in user with role; everyone else is sent
// to the login page.
func RequireRole(auth *services.AuthService, role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := currentUser(c)
		if u == nil {
			if sid := c.Cookies("sid"); sid != "" {
				u, _ = auth.CurrentUser(c.UserContext(), sid)
			}
		}
		if u == nil {
			return c.Redirect("/login")
		}
		if u.Role != role {
			applog.Security(c, "access.denied.role", map[string]any{"want": string(role), "have": string(u.Role)})
			return c.Redirect("/login")
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireToken guards the JSON API with a bearer token. With no roles given
// any signed-in user passes.
func RequireToken(auth *services.AuthService, roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearer(c)
		if raw == "" {
			return apiError(c, domain.ErrUnauthorized)
		}
		u, err := auth.TokenUser(c.UserContext(), raw)
		if err != nil {
			applog.Security(c, "api.token.reject", map[string]any{"reason": err.Error()})
			return apiError(c, domain.ErrUnauthorized)
		}
		c.Locals("user", u)
		if len(roles) == 0 {
			return c.Next()
		}
		for _, r := range roles {
			if u.Role == r {
				return c.Next()
			}
		}
		applog.Security(c, "access.denied.role", map[string]any{"have": string(u.Role)})
		return apiError(c, domain.ErrRoleMismatch)
	}
}

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
