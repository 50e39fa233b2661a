package handlers

import (
	"errors"
	"time"

	"bookfair/internal/domain"
	"bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth          *services.AuthService
	SecureCookies bool
}

func (h *AuthHandler) setSID(c *fiber.Ctx, sid string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.SecureCookies,
		Expires:  expires,
	})
}

// Home sends signed-in users to their dashboard.
func (h *AuthHandler) Home(c *fiber.Ctx) error {
	if u := currentUser(c); u != nil {
		return c.Redirect(u.Role.Dashboard())
	}
	return c.Redirect("/login")
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	if u := currentUser(c); u != nil {
		return c.Redirect(u.Role.Dashboard())
	}
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	pass := c.FormValue("password")
	fail := func(reason string) error {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": reason})
		c.Status(fiber.StatusUnauthorized)
		return render(c, "login", fiber.Map{"Err": "Invalid email or password", "Email": email})
	}
	if _, ok := validate.Email(email); !ok {
		return fail("bad_format")
	}
	if !validate.Password(pass) {
		return fail("bad_password_format")
	}

	// a fresh sid on every login
	sid := uuid.NewString()
	u, err := h.Auth.Login(c.UserContext(), sid, email, pass)
	if err != nil {
		return fail("bad_credentials")
	}
	h.setSID(c, sid, time.Time{})
	log.Audit(c, "auth.login.success", map[string]any{"email": u.Email, "role": string(u.Role)})
	return c.Redirect(u.Role.Dashboard())
}

func (h *AuthHandler) SignupForm(c *fiber.Ctx) error {
	return render(c, "signup", fiber.Map{"Form": services.Registration{Role: string(domain.RoleBuyer)}})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	in := services.Registration{
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		Role:     c.FormValue("role"),
		ShopName: c.FormValue("shopName"),
		Address:  c.FormValue("address"),
	}
	u, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		in.Password = ""
		if errors.Is(err, domain.ErrEmailTaken) {
			err = validate.FieldErrors{"email": "Email is already registered."}
		}
		log.Security(c, "auth.signup.fail", map[string]any{"email": in.Email, "reason": err.Error()})
		return pageError(c, "signup", "auth.signup", err, fiber.Map{"Form": in})
	}

	sid := uuid.NewString()
	if _, err := h.Auth.Login(c.UserContext(), sid, in.Email, in.Password); err != nil {
		return err
	}
	h.setSID(c, sid, time.Time{})
	log.Audit(c, "auth.signup", map[string]any{"email": u.Email, "role": string(u.Role)})
	return c.Redirect(u.Role.Dashboard())
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if sid := c.Cookies("sid"); sid != "" {
		_ = h.Auth.Logout(c.UserContext(), sid)
	}
	h.setSID(c, "", time.Now().Add(-1*time.Hour))
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/login")
}
