package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bookfair/internal/config"
	"bookfair/internal/domain"
	applog "bookfair/internal/log"
)

// NewEngine loads the page templates with the helpers they call.
func NewEngine(dir string, reload bool) *html.Engine {
	engine := html.New(dir, ".html")
	engine.Reload(reload)
	engine.AddFunc("money", func(d decimal.Decimal) string { return d.StringFixed(2) })
	engine.AddFunc("inc", func(n int) int { return n + 1 })
	engine.AddFunc("dec", func(n int) int { return n - 1 })
	return engine
}

// NewApp wires middleware, pages and the JSON API onto a fresh fiber app.
func NewApp(cfg config.Config, db *sqlx.DB) *fiber.App {
	deps := NewDeps(db, cfg)

	app := fiber.New(fiber.Config{
		Views:                 NewEngine(cfg.TemplateDir, !cfg.Production()),
		ErrorHandler:          ErrorHandler,
		BodyLimit:             1 << 20, // 1 MiB
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	if !cfg.Production() {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(AttachUser(deps.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return isAPI(c) || c.Path() == "/healthz"
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.Production(),
		ContextKey:     "csrf",
		// bearer tokens are not ambient credentials
		Next: isAPI,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"form": c.FormValue("csrf")})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	registerPages(app, deps)
	registerAPI(app, deps)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		if isAPI(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return notFound(c, "Page not found")
	})
	return app
}

func registerPages(app *fiber.App, d *Deps) {
	authH := d.AuthHandler

	app.Get("/", authH.Home)
	app.Get("/login", authH.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			c.Status(fiber.StatusTooManyRequests)
			return render(c, "login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), authH.Login)
	app.Get("/signup", authH.SignupForm)
	app.Post("/signup", authH.Signup)
	app.Post("/logout", authH.Logout)

	buyer := RequireRole(d.Auth, domain.RoleBuyer)
	app.Get("/buyer", buyer, d.BuyerHandler.Dashboard)
	app.Get("/profile", buyer, d.BuyerHandler.Profile)
	app.Get("/cart", buyer, d.CartHandler.View)
	app.Post("/cart", buyer, d.CartHandler.Add)
	app.Post("/cart/clear", buyer, d.CartHandler.Clear)
	app.Post("/cart/:id/quantity", buyer, d.CartHandler.Quantity)
	app.Post("/cart/:id/delete", buyer, d.CartHandler.Remove)
	app.Post("/orders", buyer, d.OrderHandler.Place)
	app.Get("/orders/:id", buyer, d.OrderHandler.View)

	seller := app.Group("/seller", RequireRole(d.Auth, domain.RoleSeller))
	seller.Get("/", d.SellerHandler.Dashboard)
	seller.Get("/books/new", d.SellerHandler.NewBook)
	seller.Post("/books", d.SellerHandler.CreateBook)
	seller.Get("/books/:id/edit", d.SellerHandler.EditBook)
	seller.Post("/books/:id", d.SellerHandler.UpdateBook)
	seller.Post("/books/:id/delete", d.SellerHandler.DeleteBook)
	seller.Get("/orders/:id", d.OrderHandler.View)
}

func registerAPI(app *fiber.App, d *Deps) {
	h := d.API
	api := app.Group("/api")

	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + strings.TrimPrefix(c.Path(), "/api/")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.api.auth.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon", "code": "rate_limited"})
		},
	})
	api.Post("/register", authLimiter, h.Register)
	api.Post("/login", authLimiter, h.Login)

	anyone := RequireToken(d.Auth)
	buyer := RequireToken(d.Auth, domain.RoleBuyer)
	seller := RequireToken(d.Auth, domain.RoleSeller)

	api.Get("/me", anyone, h.Me)

	api.Get("/books", h.ListBooks)
	api.Get("/books/:id", h.GetBook)
	api.Post("/books", seller, h.CreateBook)
	api.Put("/books/:id", seller, h.ReplaceBook)
	api.Patch("/books/:id", seller, h.PatchBook)
	api.Delete("/books/:id", seller, h.DeleteBook)

	api.Get("/cart", buyer, h.GetCart)
	api.Put("/cart", buyer, h.PutCart)
	api.Delete("/cart", buyer, h.ClearCart)
	api.Patch("/cart/:id", buyer, h.SetCartQuantity)
	api.Delete("/cart/:id", buyer, h.RemoveCartLine)

	api.Get("/orders", anyone, h.ListOrders)
	api.Get("/orders/:id", anyone, h.GetOrder)
	api.Post("/orders", buyer, h.OrderThrottle.Handler("order"), h.PlaceOrder)
}
