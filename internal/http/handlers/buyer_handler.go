package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	applog "bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/validate"
)

var (
	defaultMin = decimal.Zero
	defaultMax = decimal.NewFromInt(1000)
)

// dashboardFilter reads q, min and max from the query string. Missing or
// malformed bounds fall back to the 0..1000 window the dashboards open with.
func dashboardFilter(c *fiber.Ctx) (services.Filter, fiber.Map) {
	raw := c.Query("q")
	q, ok := validate.Q(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" {
			applog.Security(c, "validation.fail", map[string]any{"field": "q"})
		}
		q = ""
	}
	lo, ok := validate.Price(c.Query("min"))
	if !ok {
		lo = defaultMin
	}
	hi, ok := validate.Price(c.Query("max"))
	if !ok {
		hi = defaultMax
	}
	f := services.Filter{Name: q, MinPrice: &lo, MaxPrice: &hi}
	return f, fiber.Map{"Q": q, "Min": lo.String(), "Max": hi.String()}
}

type BuyerHandler struct {
	Catalog *services.CatalogService
	Orders  *services.OrderService
}

func (h *BuyerHandler) Dashboard(c *fiber.Ctx) error {
	f, data := dashboardFilter(c)
	books, err := h.Catalog.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	data["Books"] = books
	return render(c, "buyer", data)
}

// Profile shows the buyer's details and order history.
func (h *BuyerHandler) Profile(c *fiber.Ctx) error {
	u := currentUser(c)
	orders, err := h.Orders.ListForBuyer(c.UserContext(), u.ID)
	if err != nil {
		return err
	}
	return render(c, "profile", fiber.Map{"Orders": orders})
}
