package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/validate"
)

type OrderHandler struct {
	Cart   *services.CartService
	Orders *services.OrderService
}

// Place checks out the buyer's cart. The form carries the cart version it
// was rendered from and a one-off key, so a double submit places one order.
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	u := currentUser(c)
	in := services.PlaceInput{
		Contact: domain.Contact{
			Name:    c.FormValue("name"),
			Address: c.FormValue("address"),
			Phone:   c.FormValue("phone"),
		},
		IdempotencyKey: c.FormValue("key"),
	}
	if v, err := strconv.ParseInt(c.FormValue("version"), 10, 64); err == nil {
		in.CartVersion = &v
	}

	p, err := h.Orders.Place(c.UserContext(), u, in)
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"reason": err.Error()})
		cart, lerr := h.Cart.Get(c.UserContext(), u.ID)
		if lerr != nil {
			return lerr
		}
		return pageError(c, "cart", "order.place", err, cartData(c, cart, in.Contact, in.IdempotencyKey))
	}
	if !p.Replayed {
		applog.Audit(c, "order.place", map[string]any{
			"order_id": p.Order.ID,
			"total":    p.Order.TotalPrice.String(),
			"items":    len(p.Order.Items),
		})
	}
	return c.Redirect("/orders/" + p.Order.ID)
}

// View shows one order to its buyer or to a seller with an item in it.
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found")
	}
	u := currentUser(c)
	o, err := h.Orders.Get(c.UserContext(), u, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
			return notFound(c, "Order not found")
		}
		return err
	}
	data := fiber.Map{"Order": o}
	if u.IsSeller() {
		var mine []domain.OrderItem
		for _, it := range o.Items {
			if it.SellerID == u.ID {
				mine = append(mine, it)
			}
		}
		data["Mine"] = mine
	}
	return render(c, "order", data)
}
