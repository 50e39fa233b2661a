package handlers

import (
	"strconv"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CartHandler struct {
	Cart *services.CartService
}

// cartData is the model behind the cart page, which doubles as checkout.
func cartData(c *fiber.Ctx, cart domain.Cart, contact domain.Contact, key string) fiber.Map {
	if u := currentUser(c); u != nil {
		if contact.Name == "" {
			contact.Name = u.Name
		}
		if contact.Address == "" {
			contact.Address = u.Address
		}
	}
	if key == "" {
		key = uuid.NewString()
	}
	return fiber.Map{
		"Cart":    cart,
		"Total":   cart.TotalPrice(),
		"Contact": contact,
		"Key":     key,
	}
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cart, err := h.Cart.Get(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return render(c, "cart", cartData(c, cart, domain.Contact{}, ""))
}

// failed re-renders the cart with err explained.
func (h *CartHandler) failed(c *fiber.Ctx, action string, err error) error {
	cart, lerr := h.Cart.Get(c.UserContext(), currentUser(c).ID)
	if lerr != nil {
		return lerr
	}
	return pageError(c, "cart", action, err, cartData(c, cart, domain.Contact{}, ""))
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	id, ok := validate.ID(c.FormValue("bookId"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "bookId"})
		return h.failed(c, "cart.add", domain.ErrBookNotFound)
	}
	if _, err := h.Cart.Add(c.UserContext(), currentUser(c).ID, id); err != nil {
		return h.failed(c, "cart.add", err)
	}
	applog.Info(c, "cart.add", map[string]any{"book_id": id})
	return c.Redirect("/cart")
}

func (h *CartHandler) Quantity(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return h.failed(c, "cart.quantity", domain.ErrLineNotFound)
	}
	qty, err := strconv.Atoi(c.FormValue("quantity"))
	if err != nil {
		return h.failed(c, "cart.quantity", domain.ErrInvalidQuantity)
	}
	if _, err := h.Cart.SetQuantity(c.UserContext(), currentUser(c).ID, id, qty); err != nil {
		return h.failed(c, "cart.quantity", err)
	}
	return c.Redirect("/cart")
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Redirect("/cart")
	}
	if _, err := h.Cart.Remove(c.UserContext(), currentUser(c).ID, id); err != nil {
		return h.failed(c, "cart.remove", err)
	}
	return c.Redirect("/cart")
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if _, err := h.Cart.Clear(c.UserContext(), currentUser(c).ID); err != nil {
		return h.failed(c, "cart.clear", err)
	}
	return c.Redirect("/cart")
}
