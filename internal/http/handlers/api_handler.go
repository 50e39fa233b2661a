package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"
	"bookfair/internal/validate"
)

// APIHandler serves /api for the command line client. Bodies are JSON and
// money travels as decimal strings.
type APIHandler struct {
	Auth          *services.AuthService
	Catalog       *services.CatalogService
	Cart          *services.CartService
	Orders        *services.OrderService
	OrderThrottle *Throttle
}

// apiError writes the error body the client decodes back into domain errors.
func apiError(c *fiber.Ctx, err error) error {
	var fe validate.FieldErrors
	if errors.Is(err, domain.ErrEmailTaken) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  err.Error(),
			"code":   domain.Code(err),
			"fields": validate.FieldErrors{"email": "Email is already registered."},
		})
	}
	if errors.As(err, &fe) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "invalid input",
			"code":   "invalid_input",
			"fields": fe,
		})
	}
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		if errors.Is(err, services.ErrInvalidToken) {
			return apiError(c, domain.ErrUnauthorized)
		}
		applog.Error(c, "api.error", err, nil)
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": domain.Code(err)})
}

func badBody(c *fiber.Ctx) error {
	applog.Security(c, "validation.fail", map[string]any{"field": "body"})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed JSON body", "code": "bad_request"})
}

func apiUser(c *fiber.Ctx) *domain.User { return currentUser(c) }

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *APIHandler) Register(c *fiber.Ctx) error {
	var in services.Registration
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	u, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return apiError(c, err)
	}
	tok, err := h.Auth.IssueToken(u)
	if err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "auth.signup", map[string]any{"email": u.Email, "role": string(u.Role)})
	return c.Status(fiber.StatusCreated).JSON(session{Token: tok, User: u})
}

func (h *APIHandler) Login(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	u, err := h.Auth.Authenticate(c.UserContext(), in.Email, in.Password)
	if err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"email": in.Email, "reason": "bad_credentials"})
		return apiError(c, err)
	}
	tok, err := h.Auth.IssueToken(u)
	if err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "auth.login.success", map[string]any{"email": u.Email, "role": string(u.Role)})
	return c.JSON(session{Token: tok, User: u})
}

func (h *APIHandler) Me(c *fiber.Ctx) error {
	return c.JSON(apiUser(c))
}

// ListBooks filters by q, min, max and seller. Unlike the dashboards no
// price window applies unless asked for.
func (h *APIHandler) ListBooks(c *fiber.Ctx) error {
	var f services.Filter
	fe := validate.FieldErrors{}
	if raw := c.Query("q"); strings.TrimSpace(raw) != "" {
		q, ok := validate.Q(raw)
		if !ok {
			fe.Add("q", "Search may only contain letters, digits and punctuation")
		}
		f.Name = q
	}
	if raw := c.Query("min"); raw != "" {
		d, ok := validate.Price(raw)
		if !ok {
			fe.Add("min", "Minimum price must be a non-negative number")
		}
		f.MinPrice = &d
	}
	if raw := c.Query("max"); raw != "" {
		d, ok := validate.Price(raw)
		if !ok {
			fe.Add("max", "Maximum price must be a non-negative number")
		}
		f.MaxPrice = &d
	}
	if raw := c.Query("seller"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			fe.Add("seller", "Invalid seller id")
		}
		f.SellerID = id
	}
	if err := fe.Err(); err != nil {
		return apiError(c, err)
	}
	books, err := h.Catalog.List(c.UserContext(), f)
	if err != nil {
		return apiError(c, err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return c.JSON(books)
}

func (h *APIHandler) GetBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrBookNotFound)
	}
	b, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(b)
}

func (h *APIHandler) CreateBook(c *fiber.Ctx) error {
	var in services.BookInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	b, err := h.Catalog.Create(c.UserContext(), apiUser(c), in)
	if err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "book.create", map[string]any{"book_id": b.ID, "name": b.Name})
	return c.Status(fiber.StatusCreated).JSON(b)
}

func (h *APIHandler) ReplaceBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrBookNotFound)
	}
	var in services.BookInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	b, err := h.Catalog.Replace(c.UserContext(), apiUser(c), id, in)
	if err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "book.update", map[string]any{"book_id": id})
	return c.JSON(b)
}

func (h *APIHandler) PatchBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrBookNotFound)
	}
	var p services.BookPatch
	if err := c.BodyParser(&p); err != nil {
		return badBody(c)
	}
	b, err := h.Catalog.Patch(c.UserContext(), apiUser(c), id, p)
	if err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "book.update", map[string]any{"book_id": id})
	return c.JSON(b)
}

func (h *APIHandler) DeleteBook(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrBookNotFound)
	}
	if err := h.Catalog.Delete(c.UserContext(), apiUser(c), id); err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "book.delete", map[string]any{"book_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func cartJSON(c *fiber.Ctx, cart domain.Cart) error {
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return c.JSON(cart)
}

func (h *APIHandler) GetCart(c *fiber.Ctx) error {
	cart, err := h.Cart.Get(c.UserContext(), apiUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	return cartJSON(c, cart)
}

type cartPut struct {
	Version int64                `json:"version"`
	Lines   []services.LineInput `json:"lines"`
}

// PutCart replaces the whole cart when version still matches the stored one.
func (h *APIHandler) PutCart(c *fiber.Ctx) error {
	var in cartPut
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	cart, err := h.Cart.Replace(c.UserContext(), apiUser(c).ID, in.Version, in.Lines)
	if err != nil {
		return apiError(c, err)
	}
	return cartJSON(c, cart)
}

func (h *APIHandler) ClearCart(c *fiber.Ctx) error {
	cart, err := h.Cart.Clear(c.UserContext(), apiUser(c).ID)
	if err != nil {
		return apiError(c, err)
	}
	return cartJSON(c, cart)
}

type quantityPatch struct {
	Quantity int `json:"quantity"`
}

func (h *APIHandler) SetCartQuantity(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrLineNotFound)
	}
	var in quantityPatch
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	cart, err := h.Cart.SetQuantity(c.UserContext(), apiUser(c).ID, id, in.Quantity)
	if err != nil {
		return apiError(c, err)
	}
	return cartJSON(c, cart)
}

func (h *APIHandler) RemoveCartLine(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrLineNotFound)
	}
	cart, err := h.Cart.Remove(c.UserContext(), apiUser(c).ID, id)
	if err != nil {
		return apiError(c, err)
	}
	return cartJSON(c, cart)
}

// ListOrders returns a buyer's purchases or the orders a seller has items in.
func (h *APIHandler) ListOrders(c *fiber.Ctx) error {
	u := apiUser(c)
	var (
		orders []domain.Order
		err    error
	)
	if u.IsSeller() {
		orders, err = h.Orders.ListForSeller(c.UserContext(), u.ID)
	} else {
		orders, err = h.Orders.ListForBuyer(c.UserContext(), u.ID)
	}
	if err != nil {
		return apiError(c, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return c.JSON(orders)
}

func (h *APIHandler) GetOrder(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiError(c, domain.ErrOrderNotFound)
	}
	o, err := h.Orders.Get(c.UserContext(), apiUser(c), id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(o)
}

type checkout struct {
	domain.Contact
	CartVersion *int64 `json:"cartVersion,omitempty"`
}

type placed struct {
	Order domain.Order `json:"order"`
	Cart  domain.Cart  `json:"cart"`
}

// PlaceOrder checks out the cart. A repeated Idempotency-Key returns the
// first order with 200 instead of placing another.
func (h *APIHandler) PlaceOrder(c *fiber.Ctx) error {
	var in checkout
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	p, err := h.Orders.Place(c.UserContext(), apiUser(c), services.PlaceInput{
		Contact:        in.Contact,
		CartVersion:    in.CartVersion,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"reason": err.Error()})
		return apiError(c, err)
	}
	if p.Cart.Lines == nil {
		p.Cart.Lines = []domain.CartLine{}
	}
	status := fiber.StatusCreated
	if p.Replayed {
		status = fiber.StatusOK
	} else {
		applog.Audit(c, "order.place", map[string]any{
			"order_id": p.Order.ID,
			"total":    p.Order.TotalPrice.String(),
			"items":    len(p.Order.Items),
		})
	}
	return c.Status(status).JSON(placed{Order: p.Order, Cart: p.Cart})
}
