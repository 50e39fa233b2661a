// Package client talks to the bookfair JSON API on behalf of the shop CLI.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"bookfair/internal/domain"
	"bookfair/internal/services"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	http *fiber.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: defaultTimeout,
		http:    &fiber.Client{UserAgent: "bookfair-shop"},
	}
}

type request struct {
	method  string
	path    string
	in      any
	headers map[string]string
}

// do sends r and decodes a 2xx JSON body into out. Anything else comes back
// as *APIError.
func (c *Client) do(ctx context.Context, r request, out any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	u := c.BaseURL + r.path
	var a *fiber.Agent
	switch r.method {
	case fiber.MethodGet:
		a = c.http.Get(u)
	case fiber.MethodPost:
		a = c.http.Post(u)
	case fiber.MethodPut:
		a = c.http.Put(u)
	case fiber.MethodPatch:
		a = c.http.Patch(u)
	case fiber.MethodDelete:
		a = c.http.Delete(u)
	default:
		return 0, fmt.Errorf("client: unsupported method %s", r.method)
	}

	timeout := c.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout > 0 {
		a.Timeout(timeout)
	}
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.Token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+c.Token)
	}
	for k, v := range r.headers {
		a.Set(k, v)
	}
	if r.in != nil {
		raw, err := json.Marshal(r.in)
		if err != nil {
			return 0, err
		}
		a.ContentType(fiber.MIMEApplicationJSON)
		a.Body(raw)
	}

	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, fmt.Errorf("%s %s: %w", r.method, r.path, errors.Join(errs...))
	}
	if status < 200 || status > 299 {
		return status, decodeError(status, body)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return status, fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
		}
	}
	return status, nil
}

type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register creates the account and keeps its token on c.
func (c *Client) Register(ctx context.Context, in services.Registration) (Session, error) {
	var s Session
	if _, err := c.do(ctx, request{method: fiber.MethodPost, path: "/api/register", in: in}, &s); err != nil {
		return Session{}, err
	}
	c.Token = s.Token
	return s, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	in := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, request{method: fiber.MethodPost, path: "/api/login", in: in}, &s); err != nil {
		return Session{}, err
	}
	c.Token = s.Token
	return s, nil
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if _, err := c.do(ctx, request{method: fiber.MethodGet, path: "/api/me"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// BookQuery filters the catalog; empty fields are not sent.
type BookQuery struct {
	Q      string
	Min    string
	Max    string
	Seller string
}

func (q BookQuery) encode() string {
	v := url.Values{}
	for k, s := range map[string]string{"q": q.Q, "min": q.Min, "max": q.Max, "seller": q.Seller} {
		if s != "" {
			v.Set(k, s)
		}
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *Client) Books(ctx context.Context, q BookQuery) ([]domain.Book, error) {
	var books []domain.Book
	_, err := c.do(ctx, request{method: fiber.MethodGet, path: "/api/books" + q.encode()}, &books)
	return books, err
}

func (c *Client) Book(ctx context.Context, id string) (domain.Book, error) {
	var b domain.Book
	_, err := c.do(ctx, request{method: fiber.MethodGet, path: "/api/books/" + url.PathEscape(id)}, &b)
	return b, err
}

func (c *Client) CreateBook(ctx context.Context, in services.BookInput) (domain.Book, error) {
	var b domain.Book
	_, err := c.do(ctx, request{method: fiber.MethodPost, path: "/api/books", in: in}, &b)
	return b, err
}

func (c *Client) ReplaceBook(ctx context.Context, id string, in services.BookInput) (domain.Book, error) {
	var b domain.Book
	_, err := c.do(ctx, request{method: fiber.MethodPut, path: "/api/books/" + url.PathEscape(id), in: in}, &b)
	return b, err
}

func (c *Client) PatchBook(ctx context.Context, id string, p services.BookPatch) (domain.Book, error) {
	var b domain.Book
	_, err := c.do(ctx, request{method: fiber.MethodPatch, path: "/api/books/" + url.PathEscape(id), in: p}, &b)
	return b, err
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: fiber.MethodDelete, path: "/api/books/" + url.PathEscape(id)}, nil)
	return err
}

func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	var cart domain.Cart
	_, err := c.do(ctx, request{method: fiber.MethodGet, path: "/api/cart"}, &cart)
	return cart, err
}

// PutCart replaces the server cart; version must be the one last seen.
func (c *Client) PutCart(ctx context.Context, version int64, lines []services.LineInput) (domain.Cart, error) {
	if lines == nil {
		lines = []services.LineInput{}
	}
	in := map[string]any{"version": version, "lines": lines}
	var cart domain.Cart
	_, err := c.do(ctx, request{method: fiber.MethodPut, path: "/api/cart", in: in}, &cart)
	return cart, err
}

func (c *Client) SetCartQuantity(ctx context.Context, bookID string, qty int) (domain.Cart, error) {
	var cart domain.Cart
	in := map[string]int{"quantity": qty}
	_, err := c.do(ctx, request{method: fiber.MethodPatch, path: "/api/cart/" + url.PathEscape(bookID), in: in}, &cart)
	return cart, err
}

func (c *Client) RemoveCartLine(ctx context.Context, bookID string) (domain.Cart, error) {
	var cart domain.Cart
	_, err := c.do(ctx, request{method: fiber.MethodDelete, path: "/api/cart/" + url.PathEscape(bookID)}, &cart)
	return cart, err
}

func (c *Client) ClearCart(ctx context.Context) (domain.Cart, error) {
	var cart domain.Cart
	_, err := c.do(ctx, request{method: fiber.MethodDelete, path: "/api/cart"}, &cart)
	return cart, err
}

func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	_, err := c.do(ctx, request{method: fiber.MethodGet, path: "/api/orders"}, &orders)
	return orders, err
}

func (c *Client) Order(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	_, err := c.do(ctx, request{method: fiber.MethodGet, path: "/api/orders/" + url.PathEscape(id)}, &o)
	return o, err
}

// Placed is the server's answer to a checkout.
type Placed struct {
	Order    domain.Order `json:"order"`
	Cart     domain.Cart  `json:"cart"`
	Replayed bool         `json:"-"`
}

// PlaceOrder checks out the server cart. Sending the same key again returns
// the order it already created.
func (c *Client) PlaceOrder(ctx context.Context, contact domain.Contact, version *int64, key string) (Placed, error) {
	in := struct {
		domain.Contact
		CartVersion *int64 `json:"cartVersion,omitempty"`
	}{contact, version}
	r := request{method: fiber.MethodPost, path: "/api/orders", in: in}
	if key != "" {
		r.headers = map[string]string{"Idempotency-Key": key}
	}
	var p Placed
	status, err := c.do(ctx, r, &p)
	if err != nil {
		return Placed{}, err
	}
	p.Replayed = status == fiber.StatusOK
	return p, nil
}
