package domain

import "errors"

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrBadCreds          = errors.New("invalid email or password")
	ErrEmailTaken        = errors.New("email is already registered")
	ErrUnauthorized      = errors.New("not signed in")
	ErrRoleMismatch      = errors.New("signed in with a different role")
	ErrBookNotFound      = errors.New("book not found")
	ErrNotOwner          = errors.New("book belongs to another seller")
	ErrOrderNotFound     = errors.New("order not found")
	ErrLineNotFound      = errors.New("book is not in the cart")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("not enough stock")
	ErrCartConflict      = errors.New("cart was changed elsewhere")
	ErrEmptyCart         = errors.New("cart is empty")
)

// codes are the stable identifiers carried in API error bodies.
var codes = []struct {
	err  error
	code string
}{
	{ErrBadCreds, "bad_credentials"},
	{ErrEmailTaken, "email_taken"},
	{ErrUnauthorized, "unauthorized"},
	{ErrRoleMismatch, "role_mismatch"},
	{ErrBookNotFound, "book_not_found"},
	{ErrNotOwner, "not_owner"},
	{ErrOrderNotFound, "order_not_found"},
	{ErrLineNotFound, "line_not_found"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrInsufficientStock, "insufficient_stock"},
	{ErrCartConflict, "cart_conflict"},
	{ErrEmptyCart, "empty_cart"},
	{ErrUnknownRole, "unknown_role"},
}

// Code returns the API code for err, or "" when err is not a domain error.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// ErrorForCode maps an API code back to its sentinel; nil when unknown.
func ErrorForCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
