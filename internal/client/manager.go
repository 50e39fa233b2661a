package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookfair/internal/domain"
	applog "bookfair/internal/log"
	"bookfair/internal/services"
)

// CartStore keeps the last committed cart between runs.
type CartStore interface {
	SaveCart(ctx context.Context, cart domain.Cart) error
}

// CartManager owns the buyer's cart on the client. Each mutation runs on a
// staged copy that becomes the cart only once the server has accepted it, so
// local state never gets ahead of the server. Mutations are serialized.
type CartManager struct {
	API   *Client
	Store CartStore

	mu   sync.Mutex
	cart domain.Cart
	// pendingKey survives a failed checkout so a retry cannot double-order
	pendingKey string
}

func NewCartManager(api *Client, store CartStore) *CartManager {
	return &CartManager{API: api, Store: store}
}

// Load replaces local state with the server cart.
func (m *CartManager) Load(ctx context.Context) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, err := m.API.GetCart(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	m.commit(ctx, cart)
	return cart.Clone(), nil
}

func (m *CartManager) Cart() domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

func (m *CartManager) Lines() []domain.CartLine {
	return m.Cart().Lines
}

func (m *CartManager) TotalPrice() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.TotalPrice()
}

// commit must run with mu held.
func (m *CartManager) commit(ctx context.Context, cart domain.Cart) {
	if cart.Version != m.cart.Version {
		m.pendingKey = ""
	}
	m.cart = cart
	if m.Store == nil {
		return
	}
	if err := m.Store.SaveCart(ctx, cart.Clone()); err != nil {
		applog.L().Warn("cart.persist.fail", zap.Error(err))
	}
}

// send pushes staged to the server under the version it was derived from.
// A version conflict pulls the server cart and reports ErrCartConflict.
func (m *CartManager) send(ctx context.Context, staged domain.Cart) (domain.Cart, error) {
	lines := make([]services.LineInput, 0, len(staged.Lines))
	for _, l := range staged.Lines {
		lines = append(lines, services.LineInput{BookID: l.BookID, Quantity: l.Quantity})
	}
	cart, err := m.API.PutCart(ctx, m.cart.Version, lines)
	if errors.Is(err, domain.ErrCartConflict) {
		if fresh, lerr := m.API.GetCart(ctx); lerr == nil {
			m.commit(ctx, fresh)
		}
		return m.cart.Clone(), err
	}
	if err != nil {
		return m.cart.Clone(), err
	}
	m.commit(ctx, cart)
	return cart.Clone(), nil
}

// Add puts one more copy of b in the cart. Stock is the server's call.
func (m *CartManager) Add(ctx context.Context, b domain.Book) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.cart.Clone()
	staged.Add(b)
	return m.send(ctx, staged)
}

// Remove drops a line. An id that is not in the cart is a no-op.
func (m *CartManager) Remove(ctx context.Context, bookID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.cart.Clone()
	if !staged.Remove(bookID) {
		return staged, nil
	}
	return m.send(ctx, staged)
}

// SetQuantity rejects quantities below one or above the known stock before
// asking the server, which checks again against current stock. A server
// rejection reloads the cart so the stale stock is refreshed.
func (m *CartManager) SetQuantity(ctx context.Context, bookID string, qty int) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.cart.Clone()
	if err := staged.SetQuantity(bookID, qty); err != nil {
		return m.cart.Clone(), err
	}
	cart, err := m.API.SetCartQuantity(ctx, bookID, qty)
	if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrLineNotFound) {
		if fresh, lerr := m.API.GetCart(ctx); lerr == nil {
			m.commit(ctx, fresh)
		}
		return m.cart.Clone(), err
	}
	if err != nil {
		return m.cart.Clone(), err
	}
	m.commit(ctx, cart)
	return cart.Clone(), nil
}

func (m *CartManager) Clear(ctx context.Context) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cart.Empty() {
		return m.cart.Clone(), nil
	}
	return m.send(ctx, domain.Cart{Version: m.cart.Version})
}

// PlaceOrder checks out the cart. Nothing is sent for an empty cart or an
// invalid contact. On failure the cart is untouched and the idempotency key
// is kept for the retry.
func (m *CartManager) PlaceOrder(ctx context.Context, contact domain.Contact) (Placed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cart.Empty() {
		return Placed{}, domain.ErrEmptyCart
	}
	contact, err := services.ValidateContact(contact)
	if err != nil {
		return Placed{}, err
	}
	if m.pendingKey == "" {
		m.pendingKey = uuid.NewString()
	}
	version := m.cart.Version
	p, err := m.API.PlaceOrder(ctx, contact, &version, m.pendingKey)
	if err != nil {
		if errors.Is(err, domain.ErrCartConflict) {
			if fresh, lerr := m.API.GetCart(ctx); lerr == nil {
				m.commit(ctx, fresh)
			}
		}
		return Placed{}, err
	}
	m.commit(ctx, p.Cart)
	m.pendingKey = ""
	return p, nil
}
