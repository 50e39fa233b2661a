package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"bookfair/internal/domain"
	"bookfair/internal/repos"
	"bookfair/internal/validate"

	"github.com/google/uuid"
)

type PlaceInput struct {
	Contact domain.Contact
	// CartVersion, when set, must match the stored cart.
	CartVersion    *int64
	IdempotencyKey string
}

// Placement is the outcome of a checkout. Replayed is true when the
// idempotency key matched an earlier order and nothing new was written.
type Placement struct {
	Order    domain.Order
	Cart     domain.Cart
	Replayed bool
}

type OrderService struct {
	Orders *repos.OrderRepo
	Carts  *repos.CartRepo
}

func NewOrderService(orders *repos.OrderRepo, carts *repos.CartRepo) *OrderService {
	return &OrderService{Orders: orders, Carts: carts}
}

// ValidateContact trims c and checks every field.
func ValidateContact(c domain.Contact) (domain.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
	if fe := validate.Struct(c); fe != nil {
		return c, fe
	}
	return c, nil
}

func (s *OrderService) Place(ctx context.Context, buyer *domain.User, in PlaceInput) (Placement, error) {
	if buyer == nil || buyer.Role != domain.RoleBuyer {
		return Placement{}, domain.ErrRoleMismatch
	}
	contact, err := ValidateContact(in.Contact)
	if err != nil {
		return Placement{}, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if p, ok, err := s.replay(ctx, buyer.ID, key); ok || err != nil {
			return p, err
		}
	}

	order, cart, err := s.Orders.Place(ctx, repos.PlaceParams{
		OrderID:        uuid.NewString(),
		BuyerID:        buyer.ID,
		Contact:        contact,
		CartVersion:    in.CartVersion,
		IdempotencyKey: key,
	})
	if err != nil {
		// a concurrent attempt with the same key may have won the unique index
		if key != "" && domain.Code(err) == "" {
			if p, ok, rerr := s.replay(ctx, buyer.ID, key); ok && rerr == nil {
				return p, nil
			}
		}
		return Placement{}, err
	}
	return Placement{Order: order, Cart: cart}, nil
}

func (s *OrderService) replay(ctx context.Context, buyerID, key string) (Placement, bool, error) {
	order, err := s.Orders.ByIdempotencyKey(ctx, buyerID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Placement{}, false, nil
	}
	if err != nil {
		return Placement{}, false, err
	}
	cart, err := s.Carts.Load(ctx, buyerID)
	if err != nil {
		return Placement{}, false, err
	}
	return Placement{Order: order, Cart: cart, Replayed: true}, true, nil
}

func (s *OrderService) ListForBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.Orders.ListByBuyer(ctx, buyerID)
}

func (s *OrderService) ListForSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.Orders.ListBySeller(ctx, sellerID)
}

// Get returns the order if viewer bought it or sold something in it.
func (s *OrderService) Get(ctx context.Context, viewer *domain.User, id string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if viewer == nil || (o.BuyerID != viewer.ID && !o.HasSeller(viewer.ID)) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}
