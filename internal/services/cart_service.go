package services

import (
	"context"
	"database/sql"
	"errors"

	"bookfair/internal/domain"
	"bookfair/internal/repos"
)

type LineInput = repos.LineInput

type CartService struct {
	Carts *repos.CartRepo
	Books *repos.BookRepo
}

func NewCartService(carts *repos.CartRepo, books *repos.BookRepo) *CartService {
	return &CartService{Carts: carts, Books: books}
}

func (s *CartService) Get(ctx context.Context, buyerID string) (domain.Cart, error) {
	return s.Carts.Load(ctx, buyerID)
}

// Add puts one more copy of bookID in the cart. Stock is not checked here;
// it is checked when the quantity is edited and again at checkout.
func (s *CartService) Add(ctx context.Context, buyerID, bookID string) (domain.Cart, error) {
	if _, err := s.Books.Get(ctx, bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrBookNotFound
		}
		return domain.Cart{}, err
	}
	return s.Carts.AddOne(ctx, buyerID, bookID)
}

// Replace stores lines as the whole cart if version is still current.
// Repeated book ids are merged. A line may not jump above stock; lines
// already above it (stock sold since) are kept as they are.
func (s *CartService) Replace(ctx context.Context, buyerID string, version int64, lines []LineInput) (domain.Cart, error) {
	merged := make([]LineInput, 0, len(lines))
	at := map[string]int{}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return domain.Cart{}, domain.ErrInvalidQuantity
		}
		if i, ok := at[l.BookID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		at[l.BookID] = len(merged)
		merged = append(merged, l)
		ids = append(ids, l.BookID)
	}
	stock, err := s.Books.Stock(ctx, ids)
	if err != nil {
		return domain.Cart{}, err
	}
	current, err := s.Carts.Load(ctx, buyerID)
	if err != nil {
		return domain.Cart{}, err
	}
	for _, l := range merged {
		n, ok := stock[l.BookID]
		if !ok {
			return domain.Cart{}, domain.ErrBookNotFound
		}
		// growing a line past stock is only allowed one copy at a time, as Add does
		prev, _ := current.Line(l.BookID)
		if l.Quantity > n && l.Quantity > prev.Quantity+1 {
			return domain.Cart{}, domain.ErrInsufficientStock
		}
	}
	return s.Carts.Replace(ctx, buyerID, version, merged)
}

func (s *CartService) SetQuantity(ctx context.Context, buyerID, bookID string, qty int) (domain.Cart, error) {
	if qty < 1 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}
	cart, err := s.Carts.Load(ctx, buyerID)
	if err != nil {
		return domain.Cart{}, err
	}
	line, ok := cart.Line(bookID)
	if !ok {
		return domain.Cart{}, domain.ErrLineNotFound
	}
	if qty > line.Stock {
		return domain.Cart{}, domain.ErrInsufficientStock
	}
	if qty == line.Quantity {
		return cart, nil
	}
	cart, err = s.Carts.SetQuantity(ctx, buyerID, bookID, qty)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, domain.ErrLineNotFound
	}
	return cart, err
}

// Remove never fails for a line that is not there.
func (s *CartService) Remove(ctx context.Context, buyerID, bookID string) (domain.Cart, error) {
	return s.Carts.Remove(ctx, buyerID, bookID)
}

func (s *CartService) Clear(ctx context.Context, buyerID string) (domain.Cart, error) {
	return s.Carts.Clear(ctx, buyerID)
}
