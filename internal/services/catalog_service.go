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
	"github.com/shopspring/decimal"
)

// BookInput is a full listing as sent by a seller.
type BookInput struct {
	Name   string          `json:"name" validate:"required,max=200"`
	Author string          `json:"author" validate:"required,max=200"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock" validate:"gte=0"`
	Image  string          `json:"image" validate:"max=2000"`
}

// BookPatch changes only the fields that are set.
type BookPatch struct {
	Name   *string          `json:"name,omitempty"`
	Author *string          `json:"author,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"`
	Stock  *int             `json:"stock,omitempty"`
	Image  *string          `json:"image,omitempty"`
}

func (p BookPatch) apply(b domain.Book) BookInput {
	in := BookInput{Name: b.Name, Author: b.Author, Price: b.Price, Stock: b.Stock, Image: b.Image}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.Author != nil {
		in.Author = *p.Author
	}
	if p.Price != nil {
		in.Price = *p.Price
	}
	if p.Stock != nil {
		in.Stock = *p.Stock
	}
	if p.Image != nil {
		in.Image = *p.Image
	}
	return in
}

type Filter = repos.BookFilter

type CatalogService struct {
	Books *repos.BookRepo
}

func NewCatalogService(books *repos.BookRepo) *CatalogService {
	return &CatalogService{Books: books}
}

func (s *CatalogService) List(ctx context.Context, f Filter) ([]domain.Book, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		f.MinPrice, f.MaxPrice = f.MaxPrice, f.MinPrice
	}
	return s.Books.List(ctx, f)
}

func (s *CatalogService) Get(ctx context.Context, id string) (domain.Book, error) {
	b, err := s.Books.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return b, err
}

func normalize(in BookInput) (BookInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Author = strings.TrimSpace(in.Author)
	in.Image = strings.TrimSpace(in.Image)
	fe := validate.Struct(in)
	if fe == nil {
		fe = validate.FieldErrors{}
	}
	if in.Price.IsNegative() {
		fe.Add("price", "Price must not be negative")
	}
	if in.Image == "" {
		in.Image = domain.PlaceholderImage
	}
	return in, fe.Err()
}

// Create lists a new book for seller.
func (s *CatalogService) Create(ctx context.Context, seller *domain.User, in BookInput) (domain.Book, error) {
	if !seller.IsSeller() {
		return domain.Book{}, domain.ErrRoleMismatch
	}
	in, err := normalize(in)
	if err != nil {
		return domain.Book{}, err
	}
	b := domain.Book{
		ID:       uuid.NewString(),
		SellerID: seller.ID,
		Name:     in.Name,
		Author:   in.Author,
		Price:    in.Price,
		Stock:    in.Stock,
		Image:    in.Image,
	}
	if err := s.Books.Create(ctx, &b); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}

func (s *CatalogService) owned(ctx context.Context, seller *domain.User, id string) (domain.Book, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if seller == nil || b.SellerID != seller.ID {
		return domain.Book{}, domain.ErrNotOwner
	}
	return b, nil
}

// Replace overwrites every field of the seller's own book.
func (s *CatalogService) Replace(ctx context.Context, seller *domain.User, id string, in BookInput) (domain.Book, error) {
	b, err := s.owned(ctx, seller, id)
	if err != nil {
		return domain.Book{}, err
	}
	if in, err = normalize(in); err != nil {
		return domain.Book{}, err
	}
	b.Name, b.Author, b.Price, b.Stock, b.Image = in.Name, in.Author, in.Price, in.Stock, in.Image
	if err := s.Books.Update(ctx, &b); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}

func (s *CatalogService) Patch(ctx context.Context, seller *domain.User, id string, p BookPatch) (domain.Book, error) {
	b, err := s.owned(ctx, seller, id)
	if err != nil {
		return domain.Book{}, err
	}
	return s.Replace(ctx, seller, b.ID, p.apply(b))
}

// Delete unlists the book; it disappears from every cart that held it.
func (s *CatalogService) Delete(ctx context.Context, seller *domain.User, id string) error {
	if _, err := s.owned(ctx, seller, id); err != nil {
		return err
	}
	err := s.Books.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrBookNotFound
	}
	return err
}
