package domain

import "github.com/shopspring/decimal"

// Contact is the shipping contact captured at checkout.
type Contact struct {
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address" validate:"required,max=300"`
	Phone   string `json:"phone" validate:"required,phone"`
}

type OrderItem struct {
	OrderID  string          `db:"order_id" json:"-"`
	BookID   string          `db:"book_id" json:"bookId"`
	SellerID string          `db:"seller_id" json:"sellerId"`
	Name     string          `db:"name" json:"name"`
	Price    decimal.Decimal `db:"price" json:"price"`
	Quantity int             `db:"quantity" json:"quantity"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Order is an immutable snapshot of a cart at checkout.
type Order struct {
	ID             string          `db:"id" json:"id"`
	BuyerID        string          `db:"buyer_id" json:"buyerId"`
	Name           string          `db:"name" json:"name"`
	Address        string          `db:"address" json:"address"`
	Phone          string          `db:"phone" json:"phone"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"totalPrice"`
	IdempotencyKey string          `db:"idempotency_key" json:"-"`
	CreatedAt      string          `db:"created_at" json:"createdAt"`
	Items          []OrderItem     `db:"-" json:"items"`
}

func (o Order) Contact() Contact {
	return Contact{Name: o.Name, Address: o.Address, Phone: o.Phone}
}

// HasSeller reports whether any item in the order was sold by sellerID.
func (o Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}
