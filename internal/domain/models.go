package domain

import "github.com/shopspring/decimal"

// PlaceholderImage is shown for books listed without a cover.
const PlaceholderImage = "https://via.placeholder.com/150"

type Book struct {
	ID        string          `db:"id" json:"id"`
	SellerID  string          `db:"seller_id" json:"sellerId"`
	Name      string          `db:"name" json:"name"`
	Author    string          `db:"author" json:"author"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     int             `db:"stock" json:"stock"`
	Image     string          `db:"image" json:"image"`
	CreatedAt string          `db:"created_at" json:"createdAt,omitempty"`
	UpdatedAt string          `db:"updated_at" json:"updatedAt,omitempty"`
}

const lowStock = 5

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

func (b Book) Availability() Availability {
	status := "OUT_OF_STOCK"
	switch {
	case b.Stock >= lowStock:
		status = "IN_STOCK"
	case b.Stock > 0:
		status = "LOW_STOCK"
	}
	return Availability{Status: status, Qty: b.Stock}
}

func (b Book) Cover() string {
	if b.Image == "" {
		return PlaceholderImage
	}
	return b.Image
}
