package domain

import "github.com/shopspring/decimal"

// CartLine is a book in a cart along with the catalog fields shown next to it.
type CartLine struct {
	BookID   string          `db:"book_id" json:"bookId"`
	Name     string          `db:"name" json:"name"`
	Author   string          `db:"author" json:"author,omitempty"`
	Image    string          `db:"image" json:"image,omitempty"`
	Price    decimal.Decimal `db:"price" json:"price"`
	Stock    int             `db:"stock" json:"stock"`
	Quantity int             `db:"quantity" json:"quantity"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is versioned: every accepted change bumps Version, and writers holding
// a stale version are rejected.
type Cart struct {
	Version int64      `json:"version"`
	Lines   []CartLine `json:"lines"`
}

func (c Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c Cart) Empty() bool { return len(c.Lines) == 0 }

func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) Line(bookID string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.BookID == bookID {
			return l, true
		}
	}
	return CartLine{}, false
}

func (c Cart) Clone() Cart {
	out := Cart{Version: c.Version, Lines: make([]CartLine, len(c.Lines))}
	copy(out.Lines, c.Lines)
	return out
}

// Add increments the line for b, or appends a new line with quantity 1.
func (c *Cart) Add(b Book) {
	for i := range c.Lines {
		if c.Lines[i].BookID == b.ID {
			c.Lines[i].Quantity++
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{
		BookID:   b.ID,
		Name:     b.Name,
		Author:   b.Author,
		Image:    b.Image,
		Price:    b.Price,
		Stock:    b.Stock,
		Quantity: 1,
	})
}

// Remove drops the line for bookID and reports whether one existed.
func (c *Cart) Remove(bookID string) bool {
	for i := range c.Lines {
		if c.Lines[i].BookID == bookID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// SetQuantity checks qty against the line's known stock before applying it.
func (c *Cart) SetQuantity(bookID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].BookID != bookID {
			continue
		}
		if qty > c.Lines[i].Stock {
			return ErrInsufficientStock
		}
		c.Lines[i].Quantity = qty
		return nil
	}
	return ErrLineNotFound
}
