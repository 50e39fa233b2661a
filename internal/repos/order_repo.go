package repos

import (
	"context"
	"database/sql"
	"fmt"

	"bookfair/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// PlaceParams describes one checkout attempt.
type PlaceParams struct {
	OrderID        string
	BuyerID        string
	Contact        domain.Contact
	CartVersion    *int64
	IdempotencyKey string
}

type placeLine struct {
	BookID   string          `db:"book_id"`
	SellerID string          `db:"seller_id"`
	Name     string          `db:"name"`
	Price    decimal.Decimal `db:"price"`
	Stock    int             `db:"stock"`
	Quantity int             `db:"quantity"`
}

// Place turns the buyer's cart into an order in a single transaction:
// version check, stock decrement, order and item snapshot, cart clear.
// Nothing is written unless every step succeeds.
func (r *OrderRepo) Place(ctx context.Context, p PlaceParams) (domain.Order, domain.Cart, error) {
	var (
		order domain.Order
		cart  domain.Cart
	)
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := ensureCart(ctx, tx, p.BuyerID); err != nil {
			return err
		}
		v, err := cartVersion(ctx, tx, p.BuyerID)
		if err != nil {
			return err
		}
		if p.CartVersion != nil && *p.CartVersion != v {
			return domain.ErrCartConflict
		}

		var lines []placeLine
		if err := tx.SelectContext(ctx, &lines, tx.Rebind(`
			SELECT ci.book_id, b.seller_id, b.name, b.price, b.stock, ci.quantity
			FROM cart_items ci JOIN books b ON b.id = ci.book_id
			WHERE ci.buyer_id = ?
			ORDER BY ci.position`), p.BuyerID); err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		total := decimal.Zero
		for _, l := range lines {
			res, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE books SET stock = stock - ?, updated_at = ?
				WHERE id = ? AND stock >= ?`), l.Quantity, now(), l.BookID, l.Quantity)
			if err != nil {
				return err
			}
			if err := expectOne(res); err != nil {
				return fmt.Errorf("%w: %q has %d left", domain.ErrInsufficientStock, l.Name, l.Stock)
			}
			total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		order = domain.Order{
			ID:             p.OrderID,
			BuyerID:        p.BuyerID,
			Name:           p.Contact.Name,
			Address:        p.Contact.Address,
			Phone:          p.Contact.Phone,
			TotalPrice:     total,
			IdempotencyKey: p.IdempotencyKey,
			CreatedAt:      now(),
		}
		key := sql.NullString{String: p.IdempotencyKey, Valid: p.IdempotencyKey != ""}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO orders(id,buyer_id,name,address,phone,total_price,idempotency_key,created_at)
			VALUES(?,?,?,?,?,?,?,?)`),
			order.ID, order.BuyerID, order.Name, order.Address, order.Phone, order.TotalPrice, key, order.CreatedAt); err != nil {
			return err
		}
		for _, l := range lines {
			it := domain.OrderItem{OrderID: order.ID, BookID: l.BookID, SellerID: l.SellerID, Name: l.Name, Price: l.Price, Quantity: l.Quantity}
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO order_items(order_id,book_id,seller_id,name,price,quantity)
				VALUES(?,?,?,?,?,?)`),
				it.OrderID, it.BookID, it.SellerID, it.Name, it.Price, it.Quantity); err != nil {
				return err
			}
			order.Items = append(order.Items, it)
		}

		if _, err := clearLines(ctx, tx, p.BuyerID); err != nil {
			return err
		}
		if err := bumpVersion(ctx, tx, p.BuyerID); err != nil {
			return err
		}
		cart = domain.Cart{Version: v + 1, Lines: []domain.CartLine{}}
		return nil
	})
	if err != nil {
		return domain.Order{}, domain.Cart{}, err
	}
	return order, cart, nil
}

const orderCols = `o.id, o.buyer_id, o.name, o.address, o.phone, o.total_price,
	COALESCE(o.idempotency_key,'') AS idempotency_key, o.created_at`

// Get returns sql.ErrNoRows when the order does not exist.
func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	if err := r.db.GetContext(ctx, &o, r.db.Rebind(`SELECT `+orderCols+` FROM orders o WHERE o.id = ?`), id); err != nil {
		return domain.Order{}, err
	}
	orders := []domain.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// ByIdempotencyKey returns sql.ErrNoRows when the buyer never used key.
func (r *OrderRepo) ByIdempotencyKey(ctx context.Context, buyerID, key string) (domain.Order, error) {
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`SELECT id FROM orders WHERE buyer_id = ? AND idempotency_key = ?`), buyerID, key)
	if err != nil {
		return domain.Order{}, err
	}
	return r.Get(ctx, id)
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	out := []domain.Order{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+orderCols+` FROM orders o
		WHERE o.buyer_id = ?
		ORDER BY o.created_at DESC, o.id`), buyerID); err != nil {
		return nil, err
	}
	return out, r.attachItems(ctx, out)
}

// ListBySeller returns orders holding at least one of the seller's books.
func (r *OrderRepo) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	out := []domain.Order{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+orderCols+` FROM orders o
		WHERE EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_id = ?)
		ORDER BY o.created_at DESC, o.id`), sellerID); err != nil {
		return nil, err
	}
	return out, r.attachItems(ctx, out)
}

func (r *OrderRepo) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	idx := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		idx[o.ID] = i
	}
	q, args, err := sqlx.In(`
		SELECT order_id, book_id, seller_id, name, price, quantity
		FROM order_items WHERE order_id IN (?)
		ORDER BY order_id, name`, ids)
	if err != nil {
		return err
	}
	var items []domain.OrderItem
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(q), args...); err != nil {
		return err
	}
	for _, it := range items {
		i := idx[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}
