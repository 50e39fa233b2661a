package repos

import (
	"context"
	"database/sql"
	"errors"

	"bookfair/internal/domain"

	"github.com/jmoiron/sqlx"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

// LineInput is one requested line of a full cart replacement.
type LineInput struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

const cartLinesQuery = `
	SELECT ci.book_id, b.name, b.author, b.image, b.price, b.stock, ci.quantity
	FROM cart_items ci JOIN books b ON b.id = ci.book_id
	WHERE ci.buyer_id = ?
	ORDER BY ci.position`

func ensureCart(ctx context.Context, tx *sqlx.Tx, buyerID string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO carts(buyer_id,version,updated_at) VALUES(?,0,?)
		ON CONFLICT(buyer_id) DO NOTHING`), buyerID, now())
	return err
}

func cartVersion(ctx context.Context, tx *sqlx.Tx, buyerID string) (int64, error) {
	var v int64
	err := tx.GetContext(ctx, &v, tx.Rebind(`SELECT version FROM carts WHERE buyer_id = ?`), buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func cartLines(ctx context.Context, tx *sqlx.Tx, buyerID string) ([]domain.CartLine, error) {
	lines := []domain.CartLine{}
	err := tx.SelectContext(ctx, &lines, tx.Rebind(cartLinesQuery), buyerID)
	return lines, err
}

func bumpVersion(ctx context.Context, tx *sqlx.Tx, buyerID string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE carts SET version = version + 1, updated_at = ? WHERE buyer_id = ?`), now(), buyerID)
	return err
}

// Load returns the buyer's cart; a buyer with no cart row has an empty cart at version 0.
func (r *CartRepo) Load(ctx context.Context, buyerID string) (domain.Cart, error) {
	var cart domain.Cart
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		if cart.Version, err = cartVersion(ctx, tx, buyerID); err != nil {
			return err
		}
		cart.Lines, err = cartLines(ctx, tx, buyerID)
		return err
	})
	return cart, err
}

// mutate runs fn in a transaction on an existing cart row. If expected is set
// and differs from the stored version the change is refused with
// domain.ErrCartConflict. The version is bumped only when fn reports a change.
func (r *CartRepo) mutate(ctx context.Context, buyerID string, expected *int64, fn func(tx *sqlx.Tx) (bool, error)) (domain.Cart, error) {
	var cart domain.Cart
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := ensureCart(ctx, tx, buyerID); err != nil {
			return err
		}
		v, err := cartVersion(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		if expected != nil && *expected != v {
			return domain.ErrCartConflict
		}
		changed, err := fn(tx)
		if err != nil {
			return err
		}
		if changed {
			if err := bumpVersion(ctx, tx, buyerID); err != nil {
				return err
			}
			v++
		}
		cart.Version = v
		cart.Lines, err = cartLines(ctx, tx, buyerID)
		return err
	})
	return cart, err
}

func insertLine(ctx context.Context, tx *sqlx.Tx, buyerID, bookID string, qty int) error {
	ts := now()
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO cart_items(buyer_id,book_id,quantity,position,created_at,updated_at)
		VALUES(?,?,?,(SELECT COALESCE(MAX(position),0)+1 FROM cart_items WHERE buyer_id=?),?,?)
		ON CONFLICT(buyer_id,book_id) DO UPDATE
		SET quantity = cart_items.quantity + excluded.quantity, updated_at = excluded.updated_at`),
		buyerID, bookID, qty, buyerID, ts, ts)
	return err
}

// AddOne increments the line for bookID or appends it with quantity 1.
func (r *CartRepo) AddOne(ctx context.Context, buyerID, bookID string) (domain.Cart, error) {
	return r.mutate(ctx, buyerID, nil, func(tx *sqlx.Tx) (bool, error) {
		return true, insertLine(ctx, tx, buyerID, bookID, 1)
	})
}

// Replace swaps the whole cart for lines, guarded by the expected version.
func (r *CartRepo) Replace(ctx context.Context, buyerID string, expected int64, lines []LineInput) (domain.Cart, error) {
	return r.mutate(ctx, buyerID, &expected, func(tx *sqlx.Tx) (bool, error) {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cart_items WHERE buyer_id = ?`), buyerID); err != nil {
			return false, err
		}
		for _, l := range lines {
			if err := insertLine(ctx, tx, buyerID, l.BookID, l.Quantity); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

// SetQuantity returns sql.ErrNoRows when the line is absent.
func (r *CartRepo) SetQuantity(ctx context.Context, buyerID, bookID string, qty int) (domain.Cart, error) {
	return r.mutate(ctx, buyerID, nil, func(tx *sqlx.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE cart_items SET quantity = ?, updated_at = ?
			WHERE buyer_id = ? AND book_id = ?`), qty, now(), buyerID, bookID)
		if err != nil {
			return false, err
		}
		if err := expectOne(res); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Remove is idempotent: removing an absent line leaves the version alone.
func (r *CartRepo) Remove(ctx context.Context, buyerID, bookID string) (domain.Cart, error) {
	return r.mutate(ctx, buyerID, nil, func(tx *sqlx.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cart_items WHERE buyer_id = ? AND book_id = ?`), buyerID, bookID)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n > 0, err
	})
}

func (r *CartRepo) Clear(ctx context.Context, buyerID string) (domain.Cart, error) {
	return r.mutate(ctx, buyerID, nil, func(tx *sqlx.Tx) (bool, error) {
		return clearLines(ctx, tx, buyerID)
	})
}

func clearLines(ctx context.Context, tx *sqlx.Tx, buyerID string) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM cart_items WHERE buyer_id = ?`), buyerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
