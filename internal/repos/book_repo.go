package repos

import (
	"context"
	"database/sql"
	"strings"

	"bookfair/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type BookRepo struct{ db *sqlx.DB }

func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{db: db} }

// BookFilter narrows List. Zero values match everything.
type BookFilter struct {
	Name     string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SellerID string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const bookCols = `id, seller_id, name, author, price, stock, image, created_at, updated_at`

func (r *BookRepo) List(ctx context.Context, f BookFilter) ([]domain.Book, error) {
	where := []string{"1=1"}
	args := []any{}
	if q := strings.ToLower(strings.TrimSpace(f.Name)); q != "" {
		where = append(where, `LOWER(name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(q)+"%")
	}
	if f.MinPrice != nil {
		where = append(where, `price >= ?`)
		args = append(args, f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		where = append(where, `price <= ?`)
		args = append(args, f.MaxPrice.InexactFloat64())
	}
	if f.SellerID != "" {
		where = append(where, `seller_id = ?`)
		args = append(args, f.SellerID)
	}
	q := `SELECT ` + bookCols + ` FROM books WHERE ` + strings.Join(where, " AND ") + ` ORDER BY LOWER(name), id`

	out := []domain.Book{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// Get returns sql.ErrNoRows when the book does not exist.
func (r *BookRepo) Get(ctx context.Context, id string) (domain.Book, error) {
	var b domain.Book
	err := r.db.GetContext(ctx, &b, r.db.Rebind(`SELECT `+bookCols+` FROM books WHERE id = ?`), id)
	return b, err
}

// Stock returns the current stock of each of ids found in the catalog.
// Missing books have no entry.
func (r *BookRepo) Stock(ctx context.Context, ids []string) (map[string]int, error) {
	found := map[string]int{}
	if len(ids) == 0 {
		return found, nil
	}
	q, args, err := sqlx.In(`SELECT id, stock FROM books WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `db:"id"`
		Stock int    `db:"stock"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		found[row.ID] = row.Stock
	}
	return found, nil
}

func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	if b.CreatedAt == "" {
		b.CreatedAt = now()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO books(`+bookCols+`)
		VALUES(?,?,?,?,?,?,?,?,?)`),
		b.ID, b.SellerID, b.Name, b.Author, b.Price, b.Stock, b.Image, b.CreatedAt, b.UpdatedAt)
	return err
}

// Update rewrites every mutable field of b.
func (r *BookRepo) Update(ctx context.Context, b *domain.Book) error {
	b.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE books SET name=?, author=?, price=?, stock=?, image=?, updated_at=?
		WHERE id=?`),
		b.Name, b.Author, b.Price, b.Stock, b.Image, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes the book; cart lines referencing it cascade away.
func (r *BookRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM books WHERE id=?`), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
