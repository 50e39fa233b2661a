// Package session is the shop client's local store: who is signed in, their
// token, the last cart the server acknowledged and a local order history.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"bookfair/internal/domain"
)

const (
	keyUser       = "user"
	keyToken      = "token"
	keyShopName   = "shopName"
	keyProfilePic = "profilePic"
	keyCart       = "cart"
	keyOrders     = "orders"
)

var ErrNoSession = errors.New("not signed in")

type Session struct {
	User       *domain.User
	Token      string
	ShopName   string
	ProfilePic string
}

type Store struct {
	db *sqlx.DB
}

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func get(ctx context.Context, q sqlx.QueryerContext, key string, v any) (bool, error) {
	var raw string
	err := sqlx.GetContext(ctx, q, &raw, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(raw), v)
}

func put(ctx context.Context, e sqlx.ExecerContext, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(raw))
	return err
}

func (s *Store) Load(ctx context.Context) (*Session, error) {
	var u domain.User
	ok, err := get(ctx, s.db, keyUser, &u)
	if err != nil {
		return nil, err
	}
	if !ok || u.ID == "" {
		return nil, ErrNoSession
	}
	sess := &Session{User: &u}
	for key, dst := range map[string]*string{keyToken: &sess.Token, keyShopName: &sess.ShopName, keyProfilePic: &sess.ProfilePic} {
		if _, err := get(ctx, s.db, key, dst); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// Save writes the whole session at once.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.User == nil {
		return ErrNoSession
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for key, v := range map[string]any{
		keyUser:       sess.User,
		keyToken:      sess.Token,
		keyShopName:   sess.ShopName,
		keyProfilePic: sess.ProfilePic,
	} {
		if err := put(ctx, tx, key, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear forgets everything, cart and local orders included.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv`)
	return err
}

// Require returns the session when its user has role.
func (s *Store) Require(ctx context.Context, role domain.Role) (*Session, error) {
	sess, err := s.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil, fmt.Errorf("%w: sign in as a %s first", domain.ErrRoleMismatch, role)
	}
	if err != nil {
		return nil, err
	}
	if sess.User.Role != role {
		return nil, fmt.Errorf("%w: this needs a %s account", domain.ErrRoleMismatch, role)
	}
	return sess, nil
}

func (s *Store) SaveCart(ctx context.Context, cart domain.Cart) error {
	return put(ctx, s.db, keyCart, cart)
}

func (s *Store) LoadCart(ctx context.Context) (domain.Cart, error) {
	var cart domain.Cart
	_, err := get(ctx, s.db, keyCart, &cart)
	return cart, err
}

// AppendOrder adds o to the local history, newest first.
func (s *Store) AppendOrder(ctx context.Context, o domain.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var orders []domain.Order
	if _, err := get(ctx, tx, keyOrders, &orders); err != nil {
		return err
	}
	for _, prev := range orders {
		if prev.ID == o.ID {
			return tx.Commit()
		}
	}
	orders = append([]domain.Order{o}, orders...)
	if err := put(ctx, tx, keyOrders, orders); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Orders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	_, err := get(ctx, s.db, keyOrders, &orders)
	return orders, err
}
