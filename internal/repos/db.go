package repos

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "bookfair/internal/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

const timeLayout = "2006-01-02T15:04:05.000000Z"

func now() string { return time.Now().UTC().Format(timeLayout) }

// OpenDB connects to driver ("sqlite" or "postgres"), applies migrations and
// seeds demo data into an empty database.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one connection: ":memory:" stays a single database and writers serialize
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := seedIfEmpty(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return db, nil
}

func migrateUp(db *sqlx.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	var drv database.Driver
	switch db.DriverName() {
	case "postgres":
		drv, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		drv, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	}
	if err != nil {
		return err
	}
	// m.Close would close db as well, so the instance is simply dropped
	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), drv)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

type seedUser struct {
	ID, Email, Name, Role, ShopName, Address string
}

var demoUsers = []seedUser{
	{ID: "u-asha", Email: "asha@bookfair.test", Name: "Asha", Role: "buyer"},
	{ID: "u-ben", Email: "ben@bookfair.test", Name: "Ben", Role: "buyer"},
	{ID: "u-sam", Email: "sam@bookfair.test", Name: "Sam", Role: "seller", ShopName: "Sam's Shelf", Address: "4 College Street, Kolkata"},
	{ID: "u-mira", Email: "mira@bookfair.test", Name: "Mira", Role: "seller", ShopName: "Mira Books", Address: "9 Church Street, Bengaluru"},
}

const demoPassword = "Passw0rd!"

var demoBooks = []struct {
	ID, SellerID, Name, Author, Price string
	Stock                             int
}{
	{"bk-001", "u-sam", "The Guide", "R. K. Narayan", "100", 5},
	{"bk-002", "u-sam", "Malgudi Days", "R. K. Narayan", "50", 2},
	{"bk-003", "u-sam", "Train to Pakistan", "Khushwant Singh", "299", 0},
	{"bk-004", "u-sam", "The God of Small Things", "Arundhati Roy", "450", 12},
	{"bk-005", "u-mira", "Wings of Fire", "A. P. J. Abdul Kalam", "199.50", 3},
}

// seedIfEmpty inserts demo users and books on first start only.
func seedIfEmpty(ctx context.Context, db *sqlx.DB) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	applog.L().Info("seed.demo", zap.Int("users", len(demoUsers)), zap.Int("books", len(demoBooks)))

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ts := now()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range demoUsers {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users(id,email,name,password_hash,role,shop_name,address,created_at)
			VALUES(?,?,?,?,?,?,?,?)`),
			u.ID, u.Email, u.Name, string(hash), u.Role, u.ShopName, u.Address, ts); err != nil {
			return err
		}
	}
	for _, b := range demoBooks {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO books(id,seller_id,name,author,price,stock,image,created_at,updated_at)
			VALUES(?,?,?,?,?,?,'',?,'')`),
			b.ID, b.SellerID, b.Name, b.Author, b.Price, b.Stock, ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// inTx runs fn inside a transaction, committing only when fn succeeds.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
