package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookfair/internal/client"
	"bookfair/internal/config"
	"bookfair/internal/domain"
	"bookfair/internal/http/handlers"
	"bookfair/internal/repos"
	"bookfair/internal/services"
	"bookfair/internal/validate"
)

// newServer runs the real app on a loopback port.
func newServer(t *testing.T) (string, *sqlx.DB) {
	t.Helper()
	cfg := config.Config{
		DBDriver:    "sqlite",
		DBDSN:       ":memory:",
		AppEnv:      "test",
		TemplateDir: "../../web/templates",
		JWTSecret:   "test-secret",
		JWTTTL:      time.Hour,
	}
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	require.NoError(t, err)
	app := handlers.NewApp(cfg, db)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = db.Close()
	})
	return "http://" + ln.Addr().String(), db
}

func login(t *testing.T, base, email string) *client.Client {
	t.Helper()
	c := client.New(base)
	_, err := c.Login(context.Background(), email, "Passw0rd!")
	require.NoError(t, err)
	return c
}

type storeMock struct{ mock.Mock }

func (s *storeMock) SaveCart(ctx context.Context, cart domain.Cart) error {
	return s.Called(ctx, cart).Error(0)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	base, _ := newServer(t)
	c := client.New(base)

	_, err := c.Login(ctx, "asha@bookfair.test", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrBadCreds)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)

	_, err = c.Register(ctx, services.Registration{Name: "Kim", Email: "kim@bookfair.test", Password: "123", Role: "buyer"})
	var fe validate.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "password")

	_, err = c.Book(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = c.GetCart(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	books, err := c.Books(ctx, client.BookQuery{Q: "days"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Malgudi Days", books[0].Name)
}

func TestClientSellerBooks(t *testing.T) {
	ctx := context.Background()
	base, _ := newServer(t)
	sam := login(t, base, "sam@bookfair.test")

	b, err := sam.CreateBook(ctx, services.BookInput{Name: "Godan", Author: "Premchand", Price: decimal.RequireFromString("120"), Stock: 2})
	require.NoError(t, err)

	stock := 7
	b, err = sam.PatchBook(ctx, b.ID, services.BookPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 7, b.Stock)

	mira := login(t, base, "mira@bookfair.test")
	err = mira.DeleteBook(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	mine, err := sam.Books(ctx, client.BookQuery{Seller: "u-sam", Min: "100", Max: "150"})
	require.NoError(t, err)
	assert.Len(t, mine, 2, "The Guide and Godan")

	require.NoError(t, sam.DeleteBook(ctx, b.ID))
}

func TestCartManager(t *testing.T) {
	ctx := context.Background()
	base, _ := newServer(t)
	api := login(t, base, "ben@bookfair.test")
	store := &storeMock{}
	store.On("SaveCart", mock.Anything, mock.Anything).Return(nil)
	m := client.NewCartManager(api, store)

	_, err := m.Load(ctx)
	require.NoError(t, err)

	guide, err := api.Book(ctx, "bk-001")
	require.NoError(t, err)
	wings, err := api.Book(ctx, "bk-005")
	require.NoError(t, err)

	_, err = m.Add(ctx, guide)
	require.NoError(t, err)
	cart, err := m.Add(ctx, wings)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cart.Version)
	assert.Equal(t, "299.5", m.TotalPrice().String())

	calls := len(store.Calls)
	cart, err = m.Remove(ctx, "bk-004")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cart.Version, "no-op removals never reach the server")
	assert.Len(t, store.Calls, calls)

	_, err = m.SetQuantity(ctx, "bk-005", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = m.SetQuantity(ctx, "bk-005", 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, m.Cart().Lines[1].Quantity, "rejected changes leave the cart alone")

	cart, err = m.SetQuantity(ctx, "bk-001", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cart.Version)

	store.AssertCalled(t, "SaveCart", mock.Anything, mock.MatchedBy(func(c domain.Cart) bool { return c.Version == 3 }))
}

func TestCartManagerConflict(t *testing.T) {
	ctx := context.Background()
	base, _ := newServer(t)
	m := client.NewCartManager(login(t, base, "ben@bookfair.test"), nil)
	other := login(t, base, "ben@bookfair.test")

	_, err := m.Load(ctx)
	require.NoError(t, err)

	// another device fills the cart first
	_, err = other.PutCart(ctx, 0, []services.LineInput{{BookID: "bk-004", Quantity: 3}})
	require.NoError(t, err)

	guide, err := other.Book(ctx, "bk-001")
	require.NoError(t, err)
	_, err = m.Add(ctx, guide)
	assert.ErrorIs(t, err, domain.ErrCartConflict)

	cart := m.Cart()
	assert.Equal(t, int64(1), cart.Version, "the manager reloaded the server cart")
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "bk-004", cart.Lines[0].BookID)

	cart, err = m.Add(ctx, guide)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)
}

func TestCartManagerSetQuantityStaleStock(t *testing.T) {
	ctx := context.Background()
	base, db := newServer(t)
	api := login(t, base, "ben@bookfair.test")
	m := client.NewCartManager(api, nil)

	guide, err := api.Book(ctx, "bk-001")
	require.NoError(t, err)
	_, err = m.Add(ctx, guide)
	require.NoError(t, err)
	require.Equal(t, 5, m.Cart().Lines[0].Stock)

	// copies sell elsewhere after the cart was loaded
	_, err = db.Exec(`UPDATE books SET stock = 1 WHERE id = 'bk-001'`)
	require.NoError(t, err)

	_, err = m.SetQuantity(ctx, "bk-001", 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	cart := m.Cart()
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, cart.Lines[0].Quantity)
	assert.Equal(t, 1, cart.Lines[0].Stock, "the rejection refreshed the known stock")

	_, err = m.SetQuantity(ctx, "bk-001", 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock, "caught locally now")
}

func TestCartManagerPlaceOrder(t *testing.T) {
	ctx := context.Background()
	base, db := newServer(t)
	api := login(t, base, "asha@bookfair.test")
	m := client.NewCartManager(api, nil)
	contact := domain.Contact{Name: "Asha", Address: "12 MG Road", Phone: "9876543210"}

	_, err := m.PlaceOrder(ctx, contact)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	malgudi, err := api.Book(ctx, "bk-002")
	require.NoError(t, err)
	_, err = m.Add(ctx, malgudi)
	require.NoError(t, err)

	_, err = m.PlaceOrder(ctx, domain.Contact{Name: "Asha", Address: "12 MG Road", Phone: "12-34"})
	var fe validate.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "phone")

	// someone else buys the last copies in the meantime
	_, err = db.Exec(`UPDATE books SET stock = 0 WHERE id = 'bk-002'`)
	require.NoError(t, err)
	_, err = m.PlaceOrder(ctx, contact)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Len(t, m.Lines(), 1, "failed checkout keeps the cart")

	_, err = db.Exec(`UPDATE books SET stock = 2 WHERE id = 'bk-002'`)
	require.NoError(t, err)
	p, err := m.PlaceOrder(ctx, contact)
	require.NoError(t, err)
	assert.False(t, p.Replayed)
	assert.Equal(t, "50", p.Order.TotalPrice.String())
	assert.Empty(t, m.Lines())

	orders, err := api.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, p.Order.ID, orders[0].ID)
}

func TestPlaceOrderReplay(t *testing.T) {
	ctx := context.Background()
	base, _ := newServer(t)
	api := login(t, base, "asha@bookfair.test")
	contact := domain.Contact{Name: "Asha", Address: "12 MG Road", Phone: "9876543210"}

	_, err := api.PutCart(ctx, 0, []services.LineInput{{BookID: "bk-004", Quantity: 1}})
	require.NoError(t, err)

	first, err := api.PlaceOrder(ctx, contact, nil, "retry-me")
	require.NoError(t, err)
	again, err := api.PlaceOrder(ctx, contact, nil, "retry-me")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
}
