package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookfair/internal/domain"
	"bookfair/internal/repos"
)

func TestRoleGuards(t *testing.T) {
	app, db := newTestApp(t)
	logs := observeLogs(t)

	anon := newBrowser(t, app)
	for _, path := range []string{"/buyer", "/cart", "/profile", "/seller", "/seller/books/new"} {
		resp := anon.get(path)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
	assert.Zero(t, logs.FilterMessage("access.denied.role").Len(), "anonymous visitors are not denials")

	buyer := signedIn(t, app, db, "u-asha")
	resp := buyer.get("/seller")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	resp = buyer.get("/buyer")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	seller := signedIn(t, app, db, "u-sam")
	resp = seller.get("/cart")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	resp = seller.get("/seller")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	denied := logs.FilterMessage("access.denied.role").All()
	require.Len(t, denied, 2)
	assert.Equal(t, "u-asha", denied[0].ContextMap()["user_id"])
	assert.Equal(t, "seller", denied[0].ContextMap()["want"])
}

func TestOrderVisibility(t *testing.T) {
	app, db := newTestApp(t)
	ctx := context.Background()
	logs := observeLogs(t)

	carts := repos.NewCartRepo(db)
	_, err := carts.AddOne(ctx, "u-asha", "bk-005")
	require.NoError(t, err)
	order, _, err := repos.NewOrderRepo(db).Place(ctx, repos.PlaceParams{
		OrderID: "ord-1",
		BuyerID: "u-asha",
		Contact: domain.Contact{Name: "Asha", Address: "12 MG Road", Phone: "9876543210"},
	})
	require.NoError(t, err)

	owner := signedIn(t, app, db, "u-asha")
	resp := owner.get("/orders/" + order.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Wings of Fire")

	other := signedIn(t, app, db, "u-ben")
	resp = other.get("/orders/" + order.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, logs.FilterMessage("access.denied.order").Len())

	// Mira sold an item in it; Sam did not
	mira := signedIn(t, app, db, "u-mira")
	resp = mira.get("/seller/orders/" + order.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Your items in this order")

	sam := signedIn(t, app, db, "u-sam")
	resp = sam.get("/seller/orders/" + order.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
