package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellerBookForms(t *testing.T) {
	app, db := newTestApp(t)
	logs := observeLogs(t)
	b := signedIn(t, app, db, "u-mira")

	resp := b.get("/seller/books/new")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = b.post("/seller/books", url.Values{"name": {""}, "author": {"Kalam"}, "price": {"abc"}, "stock": {"2"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Price must be a number")

	resp = b.post("/seller/books", url.Values{"name": {"Ignited Minds"}, "author": {"Kalam"}, "price": {"-5"}, "stock": {"2"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Price must not be negative")

	resp = b.post("/seller/books", url.Values{"name": {"Ignited Minds"}, "author": {"Kalam"}, "price": {"175.25"}, "stock": {"6"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, 1, logs.FilterMessage("book.create").Len())

	var id string
	require.NoError(t, db.Get(&id, `SELECT id FROM books WHERE name = 'Ignited Minds'`))

	resp = b.get("/seller")
	page := body(t, resp)
	assert.Contains(t, page, "Ignited Minds")
	assert.Contains(t, page, "Wings of Fire")
	assert.NotContains(t, page, "The Guide", "only the seller's own books")

	resp = b.get("/seller/books/" + id + "/edit")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "175.25")

	resp = b.post("/seller/books/"+id, url.Values{"name": {"Ignited Minds"}, "author": {"A. P. J. Abdul Kalam"}, "price": {"180"}, "stock": {"4"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	var stock int
	require.NoError(t, db.Get(&stock, `SELECT stock FROM books WHERE id = ?`, id))
	assert.Equal(t, 4, stock)

	// another seller's book
	resp = b.get("/seller/books/bk-001/edit")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = b.post("/seller/books/bk-001", url.Values{"name": {"Mine now"}, "author": {"x"}, "price": {"1"}, "stock": {"1"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = b.post("/seller/books/bk-001/delete", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, logs.FilterMessage("book.update.denied").Len())
	assert.Equal(t, 1, logs.FilterMessage("book.delete.denied").Len())

	resp = b.post("/seller/books/"+id+"/delete", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM books WHERE id = ?`, id))
	assert.Zero(t, n)
}
