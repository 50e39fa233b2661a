package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookfair/internal/domain"
	"bookfair/internal/services"
	"bookfair/internal/validate"
)

func TestCatalogFilter(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	all, err := e.catalog.List(ctx, services.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	min, max := decimal.NewFromInt(0), decimal.NewFromInt(150)
	cheap, err := e.catalog.List(ctx, services.Filter{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	assert.Len(t, cheap, 2)

	named, err := e.catalog.List(ctx, services.Filter{Name: "MALGUDI"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "bk-002", named[0].ID)

	// swapped bounds are tolerated
	flipped, err := e.catalog.List(ctx, services.Filter{MinPrice: &max, MaxPrice: &min})
	require.NoError(t, err)
	assert.Len(t, flipped, 2)

	mira, err := e.catalog.List(ctx, services.Filter{SellerID: "u-mira"})
	require.NoError(t, err)
	assert.Len(t, mira, 1)
}

func TestCatalogSellerLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sam := e.user(t, "u-sam")
	mira := e.user(t, "u-mira")

	_, err := e.catalog.Create(ctx, sam, services.BookInput{Name: "", Author: "x", Price: decimal.NewFromInt(-1), Stock: -2})
	var fe validate.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "name")
	assert.Contains(t, fe, "price")
	assert.Contains(t, fe, "stock")

	b, err := e.catalog.Create(ctx, sam, services.BookInput{Name: "Godan", Author: "Premchand", Price: decimal.RequireFromString("120.00"), Stock: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.PlaceholderImage, b.Image)

	_, err = e.catalog.Patch(ctx, mira, b.ID, services.BookPatch{})
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	stock := 9
	b, err = e.catalog.Patch(ctx, sam, b.ID, services.BookPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 9, b.Stock)
	assert.Equal(t, "Godan", b.Name)

	_, err = e.catalog.Create(ctx, e.user(t, "u-asha"), services.BookInput{Name: "x", Author: "y"})
	assert.ErrorIs(t, err, domain.ErrRoleMismatch)

	_, err = e.cart.Add(ctx, "u-asha", b.ID)
	require.NoError(t, err)
	require.NoError(t, e.catalog.Delete(ctx, sam, b.ID))
	_, err = e.catalog.Get(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	cart, err := e.cart.Get(ctx, "u-asha")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines, "delisted books leave carts")
}
