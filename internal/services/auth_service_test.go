package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookfair/internal/domain"
	"bookfair/internal/services"
	"bookfair/internal/validate"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.auth.Register(ctx, services.Registration{Name: "Ravi", Email: "ravi@bookfair.test", Password: "123", Role: "seller"})
	var fe validate.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "password")
	assert.Equal(t, "Shop name is required for sellers", fe["shopName"])
	assert.Equal(t, "Address is required for sellers", fe["address"])

	u, err := e.auth.Register(ctx, services.Registration{Name: "Ravi", Email: "ravi@bookfair.test", Password: "secret1", Role: "Seller", ShopName: "Ravi Reads", Address: "1 Park St"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSeller, u.Role)
	assert.NotEqual(t, "secret1", u.Hash)

	_, err = e.auth.Register(ctx, services.Registration{Name: "Other", Email: "RAVI@bookfair.test", Password: "secret1", Role: "buyer"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	buyer, err := e.auth.Register(ctx, services.Registration{Name: "Kim", Email: "kim@bookfair.test", Password: "secret1", Role: "buyer", ShopName: "ignored"})
	require.NoError(t, err)
	assert.Empty(t, buyer.ShopName)
}

func TestLoginSessions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.auth.Login(ctx, "sid-1", "asha@bookfair.test", "wrong")
	assert.ErrorIs(t, err, domain.ErrBadCreds)
	_, err = e.auth.Login(ctx, "sid-1", "nobody@bookfair.test", "Passw0rd!")
	assert.ErrorIs(t, err, domain.ErrBadCreds)

	u, err := e.auth.Login(ctx, "sid-1", "ASHA@bookfair.test", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "u-asha", u.ID)

	cur, err := e.auth.CurrentUser(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, cur.ID)

	require.NoError(t, e.auth.Logout(ctx, "sid-1"))
	_, err = e.auth.CurrentUser(ctx, "sid-1")
	assert.Error(t, err)
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	asha := e.user(t, "u-asha")

	tok, err := e.auth.IssueToken(asha)
	require.NoError(t, err)

	u, err := e.auth.TokenUser(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-asha", u.ID)

	other := services.NewTokens("another-secret", time.Hour)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	expired := services.NewTokens("test-secret", time.Minute)
	expired.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue(asha)
	require.NoError(t, err)
	_, err = e.auth.TokenUser(ctx, old)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
