package auth_test

import (
	"context"
	"testing"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.FromContext(ctx)
	assert.False(t, ok)
	assert.False(t, auth.Can(ctx, auth.PermissionAll))

	account := &auth.Account{Email: "jane@x.com", Role: auth.RoleCustomer}
	got, ok := auth.FromContext(auth.WithContext(ctx, account))
	require.True(t, ok)
	assert.Same(t, account, got)

	ts := newTokenService(testSigningKey, fixedNow)
	token, _, err := ts.Issue("admin-1", auth.RoleAdmin, auth.DefaultAdminTokenTTL, auth.PermissionAll)
	require.NoError(t, err)
	claims, err := ts.Verify(token)
	require.NoError(t, err)

	ctx = auth.WithClaimsContext(ctx, claims)
	stored, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, "admin-1", stored.UserID())
	assert.True(t, auth.Can(ctx, "catalog.write"))
	assert.Equal(t, auth.ActorRef{ID: "admin-1", Type: auth.ActorTypeUser}, auth.ActorFromClaims(claims))
}

func TestRouterLocalsHelpers(t *testing.T) {
	ctx := router.NewMockContext()

	_, ok := auth.GetRouterClaims(ctx, "")
	assert.False(t, ok)
	_, ok = auth.GetRouterAccount(ctx)
	assert.False(t, ok)

	ts := newTokenService(testSigningKey, fixedNow)
	token, _, err := ts.Issue("customer-1", auth.RoleCustomer, auth.DefaultTokenTTL)
	require.NoError(t, err)
	claims, err := ts.Verify(token)
	require.NoError(t, err)

	account := &auth.Account{Email: "jane@x.com", Role: auth.RoleCustomer}
	ctx.LocalsMock[auth.DefaultContextKey] = claims
	ctx.LocalsMock[auth.AccountContextKey] = account

	stored, ok := auth.GetRouterClaims(ctx, "")
	require.True(t, ok)
	assert.Equal(t, "customer-1", stored.UserID())

	got, ok := auth.GetRouterAccount(ctx)
	require.True(t, ok)
	assert.Same(t, account, got)

	ctx.LocalsMock["other"] = "not-claims"
	_, ok = auth.GetRouterClaims(ctx, "other")
	assert.False(t, ok)
}
