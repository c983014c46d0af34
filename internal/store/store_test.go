package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siinc/xero-connect/internal/models"
)

func setupTestStore(t *testing.T) (TokenStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s, err := NewRedisStore("redis://"+mr.Addr(), log)
	require.NoError(t, err)

	return s, mr
}

func TestNewRedisStoreInvalidURL(t *testing.T) {
	_, err := NewRedisStore("not a url", logrus.New())
	assert.Error(t, err)
}

func TestTokensRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	tokens := &models.Tokens{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-def",
		ExpiresAt:    time.Now().Add(29 * time.Minute).Truncate(time.Second),
		IDToken:      "id-token",
		Scope:        "offline_access accounting.transactions",
	}

	require.NoError(t, s.StoreTokens(ctx, tokens))

	got, err := s.GetStoredTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tokens.AccessToken, got.AccessToken)
	assert.Equal(t, tokens.RefreshToken, got.RefreshToken)
	assert.Equal(t, tokens.Scope, got.Scope)
	assert.True(t, tokens.ExpiresAt.Equal(got.ExpiresAt))
}

func TestGetStoredTokensReturnsNilWhenAbsent(t *testing.T) {
	s, _ := setupTestStore(t)

	got, err := s.GetStoredTokens(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreTokensReplacesWhole(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTokens(ctx, &models.Tokens{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		IDToken:      "old-id-token",
	}))
	// New bundle has no id_token; no field of the old one may survive
	require.NoError(t, s.StoreTokens(ctx, &models.Tokens{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
	}))

	got, err := s.GetStoredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.Equal(t, "new-refresh", got.RefreshToken)
	assert.Empty(t, got.IDToken)
}

func TestDeleteTokensClearsTenantToo(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTokens(ctx, &models.Tokens{AccessToken: "a"}))
	require.NoError(t, s.StoreTenantID(ctx, "tenant-123"))

	require.NoError(t, s.DeleteTokens(ctx))

	tokens, err := s.GetStoredTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	tenantID, err := s.GetTenantID(ctx)
	require.NoError(t, err)
	assert.Empty(t, tenantID)
}

func TestDeleteTokensIdempotent(t *testing.T) {
	s, _ := setupTestStore(t)

	// Deleting when nothing is stored must not error
	assert.NoError(t, s.DeleteTokens(context.Background()))
	assert.NoError(t, s.DeleteTokens(context.Background()))
}

func TestTenantIDRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	tenantID, err := s.GetTenantID(ctx)
	require.NoError(t, err)
	assert.Empty(t, tenantID)

	require.NoError(t, s.StoreTenantID(ctx, "tenant-xyz"))

	tenantID, err = s.GetTenantID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-xyz", tenantID)
}

func TestVerifyOAuthStateConsumesExactlyOnce(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreOAuthState(ctx, "state-abc"))

	ok, err := s.VerifyOAuthState(ctx, "state-abc")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second use of the same state must fail closed
	ok, err = s.VerifyOAuthState(ctx, "state-abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyOAuthStateUnknown(t *testing.T) {
	s, _ := setupTestStore(t)

	ok, err := s.VerifyOAuthState(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOAuthStateExpires(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreOAuthState(ctx, "state-expiring"))

	mr.FastForward(11 * time.Minute)

	ok, err := s.VerifyOAuthState(ctx, "state-expiring")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreUnavailable(t *testing.T) {
	s, mr := setupTestStore(t)
	mr.Close()

	_, err := s.GetStoredTokens(context.Background())
	assert.True(t, errors.Is(err, ErrStoreUnavailable), "expected ErrStoreUnavailable, got %v", err)

	err = s.StoreTenantID(context.Background(), "tenant")
	assert.True(t, errors.Is(err, ErrStoreUnavailable), "expected ErrStoreUnavailable, got %v", err)
}

func TestKeepalive(t *testing.T) {
	s, _ := setupTestStore(t)

	timestamp, err := s.Keepalive(context.Background())
	require.NoError(t, err)

	_, err = time.Parse(time.RFC3339, timestamp)
	assert.NoError(t, err)
}
