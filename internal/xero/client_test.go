package xero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testClient(server *httptest.Server) *client {
	return &client{
		clientID:       "test-client-id",
		clientSecret:   "test-client-secret",
		redirectURI:    "https://siinc.io/api/xero/callback",
		tokenURL:       server.URL + "/connect/token",
		authorizeURL:   server.URL + "/identity/connect/authorize",
		connectionsURL: server.URL + "/connections",
		httpClient:     server.Client(),
		log:            testLogger(),
	}
}

func TestBuildAuthorizationURL(t *testing.T) {
	c := &client{
		clientID:     "test-client-id",
		redirectURI:  "https://siinc.io/api/xero/callback",
		authorizeURL: defaultAuthorizeURL,
		log:          testLogger(),
	}

	rawURL, err := c.BuildAuthorizationURL("state-123")
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rawURL, defaultAuthorizeURL))

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "test-client-id", query.Get("client_id"))
	assert.Equal(t, "https://siinc.io/api/xero/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-123", query.Get("state"))
	assert.Contains(t, query.Get("scope"), "offline_access")
	assert.Contains(t, query.Get("scope"), "accounting.transactions")
}

func TestBuildAuthorizationURLRequiresConfig(t *testing.T) {
	testCases := []struct {
		name   string
		client *client
	}{
		{name: "missing client id", client: &client{redirectURI: "https://siinc.io/cb"}},
		{name: "missing redirect uri", client: &client{clientID: "id"}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.BuildAuthorizationURL("state")
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}
}

func TestExchangeCode(t *testing.T) {
	var gotGrantType, gotCode, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrantType = r.PostFormValue("grant_type")
		gotCode = r.PostFormValue("code")
		gotAuth = r.Header.Get("Authorization")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    1800,
			"id_token":      "id-token",
			"scope":         "offline_access openid",
		})
	}))
	defer server.Close()

	c := testClient(server)
	before := time.Now()
	tokens, err := c.ExchangeCode(context.Background(), "auth-code-abc")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotGrantType)
	assert.Equal(t, "auth-code-abc", gotCode)
	assert.True(t, strings.HasPrefix(gotAuth, "Basic "))

	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
	assert.Equal(t, "id-token", tokens.IDToken)

	// expires_at = now + expires_in - 60s buffer
	expectedExpiry := before.Add(1800*time.Second - time.Minute)
	assert.WithinDuration(t, expectedExpiry, tokens.ExpiresAt, 5*time.Second)
}

func TestExchangeCodeProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	c := testClient(server)
	_, err := c.ExchangeCode(context.Background(), "bad-code")
	// The provider error body must not leak; only the generic error crosses
	assert.ErrorIs(t, err, ErrTokenExchange)
	assert.NotContains(t, err.Error(), "invalid_grant")
}

func TestExchangeCodeTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force connection failures

	c := testClient(server)
	c.httpClient = &http.Client{Timeout: time.Second}
	_, err := c.ExchangeCode(context.Background(), "code")
	assert.ErrorIs(t, err, ErrTokenExchange)
}

func TestRefreshTokenRotates(t *testing.T) {
	var gotRefreshToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		gotRefreshToken = r.PostFormValue("refresh_token")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "rotated-access",
			"refresh_token": "rotated-refresh",
			"expires_in":    1800,
			"scope":         "offline_access",
		})
	}))
	defer server.Close()

	c := testClient(server)
	tokens, err := c.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "old-refresh", gotRefreshToken)
	assert.Equal(t, "rotated-access", tokens.AccessToken)
	assert.Equal(t, "rotated-refresh", tokens.RefreshToken)
}

func TestRefreshTokenRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := testClient(server)
	_, err := c.RefreshToken(context.Background(), "stale-refresh")
	assert.ErrorIs(t, err, ErrTokenRefresh)
}

func TestFetchTenantID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]string{
			{"tenantId": "tenant-1", "tenantName": "Siinc Pty Ltd"},
			{"tenantId": "tenant-2", "tenantName": "Other Org"},
		})
	}))
	defer server.Close()

	c := testClient(server)
	tenantID, err := c.FetchTenantID(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenantID)
}

func TestFetchTenantIDNoConnections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := testClient(server)
	_, err := c.FetchTenantID(context.Background(), "access-token")
	assert.ErrorIs(t, err, ErrNoConnections)
}

func TestFetchTenantIDProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(server)
	_, err := c.FetchTenantID(context.Background(), "access-token")
	assert.ErrorIs(t, err, ErrTenantFetch)
	assert.NotErrorIs(t, err, ErrNoConnections)
}
