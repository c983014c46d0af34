package xero

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siinc/xero-connect/internal/config"
	"github.com/siinc/xero-connect/internal/models"
)

// Xero OAuth endpoints
const (
	defaultTokenURL       = "https://identity.xero.com/connect/token"
	defaultAuthorizeURL   = "https://login.xero.com/identity/connect/authorize"
	defaultConnectionsURL = "https://api.xero.com/connections"

	// requestTimeout bounds every call to Xero; a timeout surfaces as a
	// transport error, never as a provider rejection
	requestTimeout = 30 * time.Second

	// expiryBuffer is subtracted from expires_in so a token is never handed
	// out when it would expire mid-request
	expiryBuffer = time.Minute
)

// scopes requested during the authorization code flow
var scopes = []string{
	"offline_access",
	"openid",
	"profile",
	"email",
	"accounting.transactions",
	"accounting.journals.read",
	"accounting.reports.read",
	"accounting.settings.read",
	"accounting.settings",
	"accounting.attachments",
	"accounting.attachments.read",
	"accounting.contacts",
	"accounting.contacts.read",
	"accounting.budgets.read",
	"payroll.payruns",
	"payroll.payslip",
	"payroll.settings",
	"payroll.employees",
	"payroll.timesheets",
	"files",
	"files.read",
	"assets",
	"assets.read",
	"projects",
	"projects.read",
}

// Client drives the three network conversations with Xero: the authorization
// code exchange, the refresh grant, and the connections lookup.
type Client interface {
	// BuildAuthorizationURL constructs the redirect URL for the authorize flow
	BuildAuthorizationURL(state string) (string, error)
	// ExchangeCode swaps an authorization code for a token bundle
	ExchangeCode(ctx context.Context, code string) (*models.Tokens, error)
	// RefreshToken mints a new token bundle. Xero rotates the refresh token:
	// the returned bundle carries the only refresh token valid for the next
	// cycle, and the one passed in is dead.
	RefreshToken(ctx context.Context, refreshToken string) (*models.Tokens, error)
	// FetchTenantID returns the id of the first connected organisation
	FetchTenantID(ctx context.Context, accessToken string) (string, error)
}

type client struct {
	clientID     string
	clientSecret string
	redirectURI  string

	tokenURL       string
	authorizeURL   string
	connectionsURL string

	httpClient *http.Client
	log        *logrus.Logger
}

// NewClient creates a protocol client from the loaded configuration
func NewClient(cfg *config.Config, log *logrus.Logger) Client {
	return &client{
		clientID:       cfg.XeroClientID,
		clientSecret:   cfg.XeroClientSecret,
		redirectURI:    cfg.XeroRedirectURI,
		tokenURL:       defaultTokenURL,
		authorizeURL:   defaultAuthorizeURL,
		connectionsURL: defaultConnectionsURL,
		httpClient:     &http.Client{Timeout: requestTimeout},
		log:            log,
	}
}

func (c *client) BuildAuthorizationURL(state string) (string, error) {
	if c.clientID == "" || c.redirectURI == "" {
		return "", ErrNotConfigured
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("scope", strings.Join(scopes, " "))
	params.Set("state", state)

	return c.authorizeURL + "?" + params.Encode(), nil
}

// tokenResponse is the token endpoint's success body
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

func (c *client) ExchangeCode(ctx context.Context, code string) (*models.Tokens, error) {
	if c.clientID == "" || c.clientSecret == "" || c.redirectURI == "" {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)

	c.log.Info("Exchanging authorization code for tokens")

	tokens, err := c.postTokenForm(ctx, form, "Token exchange failed")
	if err != nil {
		return nil, ErrTokenExchange
	}

	c.log.Info("Token exchange successful")
	return tokens, nil
}

func (c *client) RefreshToken(ctx context.Context, refreshToken string) (*models.Tokens, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	c.log.Info("Refreshing access token")

	tokens, err := c.postTokenForm(ctx, form, "Token refresh failed")
	if err != nil {
		return nil, ErrTokenRefresh
	}

	c.log.Info("Token refresh successful")
	return tokens, nil
}

// postTokenForm performs a Basic-authenticated form POST against the token
// endpoint and maps the response into a token bundle. Provider error detail is
// logged here and never returned.
func (c *client) postTokenForm(ctx context.Context, form url.Values, failureMsg string) (*models.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+c.basicCredentials())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Error(failureMsg)
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error(failureMsg)
		return nil, errNonSuccess
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Error(failureMsg)
		return nil, err
	}

	return &models.Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryBuffer),
		IDToken:      tr.IDToken,
		Scope:        tr.Scope,
	}, nil
}

// connection is one entry of the connections endpoint response
type connection struct {
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
}

func (c *client) FetchTenantID(ctx context.Context, accessToken string) (string, error) {
	c.log.Info("Fetching tenant ID from Xero")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.connectionsURL, nil)
	if err != nil {
		return "", ErrTenantFetch
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to fetch tenant ID")
		return "", ErrTenantFetch
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Failed to fetch tenant ID")
		return "", ErrTenantFetch
	}

	var connections []connection
	if err := json.Unmarshal(body, &connections); err != nil {
		c.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to fetch tenant ID")
		return "", ErrTenantFetch
	}

	if len(connections) == 0 {
		c.log.Error("App is authorized but no organisations are connected")
		return "", ErrNoConnections
	}

	tenantID := connections[0].TenantID
	c.log.WithFields(logrus.Fields{"tenant_id": tenantID}).Info("Tenant ID fetched")
	return tenantID, nil
}

func (c *client) basicCredentials() string {
	return base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
}
