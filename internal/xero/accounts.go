package xero

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/siinc/xero-connect/internal/config"
)

const (
	defaultContactsURL = "https://api.xero.com/api.xro/2.0/Contacts"

	// accountsScopes is all a custom connection needs to manage contacts
	accountsScopes = "accounting.contacts accounting.contacts.read"
)

// ContactInput is the customer data pushed into Xero during signup
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
}

// AccountsAPI is the signup-side Xero surface: a custom-connection
// (client credentials) token and contact lookup/creation against the
// accounting API.
type AccountsAPI interface {
	// ClientCredentialsToken obtains an access token for the custom connection
	ClientCredentialsToken(ctx context.Context) (string, error)
	// FindContactByEmail returns the contact id for the email, or "" if none
	FindContactByEmail(ctx context.Context, accessToken, email string) (string, error)
	// CreateContact creates a customer contact and returns its id
	CreateContact(ctx context.Context, accessToken string, input ContactInput) (string, error)
}

type accountsClient struct {
	clientID     string
	clientSecret string
	tenantID     string

	tokenURL    string
	contactsURL string

	httpClient *http.Client
	log        *logrus.Logger
}

// NewAccountsAPI creates the signup-side client from the loaded configuration
func NewAccountsAPI(cfg *config.Config, log *logrus.Logger) AccountsAPI {
	return &accountsClient{
		clientID:     cfg.XeroCustomClientID,
		clientSecret: cfg.XeroCustomClientSecret,
		tenantID:     cfg.XeroTenantID,
		tokenURL:     defaultTokenURL,
		contactsURL:  defaultContactsURL,
		httpClient:   &http.Client{Timeout: requestTimeout},
		log:          log,
	}
}

func (a *accountsClient) ClientCredentialsToken(ctx context.Context) (string, error) {
	if a.clientID == "" || a.clientSecret == "" {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", accountsScopes)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", ErrAccountsAuth
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to get Xero access token")
		return "", ErrAccountsAuth
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Failed to get Xero access token")
		return "", ErrAccountsAuth
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", ErrAccountsAuth
	}
	return tr.AccessToken, nil
}

// contactsResponse is the accounting API's contacts envelope
type contactsResponse struct {
	Contacts []struct {
		ContactID string `json:"ContactID"`
	} `json:"Contacts"`
}

func (a *accountsClient) FindContactByEmail(ctx context.Context, accessToken, email string) (string, error) {
	query := url.Values{}
	query.Set("where", `EmailAddress="`+email+`"`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.contactsURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	a.setAccountingHeaders(req, accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("Contact search failed, proceeding with creation")
		return "", nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A failed search is not fatal to signup; creation handles duplicates
		a.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Warn("Contact search failed, proceeding with creation")
		return "", nil
	}

	var cr contactsResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", nil
	}
	if len(cr.Contacts) == 0 {
		return "", nil
	}

	contactID := cr.Contacts[0].ContactID
	a.log.WithFields(logrus.Fields{"contact_id": contactID}).Info("Found existing Xero contact")
	return contactID, nil
}

func (a *accountsClient) CreateContact(ctx context.Context, accessToken string, input ContactInput) (string, error) {
	name := input.Company
	if name == "" {
		name = input.FirstName + " " + input.LastName
	}

	payload := map[string]interface{}{
		"Contacts": []map[string]interface{}{
			{
				"Name":          name,
				"FirstName":     input.FirstName,
				"LastName":      input.LastName,
				"EmailAddress":  input.Email,
				"ContactStatus": "ACTIVE",
				"IsCustomer":    true,
				"ContactPersons": []map[string]interface{}{
					{
						"FirstName":       input.FirstName,
						"LastName":        input.LastName,
						"EmailAddress":    input.Email,
						"IncludeInEmails": true,
					},
				},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.contactsURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	a.setAccountingHeaders(req, accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to create Xero contact")
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Failed to create Xero contact")
		return "", a.mapContactError(resp.StatusCode, body)
	}

	var cr contactsResponse
	if err := json.Unmarshal(body, &cr); err != nil || len(cr.Contacts) == 0 {
		return "", ErrContactInvalid
	}
	return cr.Contacts[0].ContactID, nil
}

func (a *accountsClient) setAccountingHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("xero-tenant-id", a.tenantID)
	req.Header.Set("Accept", "application/json")
}

// mapContactError translates accounting API rejections into package errors
func (a *accountsClient) mapContactError(status int, body []byte) error {
	switch status {
	case http.StatusBadRequest:
		var errBody struct {
			Message string `json:"Message"`
		}
		_ = json.Unmarshal(body, &errBody)
		msg := strings.ToLower(errBody.Message)
		if strings.Contains(msg, "already exists") ||
			strings.Contains(msg, "duplicate") ||
			strings.Contains(msg, "email address is already in use") {
			return ErrContactExists
		}
		return ErrContactInvalid
	case http.StatusUnauthorized:
		return ErrAccountsAuth
	case http.StatusForbidden:
		return ErrAccountsAuth
	default:
		return ErrContactCreate
	}
}
