package xero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccountsClient(server *httptest.Server) *accountsClient {
	return &accountsClient{
		clientID:     "custom-client-id",
		clientSecret: "custom-client-secret",
		tenantID:     "tenant-abc",
		tokenURL:     server.URL + "/connect/token",
		contactsURL:  server.URL + "/api.xro/2.0/Contacts",
		httpClient:   server.Client(),
		log:          testLogger(),
	}
}

func TestClientCredentialsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostFormValue("grant_type"))
		assert.Contains(t, r.PostFormValue("scope"), "accounting.contacts")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "cc-access",
			"expires_in":   1800,
		})
	}))
	defer server.Close()

	a := testAccountsClient(server)
	token, err := a.ClientCredentialsToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cc-access", token)
}

func TestClientCredentialsTokenRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a := testAccountsClient(server)
	_, err := a.ClientCredentialsToken(context.Background())
	assert.ErrorIs(t, err, ErrAccountsAuth)
}

func TestClientCredentialsTokenNotConfigured(t *testing.T) {
	a := &accountsClient{log: testLogger()}
	_, err := a.ClientCredentialsToken(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFindContactByEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-abc", r.Header.Get("xero-tenant-id"))
		assert.Contains(t, r.URL.Query().Get("where"), `EmailAddress="user@example.com"`)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"Contacts": []map[string]string{{"ContactID": "contact-1"}},
		})
	}))
	defer server.Close()

	a := testAccountsClient(server)
	id, err := a.FindContactByEmail(context.Background(), "token", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "contact-1", id)
}

func TestFindContactByEmailNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"Contacts": []map[string]string{}})
	}))
	defer server.Close()

	a := testAccountsClient(server)
	id, err := a.FindContactByEmail(context.Background(), "token", "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFindContactByEmailSearchFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := testAccountsClient(server)
	id, err := a.FindContactByEmail(context.Background(), "token", "user@example.com")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestCreateContact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Contacts []map[string]interface{} `json:"Contacts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Contacts, 1)
		assert.Equal(t, "Acme Pty Ltd", payload.Contacts[0]["Name"])
		assert.Equal(t, true, payload.Contacts[0]["IsCustomer"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"Contacts": []map[string]string{{"ContactID": "new-contact"}},
		})
	}))
	defer server.Close()

	a := testAccountsClient(server)
	id, err := a.CreateContact(context.Background(), "token", ContactInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@acme.com",
		Company:   "Acme Pty Ltd",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-contact", id)
}

func TestCreateContactNameFallsBackToPerson(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Contacts []map[string]interface{} `json:"Contacts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Jane Doe", payload.Contacts[0]["Name"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"Contacts": []map[string]string{{"ContactID": "new-contact"}},
		})
	}))
	defer server.Close()

	a := testAccountsClient(server)
	_, err := a.CreateContact(context.Background(), "token", ContactInput{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
	})
	require.NoError(t, err)
}

func TestCreateContactErrorMapping(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{
			name:     "duplicate contact",
			status:   http.StatusBadRequest,
			body:     `{"Message":"The contact name Jane Doe already exists"}`,
			expected: ErrContactExists,
		},
		{
			name:     "email in use",
			status:   http.StatusBadRequest,
			body:     `{"Message":"Email address is already in use"}`,
			expected: ErrContactExists,
		},
		{
			name:     "bad payload",
			status:   http.StatusBadRequest,
			body:     `{"Message":"Validation error"}`,
			expected: ErrContactInvalid,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{}`,
			expected: ErrAccountsAuth,
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{}`,
			expected: ErrAccountsAuth,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{}`,
			expected: ErrContactCreate,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			a := testAccountsClient(server)
			_, err := a.CreateContact(context.Background(), "token", ContactInput{
				FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
			})
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}
