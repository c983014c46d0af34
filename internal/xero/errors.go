package xero

import "errors"

// Errors returned by the protocol client. Provider response bodies and status
// codes are logged server-side only; these generic values are all that crosses
// the boundary to callers.
var (
	// ErrNotConfigured means the OAuth credentials are missing. Fatal; nothing
	// is ever sent to Xero with partial configuration.
	ErrNotConfigured = errors.New("xero oauth credentials not configured")

	// ErrTokenExchange means the authorization-code exchange was rejected
	ErrTokenExchange = errors.New("failed to exchange authorization code")

	// ErrTokenRefresh means the refresh-token grant was rejected
	ErrTokenRefresh = errors.New("failed to refresh access token")

	// ErrNoConnections means the app is authorized but the administrator has
	// not granted access to any organisation. Distinct from an exchange
	// failure and not retriable.
	ErrNoConnections = errors.New("no xero organisations connected")

	// ErrTenantFetch means the connections endpoint could not be read
	ErrTenantFetch = errors.New("failed to fetch xero tenant id")

	// ErrAccountsAuth means the client-credentials grant for the custom
	// connection was rejected
	ErrAccountsAuth = errors.New("xero authentication failed")

	// ErrContactExists means Xero already holds a contact for the email
	ErrContactExists = errors.New("contact already exists in xero")

	// ErrContactInvalid means Xero rejected the contact payload
	ErrContactInvalid = errors.New("invalid contact data")

	// ErrContactCreate is the generic contact-creation failure
	ErrContactCreate = errors.New("failed to create xero contact")
)

// errNonSuccess marks a non-2xx provider response internally; it never leaves
// the package
var errNonSuccess = errors.New("provider returned non-success status")
