package models

// Redirect reasons for the OAuth callback. The callback never renders a body;
// the outcome travels back to the admin UI as a query parameter.
const (
	// Passed as ?error=
	CallbackErrMissingParameters   = "missing_parameters"
	CallbackErrInvalidState        = "invalid_state"
	CallbackErrTokenExchangeFailed = "token_exchange_failed"

	// Passed as ?success=
	CallbackSuccessConnected = "connected"
)
