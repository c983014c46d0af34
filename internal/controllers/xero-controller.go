package controllers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/siinc/xero-connect/internal/config"
	"github.com/siinc/xero-connect/internal/middleware"
	"github.com/siinc/xero-connect/internal/models"
	"github.com/siinc/xero-connect/internal/services"
	"github.com/siinc/xero-connect/internal/store"
)

// XeroController handles the admin endpoints driving the Xero connection
type XeroController interface {
	// Authorize starts the OAuth flow and redirects to Xero
	Authorize(c *gin.Context)
	// Callback handles the redirect back from Xero
	Callback(c *gin.Context)
	// Status reports the current connection status
	Status(c *gin.Context)
	// Refresh forces a token refresh
	Refresh(c *gin.Context)
	// Disconnect clears the stored connection
	Disconnect(c *gin.Context)
}

type xeroController struct {
	connection  services.ConnectionService
	adminSecret string
	baseURL     string
}

// NewXeroController creates a new instance of XeroController
func NewXeroController(connection services.ConnectionService, cfg *config.Config) XeroController {
	return &xeroController{
		connection:  connection,
		adminSecret: cfg.AdminSecret,
		baseURL:     cfg.BaseURL,
	}
}

// Authorize godoc
// @Summary Start the Xero OAuth flow
// @Description Generates a CSRF state and redirects to the Xero authorization page
// @Tags xero
// @Param secret query string true "Admin secret"
// @Success 302
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/xero/authorize [get]
func (ctl *xeroController) Authorize(c *gin.Context) {
	authURL, err := ctl.connection.BeginAuthorization(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "Failed to initiate OAuth flow"})
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback godoc
// @Summary Xero OAuth callback
// @Description Completes the OAuth flow and redirects back to the admin UI
// @Tags xero
// @Param code query string false "Authorization code"
// @Param state query string false "CSRF state"
// @Param error query string false "Provider error"
// @Success 302
// @Router /api/xero/callback [get]
func (ctl *xeroController) Callback(c *gin.Context) {
	// Provider-reported errors (e.g. the administrator denied access)
	if providerErr := c.Query("error"); providerErr != "" {
		ctl.redirectWithError(c, providerErr)
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		ctl.redirectWithError(c, models.CallbackErrMissingParameters)
		return
	}

	err := ctl.connection.CompleteAuthorization(c.Request.Context(), code, state)
	switch {
	case err == nil:
		ctl.redirectToAdmin(c, "success", models.CallbackSuccessConnected)
	case errors.Is(err, services.ErrInvalidState):
		ctl.redirectWithError(c, models.CallbackErrInvalidState)
	default:
		ctl.redirectWithError(c, models.CallbackErrTokenExchangeFailed)
	}
}

// Status godoc
// @Summary Xero connection status
// @Description Reports whether Xero is connected, with expiry and tenant id
// @Tags xero
// @Produce json
// @Param x-admin-secret header string false "Admin secret"
// @Param secret query string false "Admin secret"
// @Success 200 {object} models.ConnectionStatus
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/xero/status [get]
func (ctl *xeroController) Status(c *gin.Context) {
	status, err := ctl.connection.GetConnectionStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get connection status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Refresh godoc
// @Summary Force a Xero token refresh
// @Description Refreshes the access token regardless of expiry
// @Tags xero
// @Accept json
// @Produce json
// @Param x-admin-secret header string false "Admin secret"
// @Param body body models.AdminRequest false "Admin secret in body"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/xero/refresh [post]
func (ctl *xeroController) Refresh(c *gin.Context) {
	var body models.AdminRequest
	_ = c.ShouldBindJSON(&body) // missing body is fine when the header is set

	if !ctl.authorized(c, body.Secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	tokens, tenantID, err := ctl.connection.ForceRefresh(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrNotConnected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No Xero connection found. Please connect first."})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh token. You may need to reconnect."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"connected": true,
		"expiresAt": tokens.ExpiresAt,
		"tenantId":  tenantID,
		"scope":     tokens.Scope,
	})
}

// Disconnect godoc
// @Summary Disconnect Xero
// @Description Deletes stored tokens and tenant id. Idempotent.
// @Tags xero
// @Accept json
// @Produce json
// @Param body body models.AdminRequest true "Admin secret"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/xero/disconnect [post]
func (ctl *xeroController) Disconnect(c *gin.Context) {
	var body models.AdminRequest
	_ = c.ShouldBindJSON(&body)

	if !ctl.authorized(c, body.Secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := ctl.connection.Disconnect(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Xero disconnected"})
}

// authorized checks the admin secret from the x-admin-secret header or the
// request body
func (ctl *xeroController) authorized(c *gin.Context, bodySecret string) bool {
	provided := c.GetHeader("x-admin-secret")
	if provided == "" {
		provided = bodySecret
	}
	return middleware.SecretMatches(provided, ctl.adminSecret)
}

func (ctl *xeroController) redirectWithError(c *gin.Context, reason string) {
	ctl.redirectToAdmin(c, "error", reason)
}

func (ctl *xeroController) redirectToAdmin(c *gin.Context, key, value string) {
	c.Redirect(http.StatusFound, ctl.baseURL+"/admin/xero?"+key+"="+url.QueryEscape(value))
}
