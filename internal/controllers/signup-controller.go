package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/siinc/xero-connect/internal/models"
	"github.com/siinc/xero-connect/internal/services"
	"github.com/siinc/xero-connect/internal/xero"
)

// SignupController handles the public signup endpoint
type SignupController interface {
	// Signup provisions a new customer account
	Signup(c *gin.Context)
}

type signupController struct {
	service services.SignupService
}

// NewSignupController creates a new instance of SignupController
func NewSignupController(service services.SignupService) SignupController {
	return &signupController{service: service}
}

// Signup godoc
// @Summary Create a customer account
// @Description Creates a Xero contact and a Siinc customer record, then sends a welcome email
// @Tags signup
// @Accept json
// @Produce json
// @Param signup body models.SignupRequest true "Signup data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/signup [post]
func (ctl *signupController) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all required fields."})
		return
	}

	req.FirstName = sanitize(req.FirstName, 500)
	req.LastName = sanitize(req.LastName, 500)
	req.Email = strings.ToLower(sanitize(req.Email, 500))
	req.Company = sanitize(req.Company, 500)

	err := ctl.service.Signup(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Account created successfully! Check your email for next steps.",
		})
	case errors.Is(err, services.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{
			"error": "An account with this email already exists. Please try logging in.",
		})
	case errors.Is(err, services.ErrSignupNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service configuration error. Please contact support.",
		})
	case errors.Is(err, xero.ErrAccountsAuth):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Authentication service is temporarily unavailable. Please try again later.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create account. Please try again.",
		})
	}
}

// sanitize strips angle brackets, trims whitespace and caps the length
func sanitize(s string, max int) string {
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max]
	}
	return s
}
