package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/siinc/xero-connect/internal/models"
	"github.com/siinc/xero-connect/internal/services"
)

// ContactController relays the marketing site's form submissions
type ContactController interface {
	// Contact relays a contact form submission
	Contact(c *gin.Context)
	// EventRegistration relays an event registration
	EventRegistration(c *gin.Context)
}

type contactController struct {
	mail services.MailService
}

// NewContactController creates a new instance of ContactController
func NewContactController(mail services.MailService) ContactController {
	return &contactController{mail: mail}
}

// Contact godoc
// @Summary Relay a contact form submission
// @Description Validates the submission and relays it to the sales inbox
// @Tags forms
// @Accept json
// @Produce json
// @Param contact body models.ContactRequest true "Contact form data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/contact [post]
func (ctl *contactController) Contact(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all required fields."})
		return
	}

	req.FullName = sanitize(req.FullName, 1000)
	req.Email = strings.ToLower(sanitize(req.Email, 1000))
	req.Company = sanitize(req.Company, 1000)
	req.Employees = sanitize(req.Employees, 1000)
	req.Message = sanitize(req.Message, 1000)

	if err := ctl.mail.SendContactEmail(c.Request.Context(), req); err != nil {
		ctl.respondSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Thank you for your message. We'll be in touch soon!",
	})
}

// EventRegistration godoc
// @Summary Relay an event registration
// @Description Validates the registration and relays it to the sales inbox
// @Tags forms
// @Accept json
// @Produce json
// @Param registration body models.EventRegistrationRequest true "Registration data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/event-registration [post]
func (ctl *contactController) EventRegistration(c *gin.Context) {
	var req models.EventRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all required fields."})
		return
	}

	req.FullName = sanitize(req.FullName, 1000)
	req.Email = strings.ToLower(sanitize(req.Email, 1000))
	req.Company = sanitize(req.Company, 1000)
	req.Event = sanitize(req.Event, 1000)

	if err := ctl.mail.SendEventRegistrationEmail(c.Request.Context(), req); err != nil {
		ctl.respondSendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "You're registered! See you there.",
	})
}

func (ctl *contactController) respondSendError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrMailNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Email service is not available. Please try again later."})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send your message. Please try again."})
}
