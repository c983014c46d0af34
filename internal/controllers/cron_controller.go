package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/siinc/xero-connect/internal/config"
	"github.com/siinc/xero-connect/internal/middleware"
	"github.com/siinc/xero-connect/internal/store"
)

// CronController handles scheduler-triggered maintenance endpoints
type CronController interface {
	// Keepalive pings the token store so an idle free-tier Redis stays warm
	Keepalive(c *gin.Context)
}

type cronController struct {
	store      store.TokenStore
	cronSecret string
}

// NewCronController creates a new instance of CronController
func NewCronController(tokenStore store.TokenStore, cfg *config.Config) CronController {
	return &cronController{
		store:      tokenStore,
		cronSecret: cfg.CronSecret,
	}
}

// Keepalive godoc
// @Summary Keep the token store warm
// @Description Writes a timestamp to Redis. Called by the deployment scheduler.
// @Tags cron
// @Produce json
// @Param Authorization header string true "Bearer cron secret"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/cron/keepalive [get]
func (ctl *cronController) Keepalive(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !middleware.SecretMatches(token, ctl.cronSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	timestamp, err := ctl.store.Keepalive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to ping Redis"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "timestamp": timestamp})
}
