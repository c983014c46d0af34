package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/siinc/xero-connect/docs" // Import generated docs
	"github.com/siinc/xero-connect/internal/config"
	"github.com/siinc/xero-connect/internal/controllers"
	"github.com/siinc/xero-connect/internal/middleware"
	"github.com/siinc/xero-connect/internal/services"
	"github.com/siinc/xero-connect/internal/store"
	"github.com/siinc/xero-connect/internal/xero"
)

var (
	configuration     *config.Config
	tokenStore        store.TokenStore
	connectionService services.ConnectionService
	mailService       services.MailService
	signupService     services.SignupService
	xeroController    controllers.XeroController
	signupController  controllers.SignupController
	contactController controllers.ContactController
	cronController    controllers.CronController
)

// @title Siinc Xero Connect API
// @version 1.0
// @description Xero OAuth connection manager and signup backend for the Siinc marketing site
// @host localhost:8080
// @BasePath /
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration = loadConfig()

	// Initialize the Redis token store
	setupStore(configuration)

	// Initialize services and controllers
	xeroClient := xero.NewClient(configuration, log.StandardLogger())
	accountsAPI := xero.NewAccountsAPI(configuration, log.StandardLogger())

	connectionService = services.NewConnectionService(tokenStore, xeroClient, log.StandardLogger())
	mailService = services.NewMailService(configuration, log.StandardLogger())
	signupService = services.NewSignupService(configuration, accountsAPI, mailService, log.StandardLogger())

	xeroController = controllers.NewXeroController(connectionService, configuration)
	signupController = controllers.NewSignupController(signupService)
	contactController = controllers.NewContactController(mailService)
	cronController = controllers.NewCronController(tokenStore, configuration)

	// Initialize Gin router
	var router *gin.Engine = setupRouter()

	// Start the server
	log.Infof("Starting server on %s:%d", configuration.Host, configuration.Port)
	router.Run(fmt.Sprintf("%v:%d", configuration.Host, configuration.Port))
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	log.Info("Loading configuration from environment variables")
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	log.Infof("Configuration loaded: %v", conf)
	return conf
}

// setupStore connects to Redis. Tokens, tenant id and OAuth states all live
// there, so without it the service cannot run.
func setupStore(conf *config.Config) {
	var err error
	tokenStore, err = store.NewRedisStore(conf.RedisURL, log.StandardLogger())
	checkPanicErr(err)
	log.Info("Connected to Redis token store")
}

// setupRouter initializes the Gin router and sets up the routes
// It returns the configured router
func setupRouter() *gin.Engine {
	// Initialize Gin router
	router := gin.Default()

	// Define routes
	setupRoutes(router)

	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", healthCheckHandler)

	api := router.Group("/api")
	{
		// Admin-driven Xero connection management
		xeroAPI := api.Group("/xero")
		{
			xeroAPI.GET("/authorize", middleware.AdminAuth(configuration.AdminSecret), xeroController.Authorize)
			xeroAPI.GET("/callback", xeroController.Callback)
			xeroAPI.GET("/status", middleware.AdminAuth(configuration.AdminSecret), xeroController.Status)
			// Refresh and disconnect check the secret themselves so it can
			// also arrive in the request body
			xeroAPI.POST("/refresh", xeroController.Refresh)
			xeroAPI.POST("/disconnect", xeroController.Disconnect)
		}

		// Public endpoints, rate limited per IP
		api.POST("/signup",
			middleware.RateLimit(middleware.RateLimitConfig{MaxRequests: 10, Window: time.Hour}),
			signupController.Signup)

		formLimiter := middleware.RateLimit(middleware.RateLimitConfig{MaxRequests: 5, Window: time.Hour})
		api.POST("/contact", formLimiter, contactController.Contact)
		api.POST("/event-registration", formLimiter, contactController.EventRegistration)

		// Scheduler endpoints
		api.GET("/cron/keepalive", cronController.Keepalive)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "xero-connect",
	})
}
