package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port int    `json:"port"`
	Host string `json:"host"`

	// Token store configuration
	RedisURL string `json:"redis_url"`

	// Xero OAuth app (authorization code flow)
	XeroClientID     string `json:"xero_client_id"`
	XeroClientSecret string `json:"xero_client_secret"`
	XeroRedirectURI  string `json:"xero_redirect_uri"`

	// Xero custom connection (client credentials, used by signup provisioning)
	XeroCustomClientID     string `json:"xero_custom_client_id"`
	XeroCustomClientSecret string `json:"xero_custom_client_secret"`
	XeroTenantID           string `json:"xero_tenant_id"`

	// Siinc backend (customer provisioning)
	SiincAPIURL string `json:"siinc_api_url"`
	SiincAPIKey string `json:"siinc_api_key"`

	// Email relay
	PostmarkServerToken string `json:"postmark_server_token"`
	ContactEmailFrom    string `json:"contact_email_from"`
	ContactEmailTo      string `json:"contact_email_to"`

	// Security Configuration
	AdminSecret string `json:"admin_secret"`
	CronSecret  string `json:"cron_secret"`

	// BaseURL of the admin UI the OAuth callback redirects back to
	BaseURL string `json:"base_url"`

	// Logging configuration
	LogLevel string `json:"log_level"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, RedisURL: %s, XeroClientID: %s, XeroClientSecret: [REDACTED], XeroRedirectURI: %s, XeroCustomClientID: %s, XeroCustomClientSecret: [REDACTED], XeroTenantID: %s, SiincAPIURL: %s, SiincAPIKey: [REDACTED], PostmarkServerToken: [REDACTED], BaseURL: %s, AdminSecret: [REDACTED], CronSecret: [REDACTED], LogLevel: %s}",
		c.Port, c.Host, maskURL(c.RedisURL), c.XeroClientID, c.XeroRedirectURI, c.XeroCustomClientID, c.XeroTenantID, c.SiincAPIURL, c.BaseURL, c.LogLevel)
}

// maskURL masks any password embedded in a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}

	if parsed.User != nil {
		// Replace password with [REDACTED]
		parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
	}

	return parsed.String()
}

// LoadConfig reads the configuration from environment variables and returns a Config struct.
// The OAuth core refuses to start without its credentials: a missing client id or
// redirect URI must fail here, before any network attempt is ever made.
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port := GetEnvAsType("APP_PORT", 8080)

	config := &Config{
		Port:                   port,
		Host:                   GetEnvWithDefault("APP_HOST", "localhost"),
		RedisURL:               os.Getenv("REDIS_URL"),
		XeroClientID:           os.Getenv("XERO_CLIENT_ID"),
		XeroClientSecret:       os.Getenv("XERO_CLIENT_SECRET"),
		XeroRedirectURI:        os.Getenv("XERO_REDIRECT_URI"),
		XeroCustomClientID:     os.Getenv("XERO_CUSTOM_CLIENT_ID"),
		XeroCustomClientSecret: os.Getenv("XERO_CUSTOM_CLIENT_SECRET"),
		XeroTenantID:           os.Getenv("XERO_TENANT_ID"),
		SiincAPIURL:            GetEnvWithDefault("SIINC_API_URL", "https://api.siinc.io/api/client/"),
		SiincAPIKey:            os.Getenv("SIINC_API_KEY"),
		PostmarkServerToken:    os.Getenv("POSTMARK_SERVER_TOKEN"),
		ContactEmailFrom:       GetEnvWithDefault("CONTACT_EMAIL_FROM", "website@siinc.io"),
		ContactEmailTo:         GetEnvWithDefault("CONTACT_EMAIL_TO", "sales@siinc.io"),
		AdminSecret:            os.Getenv("ADMIN_SECRET"),
		CronSecret:             os.Getenv("CRON_SECRET"),
		BaseURL:                GetEnvWithDefault("BASE_URL", "https://siinc.io"),
		LogLevel:               GetEnvWithDefault("LOG_LEVEL", "info"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// validate checks the variables the OAuth core cannot run without.
// The signup and email features are gated by their own configuration and
// respond 503 when unset, so their variables are not required here.
func (c *Config) validate() error {
	required := map[string]string{
		"REDIS_URL":          c.RedisURL,
		"XERO_CLIENT_ID":     c.XeroClientID,
		"XERO_CLIENT_SECRET": c.XeroClientSecret,
		"XERO_REDIRECT_URI":  c.XeroRedirectURI,
		"ADMIN_SECRET":       c.AdminSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s environment variable is required", name)
		}
	}

	if _, err := url.ParseRequestURI(c.RedisURL); err != nil {
		return fmt.Errorf("invalid REDIS_URL format: %w", err)
	}
	if _, err := url.ParseRequestURI(c.XeroRedirectURI); err != nil {
		return fmt.Errorf("invalid XERO_REDIRECT_URI format: %w", err)
	}

	return nil
}

// SignupConfigured reports whether the signup provisioning flow has everything it needs
func (c *Config) SignupConfigured() bool {
	return c.XeroCustomClientID != "" && c.XeroCustomClientSecret != "" &&
		c.XeroTenantID != "" && c.SiincAPIKey != ""
}

// MailConfigured reports whether the Postmark relay is usable
func (c *Config) MailConfigured() bool {
	return c.PostmarkServerToken != ""
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Warnf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
