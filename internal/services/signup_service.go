package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siinc/xero-connect/internal/config"
	"github.com/siinc/xero-connect/internal/models"
	"github.com/siinc/xero-connect/internal/xero"
)

var (
	// ErrUserExists means a customer record already exists for the email
	ErrUserExists = errors.New("an account with this email already exists")

	// ErrSignupNotConfigured means the provisioning credentials are missing
	ErrSignupNotConfigured = errors.New("signup provisioning not configured")

	// ErrProvisioningFailed is the generic account-creation failure
	ErrProvisioningFailed = errors.New("failed to create user account")
)

// SignupService provisions a new customer: a Xero contact via the custom
// connection, a client record in the Siinc backend, then a welcome email.
type SignupService interface {
	Signup(ctx context.Context, req models.SignupRequest) error
}

type signupService struct {
	accounts xero.AccountsAPI
	mail     MailService

	apiURL     string
	apiKey     string
	configured bool

	httpClient *http.Client
	log        *logrus.Logger
}

// NewSignupService creates the provisioning service
func NewSignupService(cfg *config.Config, accounts xero.AccountsAPI, mail MailService, log *logrus.Logger) SignupService {
	return &signupService{
		accounts:   accounts,
		mail:       mail,
		apiURL:     cfg.SiincAPIURL,
		apiKey:     cfg.SiincAPIKey,
		configured: cfg.SignupConfigured(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

func (s *signupService) Signup(ctx context.Context, req models.SignupRequest) error {
	if !s.configured {
		return ErrSignupNotConfigured
	}

	accessToken, err := s.accounts.ClientCredentialsToken(ctx)
	if err != nil {
		return err
	}

	// Reuse an existing Xero contact when one is already on file
	xeroID, err := s.accounts.FindContactByEmail(ctx, accessToken, req.Email)
	if err != nil {
		return err
	}
	if xeroID == "" {
		xeroID, err = s.accounts.CreateContact(ctx, accessToken, xero.ContactInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Company:   req.Company,
		})
		if errors.Is(err, xero.ErrContactExists) {
			return ErrUserExists
		}
		if err != nil {
			return err
		}
	}

	if err := s.createSiincClient(ctx, xeroID, req); err != nil {
		return err
	}

	// Welcome email is best effort; the service logs its own failures
	s.mail.SendWelcomeEmail(ctx, req.FirstName, req.Email)

	s.log.WithFields(logrus.Fields{
		"email":   req.Email,
		"xero_id": xeroID,
	}).Info("Signup completed")
	return nil
}

// createSiincClient creates the customer record in the Siinc backend
func (s *signupService) createSiincClient(ctx context.Context, xeroID string, req models.SignupRequest) error {
	name := req.Company
	if name == "" {
		name = req.FirstName + " " + req.LastName
	}
	plan := req.Plan
	if plan == "" {
		plan = "standard"
	}

	payload := map[string]interface{}{
		"xero_id":     xeroID,
		"name":        name,
		"first_name":  req.FirstName,
		"last_name":   req.LastName,
		"email":       req.Email,
		"charge_rate": 0,
		"plan":        plan,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.log.WithFields(logrus.Fields{"error": err.Error()}).Error("Failed to create Siinc user")
		return ErrProvisioningFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	s.log.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"body":   string(body),
	}).Error("Failed to create Siinc user")

	var errBody struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &errBody)
	if strings.Contains(strings.ToLower(errBody.Message), "already exists") {
		return ErrUserExists
	}
	return ErrProvisioningFailed
}
