package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/siinc/xero-connect/internal/models"
	"github.com/siinc/xero-connect/internal/store"
	"github.com/siinc/xero-connect/internal/xero"
)

var (
	// ErrNotConnected means no token bundle is stored; the administrator must
	// run the authorize flow
	ErrNotConnected = errors.New("xero not connected, connect via the admin panel")

	// ErrInvalidState means the CSRF state of a callback did not verify.
	// Fails closed: no provider call is made for a spoofed callback.
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrRefreshFailed means the refresh grant was rejected and the stored
	// connection has been cleared; a full authorize flow is required
	ErrRefreshFailed = errors.New("xero token refresh failed, reconnect via the admin panel")
)

// ConnectionService is the single entry point for interacting with the Xero
// connection. It owns the refresh-on-demand policy and the poisoned-connection
// recovery policy.
type ConnectionService interface {
	// BeginAuthorization issues a CSRF state, persists it, and returns the
	// provider authorization URL to redirect the administrator to
	BeginAuthorization(ctx context.Context) (string, error)
	// CompleteAuthorization handles the provider callback: verifies and
	// consumes the state (before any network call), exchanges the code, then
	// persists tokens and tenant id
	CompleteAuthorization(ctx context.Context, code, state string) error
	// GetValidAccessToken returns an access token that is currently valid,
	// refreshing transparently when the stored one has expired
	GetValidAccessToken(ctx context.Context) (string, error)
	// GetConnectionStatus is a pure read with no refresh side effect
	GetConnectionStatus(ctx context.Context) (models.ConnectionStatus, error)
	// ForceRefresh refreshes regardless of expiry and returns the new bundle
	// together with the stored tenant id
	ForceRefresh(ctx context.Context) (*models.Tokens, string, error)
	// Disconnect clears the stored tokens and tenant id. Idempotent.
	Disconnect(ctx context.Context) error
}

type connectionService struct {
	store store.TokenStore
	xero  xero.Client
	log   *logrus.Logger

	// refreshGroup serializes refreshes. Xero rotates refresh tokens, so two
	// racing refreshes would have the loser spend a dead token and poison the
	// connection; concurrent callers must share a single flight instead.
	refreshGroup singleflight.Group

	now func() time.Time
}

// NewConnectionService creates the connection manager
func NewConnectionService(tokenStore store.TokenStore, client xero.Client, log *logrus.Logger) ConnectionService {
	return &connectionService{
		store: tokenStore,
		xero:  client,
		log:   log,
		now:   time.Now,
	}
}

func (s *connectionService) BeginAuthorization(ctx context.Context) (string, error) {
	state := uuid.NewString()

	// Build first: a configuration error must surface before the state is
	// persisted, not leave orphaned state keys behind
	authURL, err := s.xero.BuildAuthorizationURL(state)
	if err != nil {
		return "", err
	}

	if err := s.store.StoreOAuthState(ctx, state); err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{"state": state}).Info("Initiating OAuth flow")
	return authURL, nil
}

func (s *connectionService) CompleteAuthorization(ctx context.Context, code, state string) error {
	// State check comes first so spoofed callbacks never trigger an exchange
	ok, err := s.store.VerifyOAuthState(ctx, state)
	if err != nil {
		return err
	}
	if !ok {
		s.log.WithFields(logrus.Fields{"state": state}).Error("Invalid or expired state")
		return ErrInvalidState
	}

	tokens, err := s.xero.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	if err := s.store.StoreTokens(ctx, tokens); err != nil {
		return err
	}

	tenantID, err := s.xero.FetchTenantID(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}
	if err := s.store.StoreTenantID(ctx, tenantID); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"tenant_id": tenantID}).Info("OAuth flow completed successfully")
	return nil
}

func (s *connectionService) GetValidAccessToken(ctx context.Context) (string, error) {
	tokens, err := s.store.GetStoredTokens(ctx)
	if err != nil {
		return "", err
	}
	if tokens == nil {
		s.log.Error("No Xero tokens found - not connected")
		return "", ErrNotConnected
	}

	if !tokens.Expired(s.now()) {
		return tokens.AccessToken, nil
	}

	s.log.Info("Access token expired, refreshing")
	return s.refresh(ctx)
}

// refresh runs the refresh grant behind a single flight. Callers racing past
// an expired token wait for the winner's result instead of spending the
// rotated refresh token twice.
func (s *connectionService) refresh(ctx context.Context) (string, error) {
	v, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		// Re-read inside the flight: an earlier winner may already have
		// stored a fresh bundle
		tokens, err := s.store.GetStoredTokens(ctx)
		if err != nil {
			return nil, err
		}
		if tokens == nil {
			return nil, ErrNotConnected
		}
		if !tokens.Expired(s.now()) {
			return tokens.AccessToken, nil
		}

		newTokens, err := s.doRefresh(ctx, tokens.RefreshToken)
		if err != nil {
			return nil, err
		}
		return newTokens.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// doRefresh performs one refresh grant and persists the rotated bundle. A
// rejected refresh clears tokens and tenant id together: a stale refresh
// token must not be retried indefinitely.
func (s *connectionService) doRefresh(ctx context.Context, refreshToken string) (*models.Tokens, error) {
	newTokens, err := s.xero.RefreshToken(ctx, refreshToken)
	if err != nil {
		s.log.Error("Token refresh failed, clearing stored tokens")
		if delErr := s.store.DeleteTokens(ctx); delErr != nil {
			s.log.WithFields(logrus.Fields{"error": delErr.Error()}).Error("Failed to clear poisoned connection")
		}
		return nil, ErrRefreshFailed
	}

	if err := s.store.StoreTokens(ctx, newTokens); err != nil {
		return nil, err
	}
	return newTokens, nil
}

func (s *connectionService) GetConnectionStatus(ctx context.Context) (models.ConnectionStatus, error) {
	tokens, err := s.store.GetStoredTokens(ctx)
	if err != nil {
		return models.ConnectionStatus{}, err
	}
	if tokens == nil {
		return models.ConnectionStatus{Connected: false}, nil
	}

	tenantID, err := s.store.GetTenantID(ctx)
	if err != nil {
		return models.ConnectionStatus{}, err
	}

	return models.ConnectionStatus{
		Connected: true,
		ExpiresAt: &tokens.ExpiresAt,
		TenantID:  tenantID,
	}, nil
}

func (s *connectionService) ForceRefresh(ctx context.Context) (*models.Tokens, string, error) {
	v, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		tokens, err := s.store.GetStoredTokens(ctx)
		if err != nil {
			return nil, err
		}
		if tokens == nil {
			return nil, ErrNotConnected
		}
		return s.doRefresh(ctx, tokens.RefreshToken)
	})
	if err != nil {
		return nil, "", err
	}

	newTokens, ok := v.(*models.Tokens)
	if !ok {
		// A concurrent lazy refresh won the flight and returned only the
		// access token; read the bundle it stored.
		newTokens, err = s.store.GetStoredTokens(ctx)
		if err != nil {
			return nil, "", err
		}
		if newTokens == nil {
			return nil, "", ErrNotConnected
		}
	}

	tenantID, err := s.store.GetTenantID(ctx)
	if err != nil {
		return nil, "", err
	}
	return newTokens, tenantID, nil
}

func (s *connectionService) Disconnect(ctx context.Context) error {
	if err := s.store.DeleteTokens(ctx); err != nil {
		return err
	}
	s.log.Info("Xero disconnected")
	return nil
}
