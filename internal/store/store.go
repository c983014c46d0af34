package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/siinc/xero-connect/internal/models"
)

// ErrStoreUnavailable is returned when the backing Redis cannot be reached.
// Callers must not treat this as "not connected" - the tokens may well exist.
var ErrStoreUnavailable = errors.New("token store unavailable")

// Redis keys for the Xero connection state
const (
	tokensKey   = "xero:tokens"
	tenantKey   = "xero:tenant_id"
	statePrefix = "xero:state:"

	// stateTTL bounds how long an authorization redirect may remain pending
	stateTTL = 10 * time.Minute

	keepaliveKey = "keepalive:ping"
)

// TokenStore persists the singleton Xero connection: the token bundle, the
// connected tenant id, and short-lived one-shot OAuth states.
type TokenStore interface {
	// StoreTokens overwrites the stored token bundle. Full replace, no merge.
	StoreTokens(ctx context.Context, tokens *models.Tokens) error
	// GetStoredTokens returns the stored token bundle, or nil if none exists
	GetStoredTokens(ctx context.Context) (*models.Tokens, error)
	// DeleteTokens removes the token bundle AND the tenant id in one command.
	// Disconnect and poisoned-refresh recovery both depend on the pair going
	// together; the system must never hold one without the other.
	DeleteTokens(ctx context.Context) error
	// StoreTenantID records the id of the connected Xero organisation
	StoreTenantID(ctx context.Context, tenantID string) error
	// GetTenantID returns the stored tenant id, or "" if none exists
	GetTenantID(ctx context.Context) (string, error)
	// StoreOAuthState records a one-shot CSRF state with a 10 minute expiry
	StoreOAuthState(ctx context.Context, state string) error
	// VerifyOAuthState atomically checks and consumes a CSRF state. It returns
	// true only if the state existed and is now removed; a missing, expired or
	// already-used state returns false with no side effect.
	VerifyOAuthState(ctx context.Context, state string) (bool, error)
	// Keepalive writes a timestamp so an idle free-tier Redis is not reclaimed
	Keepalive(ctx context.Context) (string, error)
}

type redisStore struct {
	client *redis.Client
	log    *logrus.Logger
}

// NewRedisStore creates a TokenStore backed by the Redis instance at redisURL.
// The connection itself is established lazily on first use and re-established
// by the client's pool if it drops.
func NewRedisStore(redisURL string, log *logrus.Logger) (TokenStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &redisStore{
		client: redis.NewClient(opts),
		log:    log,
	}, nil
}

func (s *redisStore) StoreTokens(ctx context.Context, tokens *models.Tokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to serialize tokens: %w", err)
	}
	if err := s.client.Set(ctx, tokensKey, data, 0).Err(); err != nil {
		return storeErr(err)
	}
	s.log.Info("Tokens stored in Redis")
	return nil
}

func (s *redisStore) GetStoredTokens(ctx context.Context) (*models.Tokens, error) {
	data, err := s.client.Get(ctx, tokensKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}

	var tokens models.Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to deserialize stored tokens: %w", err)
	}
	return &tokens, nil
}

func (s *redisStore) DeleteTokens(ctx context.Context) error {
	// Single DEL covering both keys; deleting absent keys is not an error
	if err := s.client.Del(ctx, tokensKey, tenantKey).Err(); err != nil {
		return storeErr(err)
	}
	s.log.Info("Tokens and tenant id deleted from Redis")
	return nil
}

func (s *redisStore) StoreTenantID(ctx context.Context, tenantID string) error {
	if err := s.client.Set(ctx, tenantKey, tenantID, 0).Err(); err != nil {
		return storeErr(err)
	}
	s.log.WithFields(logrus.Fields{"tenant_id": tenantID}).Info("Tenant ID stored")
	return nil
}

func (s *redisStore) GetTenantID(ctx context.Context) (string, error) {
	tenantID, err := s.client.Get(ctx, tenantKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", storeErr(err)
	}
	return tenantID, nil
}

func (s *redisStore) StoreOAuthState(ctx context.Context, state string) error {
	if err := s.client.Set(ctx, statePrefix+state, "pending", stateTTL).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *redisStore) VerifyOAuthState(ctx context.Context, state string) (bool, error) {
	// GETDEL makes check-and-consume a single atomic command
	_, err := s.client.GetDel(ctx, statePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err)
	}
	return true, nil
}

func (s *redisStore) Keepalive(ctx context.Context) (string, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	if err := s.client.Set(ctx, keepaliveKey, timestamp, 0).Err(); err != nil {
		return "", storeErr(err)
	}
	return timestamp, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
