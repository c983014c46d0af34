package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	logrus "github.com/sirupsen/logrus"

	"github.com/siinc/xero-connect/internal/models"
	"github.com/siinc/xero-connect/internal/store"
)

// Seeds a fake Xero connection into Redis so the admin endpoints can be
// exercised locally without completing a real OAuth flow.
func main() {
	redisURL := flag.String("redis", "redis://localhost:6379", "Redis connection URL")
	tenantID := flag.String("tenant", "", "Tenant id to store (random when empty)")
	expired := flag.Bool("expired", false, "Seed an already-expired access token")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	tokenStore, err := store.NewRedisStore(*redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	ctx := context.Background()

	expiresAt := time.Now().Add(29 * time.Minute)
	if *expired {
		expiresAt = time.Now().Add(-time.Minute)
	}

	tokens := &models.Tokens{
		AccessToken:  "dev-access-" + uuid.NewString(),
		RefreshToken: "dev-refresh-" + uuid.NewString(),
		ExpiresAt:    expiresAt,
		Scope:        "offline_access accounting.contacts",
	}
	if err := tokenStore.StoreTokens(ctx, tokens); err != nil {
		log.Fatal("Failed to store tokens:", err)
	}

	tenant := *tenantID
	if tenant == "" {
		tenant = uuid.NewString()
	}
	if err := tokenStore.StoreTenantID(ctx, tenant); err != nil {
		log.Fatal("Failed to store tenant id:", err)
	}

	fmt.Println("✓ Development Xero connection seeded!")
	fmt.Printf("Tenant ID:  %s\n", tenant)
	fmt.Printf("Expires at: %s\n", tokens.ExpiresAt.Format(time.RFC3339))
	fmt.Println("\nCheck the connection status:")
	fmt.Println("curl -H 'x-admin-secret: <ADMIN_SECRET>' http://localhost:8080/api/xero/status")
}
