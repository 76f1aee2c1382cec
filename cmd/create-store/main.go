package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository/postgres"
	"github.com/jafarshop/opsapi/internal/shopify"
)

func main() {
	shopFlag := flag.String("shop", "", "myshopify domain, e.g. acme.myshopify.com")
	tokenFlag := flag.String("token", "", "Admin API access token for the shop")
	nameFlag := flag.String("name", "", "Store display name (defaults to the shop)")
	ownerFlag := flag.String("owner", "", "Identity-provider UID that owns the new business")
	ownerEmailFlag := flag.String("owner-email", "", "Owner email")
	businessFlag := flag.String("business", "", "Business name; creates a business owned by --owner and links the store to it")
	serviceKeyFlag := flag.String("service-key", "", "Also create a service key with this name for internal callers")
	flag.Parse()

	shop := shopify.NormalizeShopDomain(*shopFlag)
	token := strings.TrimSpace(*tokenFlag)
	if shop == "" || token == "" {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/create-store --shop acme.myshopify.com --token shpat_xxx [--name \"Acme\"]")
		fmt.Println("      [--business \"Acme Retail\" --owner <uid> --owner-email owner@acme.com] [--service-key scheduler]")
		os.Exit(1)
	}
	if !strings.HasSuffix(shop, ".myshopify.com") {
		fmt.Fprintf(os.Stderr, "Error: --shop must be a myshopify.com domain, got %q\n", shop)
		os.Exit(1)
	}
	businessName := strings.TrimSpace(*businessFlag)
	owner := strings.TrimSpace(*ownerFlag)
	if businessName != "" && owner == "" {
		fmt.Fprintf(os.Stderr, "Error: --owner is required with --business\n")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Connect to database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	ctx := context.Background()

	var businessID *uuid.UUID
	if businessName != "" {
		business := &domain.Business{Name: businessName, OwnerUID: owner}
		if err := repos.Business.Create(ctx, business); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create business: %v\n", err)
			os.Exit(1)
		}
		err := repos.Business.UpsertMember(ctx, &domain.BusinessMember{
			BusinessID: business.ID,
			UID:        owner,
			Email:      strings.TrimSpace(*ownerEmailFlag),
			Role:       domain.RoleOwner,
			IsActive:   true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to add business owner: %v\n", err)
			os.Exit(1)
		}
		businessID = &business.ID
		fmt.Printf("Business created: %s (%s)\n", business.Name, business.ID)
	}

	name := strings.TrimSpace(*nameFlag)
	if name == "" {
		name = shop
	}
	store := &domain.Store{
		Shop:        shop,
		BusinessID:  businessID,
		Name:        name,
		AccessToken: token,
		APIVersion:  cfg.Shopify.APIVersion,
	}
	if err := repos.Store.Create(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %v\n", err)
		os.Exit(1)
	}
	if owner != "" {
		err := repos.Store.UpsertMember(ctx, &domain.StoreMember{Shop: shop, UID: owner, Role: domain.RoleOwner})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to add store owner: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Store registered: %s\n", shop)

	keyName := strings.TrimSpace(*serviceKeyFlag)
	if keyName == "" {
		return
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}
	apiKey := "svc_" + hex.EncodeToString(raw)

	// bcrypt for verification; SHA256 hex for lookup
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash service key: %v\n", err)
		os.Exit(1)
	}
	key := &domain.ServiceKey{
		Name:      keyName,
		KeyHash:   string(hash),
		KeyLookup: domain.APIKeyLookupHash(apiKey),
		IsActive:  true,
	}
	if err := repos.ServiceKey.Create(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create service key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nService key %q: %s\n", keyName, apiKey)
	fmt.Printf("Save it now; only its hash is stored.\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}
