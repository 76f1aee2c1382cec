package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/repository/postgres"
	"github.com/jafarshop/opsapi/internal/shopify"
)

func main() {
	shopFlag := flag.String("shop", "", "myshopify domain")
	statusFlag := flag.String("status", "", "Only orders with this status (e.g. confirmed, in_transit)")
	limitFlag := flag.Int("limit", 50, "Maximum orders to print")
	flag.Parse()

	shop := shopify.NormalizeShopDomain(*shopFlag)
	if shop == "" {
		fmt.Println("Usage: go run ./cmd/list-orders --shop acme.myshopify.com [--status confirmed] [--limit 50]")
		os.Exit(1)
	}
	status := domain.CustomStatus(*statusFlag)
	if status != "" && !status.IsValid() {
		fmt.Fprintf(os.Stderr, "Unknown status %q\n", status)
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

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)

	orders, err := repos.Order.List(context.Background(), shop, repository.OrderFilter{Status: status, Limit: *limitFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list orders: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Orders for %s:\n", shop)
	for i, o := range orders {
		fmt.Printf("Order #%d:\n", i+1)
		fmt.Printf("  ID: %s\n", o.ID)
		fmt.Printf("  Shopify: %s (%d)\n", o.Name, o.ShopifyOrderID)
		fmt.Printf("  Status: %s\n", o.CustomStatus)
		fmt.Printf("  Customer: %s %s\n", o.CustomerName, o.Phone)
		fmt.Printf("  Total: %s %s", o.TotalPrice.StringFixed(2), o.Currency)
		if o.IsCOD {
			fmt.Printf(" (COD)")
		}
		fmt.Println()
		if o.AWB != "" {
			fmt.Printf("  AWB: %s via %s\n", o.AWB, o.Courier)
		}
		fmt.Printf("  Created: %s\n", o.ShopifyCreatedAt.Format("2006-01-02 15:04"))
		fmt.Println()
	}

	if len(orders) == 0 {
		fmt.Println("No orders found.")
	} else {
		fmt.Printf("Total: %d order(s)\n", len(orders))
	}
}
