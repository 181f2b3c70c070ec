// cmd/fittrack-seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fittrack/internal/config"
	"fittrack/internal/identity"
	"fittrack/internal/observability"
	"fittrack/internal/seed"
	"fittrack/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	reset := flag.Bool("reset", false, "delete and recreate the demo users")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Identity.URL == "" || cfg.Identity.ServiceKey == "" {
		log.Fatalf("FITTRACK_IDENTITY_URL and FITTRACK_IDENTITY_SERVICE_KEY are required")
	}

	obs, err := observability.NewProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin, err := identity.NewAdmin(cfg.Identity.URL, cfg.Identity.ServiceKey, cfg.Identity.Timeout, obs.Metrics)
	if err != nil {
		log.Fatalf("Failed to create admin client: %v", err)
	}

	// The service key bypasses row level security for the members upsert
	members, err := server.OpenStore(ctx, cfg, cfg.Identity.ServiceKey, obs.Logger, obs.Metrics)
	if err != nil {
		log.Fatalf("Failed to open data store: %v", err)
	}
	defer members.Close()

	if err := seed.New(admin, members, obs.Logger).Run(ctx, seed.DemoAccounts, *reset); err != nil {
		members.Close()
		log.Fatalf("Seed failed: %v", err)
	}

	fmt.Println("Seed complete.")
	fmt.Println("Logins:")
	for _, a := range seed.DemoAccounts {
		fmt.Printf("- %s / %s\n", a.Email, a.Password)
	}
	if !*reset {
		fmt.Println("Tip: run with -reset to recreate fresh users.")
	}
}
